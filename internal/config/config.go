package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PortalConfig holds credentials and endpoint for the crew-scheduling
// portal the roster scraper logs into.
type PortalConfig struct {
	// URL is the portal login page.
	URL string `yaml:"url" json:"url"`

	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`

	// TimeoutSec bounds one full scrape (login + month navigation).
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`
}

// CalendarConfig identifies the target Google Calendar and the OAuth2
// credential material used to reach it.
type CalendarConfig struct {
	// ID is the Google Calendar identifier ("primary" or an address).
	ID string `yaml:"id" json:"id"`

	// CredentialsFile is the installed-app OAuth2 client JSON.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`

	// TokenFile stores the user token; rewritten when the token rotates.
	TokenFile string `yaml:"token_file" json:"token_file"`
}

// SyncConfig tunes roster-to-calendar synchronization.
type SyncConfig struct {
	// Cron, when non-empty, schedules an automatic sync of the current
	// month (e.g. "0 5 * * *").
	Cron string `yaml:"cron" json:"cron"`

	// ReminderMinutes are popup reminder offsets attached to flight
	// duties. Non-flight duties get no reminders.
	ReminderMinutes []int `yaml:"reminder_minutes" json:"reminder_minutes"`

	// FlightPattern is the regular expression that classifies a duty
	// title as a flight duty (airline code + digits prefix convention).
	FlightPattern string `yaml:"flight_pattern" json:"flight_pattern"`

	// JobTTLMinutes controls how long finished sync jobs stay queryable.
	JobTTLMinutes int `yaml:"job_ttl_minutes" json:"job_ttl_minutes"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
// PasswordHash is an argon2id encoded hash produced by `rostercal
// -hash-password`; plaintext passwords are never stored.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"password_hash"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone the roster's timezone-less timestamps are
	// interpreted in (e.g. "Asia/Tokyo"). Duty times are parsed as naive
	// civil time in this zone and sent to the remote calendar with an
	// explicit offset.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataDir holds generated artifacts (last built ICS file).
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Portal   PortalConfig   `yaml:"portal" json:"portal"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Sync     SyncConfig     `yaml:"sync" json:"sync"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8099",
		Timezone: "Asia/Tokyo",
		DataDir:  "/var/lib/rostercal",
		Portal: PortalConfig{
			TimeoutSec: 120,
		},
		Calendar: CalendarConfig{
			ID:              "primary",
			CredentialsFile: "/etc/rostercal/credentials.json",
			TokenFile:       "/etc/rostercal/token.json",
		},
		Sync: SyncConfig{
			ReminderMinutes: []int{90},
			FlightPattern:   `^JX[0-9]{1,4}\b`,
			JobTTLMinutes:   60,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.Portal.TimeoutSec <= 0 {
		c.Portal.TimeoutSec = def.Portal.TimeoutSec
	}
	if c.Calendar.ID == "" {
		c.Calendar.ID = def.Calendar.ID
	}
	if c.Calendar.CredentialsFile == "" {
		c.Calendar.CredentialsFile = def.Calendar.CredentialsFile
	}
	if c.Calendar.TokenFile == "" {
		c.Calendar.TokenFile = def.Calendar.TokenFile
	}
	if c.Sync.ReminderMinutes == nil {
		c.Sync.ReminderMinutes = def.Sync.ReminderMinutes
	}
	if c.Sync.FlightPattern == "" {
		c.Sync.FlightPattern = def.Sync.FlightPattern
	}
	if c.Sync.JobTTLMinutes <= 0 {
		c.Sync.JobTTLMinutes = def.Sync.JobTTLMinutes
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// The config carries portal credentials, so the file is written with 0600
// permissions, atomically via a temp file + rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".rostercal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
