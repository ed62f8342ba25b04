package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/term"

	"rostercal/internal/config"
	"rostercal/internal/gcal"
	"rostercal/internal/ics"
	"rostercal/internal/job"
	appLog "rostercal/internal/log"
	"rostercal/internal/model"
	"rostercal/internal/roster"
	"rostercal/internal/sync"
	"rostercal/internal/web"
	"rostercal/internal/wx"
)

// jobSweepInterval is how often finished sync jobs are expired from the
// in-memory registry.
const jobSweepInterval = 15 * time.Minute

type flagConfig struct {
	configPath   string
	listen       string
	once         bool
	hashPassword bool
}

func main() {
	appLog.Info("rostercal starting", "version", "0.1.0-dev")

	flags := parseFlags()

	if flags.hashPassword {
		if err := runHashPassword(); err != nil {
			appLog.Error("failed to hash password", err)
			os.Exit(1)
		}
		return
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"data_dir", conf.DataDir,
		"calendar_id", conf.Calendar.ID,
		"sync_cron", conf.Sync.Cron,
		"basic_auth", conf.BasicAuth != nil,
		"once", flags.once,
	)

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone", err, "name", conf.Timezone)
		os.Exit(1)
	}

	if err := os.MkdirAll(conf.DataDir, 0o755); err != nil {
		appLog.Error("failed to create data directory", err, "data_dir", conf.DataDir)
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	runSync := newRunSync(conf, loc)

	if flags.once {
		period := model.Period{}.Normalize(time.Now(), loc)
		sink := sync.Sink(func(line string) {
			appLog.Info("sync", "line", line)
		})
		result, err := runSync(ctx, period, sink)
		if err != nil {
			appLog.Error("sync failed", err, "period", period.String())
			os.Exit(1)
		}
		appLog.Info("sync done", "period", period.String(), "result", result.String())
		return
	}

	jobs := job.NewMemoryStore()
	server := web.NewServer(conf, jobs, wx.NewClient(), runSync)

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := startScheduler(ctx, conf, loc, jobs, runSync)

	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", conf.Listen)
		serveErr <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("http server failed", err)
			cancel()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http server shutdown failed", err)
	}

	appLog.Info("rostercal exiting")
}

// newRunSync assembles the production sync pipeline. Credentials are
// loaded per run so a token or client-secret swap on disk is picked up
// without a restart, and a credential failure aborts the run before any
// remote mutation.
func newRunSync(conf *config.Config, loc *time.Location) web.RunSync {
	return func(ctx context.Context, period model.Period, sink sync.Sink) (model.SyncResult, error) {
		creds, err := gcal.LoadCredentials(conf.Calendar.CredentialsFile, conf.Calendar.TokenFile)
		if err != nil {
			return model.SyncResult{}, err
		}

		cal, err := gcal.New(ctx, creds, conf.Calendar.ID, conf.Timezone, conf.Sync.ReminderMinutes)
		if err != nil {
			return model.SyncResult{}, err
		}

		norm, err := sync.NewNormalizer(conf.Sync.FlightPattern)
		if err != nil {
			return model.SyncResult{}, fmt.Errorf("flight pattern: %w", err)
		}

		scraper := roster.NewScraper(roster.Options{
			URL:      conf.Portal.URL,
			Username: conf.Portal.Username,
			Password: conf.Portal.Password,
			Location: loc,
			Timeout:  time.Duration(conf.Portal.TimeoutSec) * time.Second,
		})

		writer := &ics.FileWriter{
			Path:            filepath.Join(conf.DataDir, "roster.ics"),
			ReminderMinutes: conf.Sync.ReminderMinutes,
		}

		runner := sync.NewRunner(scraper, cal, norm, writer, loc)
		result, runErr := runner.Run(ctx, period, sink)

		// Persist a rotated token even when the run itself failed; the
		// refresh may have happened before the failure.
		if rotated, err := creds.SaveIfRotated(); err != nil {
			appLog.Error("failed to persist rotated oauth token", err)
		} else if rotated && sink != nil {
			sink("oauth token rotated and saved")
		}

		return result, runErr
	}
}

// startScheduler runs the optional cron-driven automatic sync and the
// periodic job-registry sweep. Returns nil when nothing is scheduled.
func startScheduler(ctx context.Context, conf *config.Config, loc *time.Location, jobs job.Store, runSync web.RunSync) *cron.Cron {
	c := cron.New(cron.WithLocation(loc))

	if conf.Sync.Cron != "" {
		_, err := c.AddFunc(conf.Sync.Cron, func() {
			period := model.Period{}.Normalize(time.Now(), loc)
			appLog.Info("scheduled sync starting", "period", period.String())

			sink := sync.Sink(func(line string) {
				appLog.Info("sync", "line", line)
			})
			result, err := runSync(ctx, period, sink)
			if err != nil {
				appLog.Error("scheduled sync failed", err, "period", period.String())
				return
			}
			appLog.Info("scheduled sync done", "period", period.String(), "result", result.String())
		})
		if err != nil {
			appLog.Error("invalid sync cron expression", err, "cron", conf.Sync.Cron)
			os.Exit(1)
		}
		appLog.Info("automatic sync scheduled", "cron", conf.Sync.Cron)
	}

	ttl := time.Duration(conf.Sync.JobTTLMinutes) * time.Minute
	_, err := c.AddFunc(fmt.Sprintf("@every %s", jobSweepInterval), func() {
		if removed := jobs.Expire(ttl); removed > 0 {
			appLog.Info("expired finished sync jobs", "removed", removed)
		}
	})
	if err != nil {
		appLog.Error("failed to schedule job sweep", err)
		os.Exit(1)
	}

	c.Start()
	return c
}

// runHashPassword prompts for a password twice on the terminal and
// prints the argon2id hash for the basic_auth.password_hash field.
func runHashPassword() error {
	fd := int(os.Stdin.Fd())

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stderr, "Confirm:  ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	if string(first) != string(second) {
		return errors.New("passwords do not match")
	}

	hash, err := web.HashPassword(string(first))
	if err != nil {
		return err
	}

	fmt.Println(hash)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/rostercal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one sync of the current month and exit")
	flag.BoolVar(&cfg.hashPassword, "hash-password", false, "Prompt for a password, print its argon2id hash, and exit")

	flag.Parse()

	return cfg
}
