package wx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	gosync "sync"
	"time"

	appLog "rostercal/internal/log"
)

// defaultBaseURL is the aviationweather.gov data API root.
const defaultBaseURL = "https://aviationweather.gov/api/data"

const (
	fetchTimeout = 15 * time.Second
	cacheTTL     = 5 * time.Minute
)

// ErrBadStation rejects lookups for anything that is not a 4-character
// ICAO identifier before a request ever leaves the process.
var ErrBadStation = errors.New("invalid ICAO station")

var stationRe = regexp.MustCompile(`^[A-Za-z]{4}$`)

// Client fetches raw METAR/TAF text with a small in-memory TTL cache so
// repeated UI lookups of the same station don't hammer the upstream API.
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu    gosync.RWMutex
	cache map[string]cacheEntry
	now   func() time.Time
}

type cacheEntry struct {
	text      string
	fetchedAt time.Time
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: fetchTimeout},
		baseURL:    defaultBaseURL,
		cache:      make(map[string]cacheEntry),
		now:        time.Now,
	}
}

// METAR returns the latest raw METAR for the station.
func (c *Client) METAR(ctx context.Context, station string) (string, error) {
	return c.fetch(ctx, "metar", station)
}

// TAF returns the latest raw TAF for the station.
func (c *Client) TAF(ctx context.Context, station string) (string, error) {
	return c.fetch(ctx, "taf", station)
}

func (c *Client) fetch(ctx context.Context, kind, station string) (string, error) {
	station = strings.ToUpper(strings.TrimSpace(station))
	if !stationRe.MatchString(station) {
		return "", fmt.Errorf("%w: %q", ErrBadStation, station)
	}

	key := kind + "/" + station
	now := c.now()

	c.mu.RLock()
	entry, hit := c.cache[key]
	c.mu.RUnlock()
	if hit && now.Sub(entry.fetchedAt) < cacheTTL {
		return entry.text, nil
	}

	reqURL := fmt.Sprintf("%s/%s?ids=%s&format=raw", c.baseURL, kind, url.QueryEscape(station))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	appLog.Info("wx fetch", "kind", kind, "station", station)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wx: %s lookup for %s: %s", kind, station, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", fmt.Errorf("wx: no %s available for %s", strings.ToUpper(kind), station)
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{text: text, fetchedAt: now}
	c.mu.Unlock()

	return text, nil
}
