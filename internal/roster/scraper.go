package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
	"rostercal/internal/sync"
)

// DOM selectors for the crew portal. These track the portal's current
// markup and are expected to break when the portal front-end changes;
// keeping them in one place makes the breakage cheap to fix.
const (
	selUsername    = `#loginForm input[name="username"]`
	selPassword    = `#loginForm input[name="password"]`
	selLoginButton = `#loginForm button[type="submit"]`
	selRosterRoot  = `#rosterTable`
	selMonthLabel  = `#rosterMonth`
	selNextMonth   = `#nextMonthBtn`
)

// extractScript pulls every duty row out of the roster table. It returns
// timezone-less civil time strings; parsing happens Go-side so it stays
// unit-testable.
const extractScript = `
(() => {
	const rows = Array.from(document.querySelectorAll('#rosterTable tbody tr'));
	return rows.map(tr => ({
		name:  (tr.querySelector('.duty-name')  || {}).textContent || '',
		start: (tr.querySelector('.duty-start') || {}).textContent || '',
		end:   (tr.querySelector('.duty-end')   || {}).textContent || '',
	})).map(r => ({
		name: r.name.trim(), start: r.start.trim(), end: r.end.trim(),
	}));
})()
`

const (
	defaultTimeout = 120 * time.Second

	// maxMonthHops bounds forward navigation so a renamed month label
	// cannot spin the scraper forever.
	maxMonthHops = 14
)

// Options configures the portal scraper.
type Options struct {
	// URL is the portal login page.
	URL      string
	Username string
	Password string

	// Location interprets the portal's timezone-less duty times.
	Location *time.Location

	// Timeout bounds one full scrape (login + all month navigation).
	Timeout time.Duration
}

// Scraper drives a headless Chromium session against the crew portal and
// implements the duty feed consumed by the sync runner.
type Scraper struct {
	opts Options
}

var _ sync.Feed = (*Scraper)(nil)

func NewScraper(opts Options) *Scraper {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Scraper{opts: opts}
}

// FetchDuties logs in, walks the requested months, and extracts duty rows.
// The whole scrape is bounded by the configured timeout.
func (s *Scraper) FetchDuties(ctx context.Context, period model.Period) ([]model.DutyRecord, error) {
	if s.opts.URL == "" {
		return nil, errors.New("roster: portal URL is not configured")
	}
	if s.opts.Username == "" || s.opts.Password == "" {
		return nil, errors.New("roster: portal credentials are not configured")
	}

	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer timeoutCancel()

	if err := s.login(ctx); err != nil {
		return nil, fmt.Errorf("roster: login: %w", err)
	}
	appLog.Info("portal login succeeded", "url", s.opts.URL)

	duties := make([]model.DutyRecord, 0, 64)
	for i := 0; i < period.Months; i++ {
		month := time.Date(period.Year, time.Month(period.Month), 1, 0, 0, 0, 0, s.opts.Location).
			AddDate(0, i, 0)

		if err := s.gotoMonth(ctx, month); err != nil {
			return nil, fmt.Errorf("roster: navigate to %s: %w", month.Format("2006-01"), err)
		}

		var rows []rawDuty
		if err := chromedp.Run(ctx,
			chromedp.WaitVisible(selRosterRoot, chromedp.ByQuery),
			// Let the table finish its async fill before extraction.
			chromedp.Sleep(500*time.Millisecond),
			chromedp.Evaluate(extractScript, &rows),
		); err != nil {
			return nil, fmt.Errorf("roster: extract %s: %w", month.Format("2006-01"), err)
		}

		parsed := parseDuties(rows, s.opts.Location)
		appLog.Info("roster month scraped",
			"month", month.Format("2006-01"), "rows", len(rows), "parsed", len(parsed))
		duties = append(duties, parsed...)
	}

	return duties, nil
}

func (s *Scraper) login(ctx context.Context) error {
	return chromedp.Run(ctx,
		chromedp.Navigate(s.opts.URL),
		chromedp.WaitVisible(selUsername, chromedp.ByQuery),
		chromedp.SendKeys(selUsername, s.opts.Username, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, s.opts.Password, chromedp.ByQuery),
		chromedp.Click(selLoginButton, chromedp.ByQuery),
		chromedp.WaitVisible(selRosterRoot, chromedp.ByQuery),
	)
}

// gotoMonth clicks the portal's next-month control until the month label
// matches the target. The portal always opens on the current month, so
// only forward navigation is needed.
func (s *Scraper) gotoMonth(ctx context.Context, month time.Time) error {
	want := month.Format("2006-01")

	for hops := 0; hops < maxMonthHops; hops++ {
		var label string
		if err := chromedp.Run(ctx,
			chromedp.WaitVisible(selMonthLabel, chromedp.ByQuery),
			chromedp.Text(selMonthLabel, &label, chromedp.ByQuery),
		); err != nil {
			return err
		}

		shown, err := parseMonthLabel(label, s.opts.Location)
		if err != nil {
			return err
		}
		if shown.Format("2006-01") == want {
			return nil
		}
		if shown.After(month) {
			return fmt.Errorf("portal shows %s, past requested %s", shown.Format("2006-01"), want)
		}

		if err := chromedp.Run(ctx,
			chromedp.Click(selNextMonth, chromedp.ByQuery),
			chromedp.Sleep(300*time.Millisecond),
		); err != nil {
			return err
		}
	}

	return fmt.Errorf("month %s not reachable within %d hops", want, maxMonthHops)
}

// parseMonthLabel accepts the label formats the portal has used so far.
func parseMonthLabel(label string, loc *time.Location) (time.Time, error) {
	label = strings.TrimSpace(label)
	for _, layout := range []string{"2006-01", "Jan 2006", "January 2006", "2006/01"} {
		if t, err := time.ParseInLocation(layout, label, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized month label %q", label)
}
