package model

import (
	"fmt"
	"time"
)

// DutyRecord is one scheduled work period as scraped from the crew portal.
// Name carries whatever the roster shows (flight number + route, "SBY",
// "OFF", training codes, ...). There is no uniqueness guarantee on Name;
// the same duty name can appear on many days.
type DutyRecord struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Event is the canonical, content-addressed representation of a duty used
// for calendar sync. It is immutable once produced by the normalizer.
type Event struct {
	// ID is a deterministic slug derived from the title and start instant,
	// suffixed with the sync namespace tag. Stable across runs for the
	// same logical duty, distinct for same-named duties on different days.
	ID    string
	Title string
	Start time.Time
	End   time.Time

	// FlightDuty is true when the title matches the configured flight
	// number convention; flight duties get reminder alarms attached.
	FlightDuty bool
}

// RemoteEvent is one row of the remote calendar listing. ExternalID is
// this system's namespaced event ID when the event was created by a
// previous sync; it is empty for foreign events, which must never be
// mutated or deleted.
type RemoteEvent struct {
	RemoteID    string
	ExternalID  string
	Title       string
	Description string

	// Cancelled marks soft-deleted remote events; listings are requested
	// with deleted entries included so stale entries can still be pruned.
	Cancelled bool
}

// Window is the bounded date range queried on the remote calendar,
// derived from the local event set's span plus one day of padding on
// each side.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the interval [start, end] lies inside the window.
func (w Window) Contains(start, end time.Time) bool {
	return !start.Before(w.Start) && !end.After(w.End)
}

// SyncResult summarizes one reconciliation pass. It is transient and
// never persisted.
type SyncResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Total   int `json:"total"`
}

func (r SyncResult) String() string {
	return fmt.Sprintf("added=%d updated=%d deleted=%d total=%d",
		r.Added, r.Updated, r.Deleted, r.Total)
}

// Period selects the roster months to scrape and sync.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`

	// Months is the number of consecutive months starting at Year/Month.
	// Zero is treated as 1.
	Months int `json:"months"`
}

// Normalize clamps a Period to sane values, defaulting to the current
// month in loc when Year/Month are unset.
func (p Period) Normalize(now time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	if p.Year == 0 {
		p.Year = local.Year()
	}
	if p.Month < 1 || p.Month > 12 {
		p.Month = int(local.Month())
	}
	if p.Months < 1 {
		p.Months = 1
	}
	if p.Months > 3 {
		p.Months = 3
	}
	return p
}

// Window returns the civil date range covered by the period in loc,
// padded by one day on each side, for use as a remote listing fallback
// when the roster comes back empty.
func (p Period) Window(loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, loc)
	months := p.Months
	if months < 1 {
		months = 1
	}
	end := start.AddDate(0, months, 0)
	return Window{
		Start: start.AddDate(0, 0, -1),
		End:   end.AddDate(0, 0, 1),
	}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d(+%d)", p.Year, p.Month, p.Months-1)
}
