package sync

import (
	"context"
	"fmt"
	"time"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
)

// Feed produces duty records for a period. The portal scraper is the
// production implementation; anything meeting the shape works.
type Feed interface {
	FetchDuties(ctx context.Context, period model.Period) ([]model.DutyRecord, error)
}

// ICSWriter persists the normalized event set as a calendar file. Nil
// disables the export.
type ICSWriter interface {
	WriteEvents(events []model.Event) error
}

// Runner wires one sync run end to end: fetch duties, normalize, export
// the ICS file, reconcile against the remote calendar.
type Runner struct {
	feed Feed
	cal  Calendar
	norm *Normalizer
	ics  ICSWriter
	loc  *time.Location
}

func NewRunner(feed Feed, cal Calendar, norm *Normalizer, ics ICSWriter, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.Local
	}
	return &Runner{feed: feed, cal: cal, norm: norm, ics: ics, loc: loc}
}

// Run executes one sync run. Fetch and listing errors are fatal;
// normalization drops and per-event apply failures are absorbed into the
// sink transcript.
func (r *Runner) Run(ctx context.Context, period model.Period, sink Sink) (model.SyncResult, error) {
	sink.printf("fetching roster for %s", period)

	duties, err := r.feed.FetchDuties(ctx, period)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("fetch duties: %w", err)
	}
	sink.printf("fetched %d duty records", len(duties))

	events := r.norm.NormalizeAll(duties, sink)
	if dropped := len(duties) - len(events); dropped > 0 {
		sink.printf("dropped %d invalid duty records", dropped)
	}

	if r.ics != nil {
		if err := r.ics.WriteEvents(events); err != nil {
			// Export failure does not block calendar sync.
			appLog.Error("ics export failed", err)
			sink.printf("ics export failed: %v", err)
		} else {
			sink.printf("wrote ics export with %d events", len(events))
		}
	}

	result, err := NewReconciler(r.cal, sink).Reconcile(ctx, events, period.Window(r.loc))
	if err != nil {
		return result, err
	}
	sink.printf("sync complete: %s", result)
	return result, nil
}
