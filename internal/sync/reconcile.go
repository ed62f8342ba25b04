package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
)

// ErrRemoteListing marks a failed remote listing. Listing failures are
// fatal to the run: reconciling against partial window data could prune
// events that still exist.
var ErrRemoteListing = errors.New("remote listing failed")

// windowPadding expands the sync window beyond the local event span so
// boundary events created by a previous run are still visible.
const windowPadding = 24 * time.Hour

// Calendar is the remote calendar collaborator. Implementations must
// support paginated, time-windowed listing that includes soft-deleted
// events, and Delete must treat not-found as success.
type Calendar interface {
	// ListPage returns one page of remote events overlapping the window
	// and the continuation token for the next page ("" when done).
	ListPage(ctx context.Context, window model.Window, pageToken string) ([]model.RemoteEvent, string, error)

	// Insert creates a remote event carrying the namespaced external ID
	// for later recognition, returning the remote handle.
	Insert(ctx context.Context, ev model.Event, externalID string) (string, error)

	Update(ctx context.Context, remoteID string, ev model.Event) error

	// Delete removes a remote event. Deleting an already-gone event is
	// not an error.
	Delete(ctx context.Context, remoteID string) error
}

// Reconciler aligns a remote calendar with a freshly normalized local
// event set: it lists the remote window, diffs by namespaced ID, and
// applies deletions then upserts sequentially.
type Reconciler struct {
	cal  Calendar
	sink Sink
}

func NewReconciler(cal Calendar, sink Sink) *Reconciler {
	return &Reconciler{cal: cal, sink: sink}
}

// ComputeWindow derives the remote query window from the local event
// set: [min start − 1 day, max end + 1 day]. ok is false for an empty
// set, in which case no remote calls should be made.
func ComputeWindow(events []model.Event) (model.Window, bool) {
	if len(events) == 0 {
		return model.Window{}, false
	}
	minStart := events[0].Start
	maxEnd := events[0].End
	for _, ev := range events[1:] {
		if ev.Start.Before(minStart) {
			minStart = ev.Start
		}
		if ev.End.After(maxEnd) {
			maxEnd = ev.End
		}
	}
	return model.Window{
		Start: minStart.Add(-windowPadding),
		End:   maxEnd.Add(windowPadding),
	}, true
}

// Reconcile computes and applies the create/update/delete set bringing
// the remote calendar in line with local. Per-event apply failures are
// logged and skipped; only listing failures abort the run.
//
// fallback is the requested roster period's window; it is used when the
// local set is empty so that duties cancelled wholesale still get pruned.
// With an empty local set and a zero fallback no remote calls are made.
func (r *Reconciler) Reconcile(ctx context.Context, local []model.Event, fallback model.Window) (model.SyncResult, error) {
	res := model.SyncResult{Total: len(local)}

	window, ok := ComputeWindow(local)
	if !ok {
		if fallback.Start.IsZero() || fallback.End.IsZero() {
			// No window derivable: zero result, no remote calls.
			return res, nil
		}
		window = fallback
	}

	remoteByID, err := r.listOwned(ctx, window)
	if err != nil {
		return res, err
	}
	r.sink.printf("remote listing: %d owned events in window %s .. %s",
		len(remoteByID),
		window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))

	localIDs := make(map[string]bool, len(local))
	for _, ev := range local {
		localIDs[ev.ID] = true
	}

	// Deletions first: owned remote events no longer on the roster.
	// Sorted for stable log order; map iteration is randomized.
	stale := make([]string, 0)
	for id := range remoteByID {
		if !localIDs[id] {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)

	for _, id := range stale {
		re := remoteByID[id]
		if err := r.cal.Delete(ctx, re.RemoteID); err != nil {
			appLog.Error("event delete failed", err, "id", id)
			r.sink.printf("delete failed for %s: %v", id, err)
			continue
		}
		r.sink.printf("deleted %s (%s)", id, re.Title)
		res.Deleted++
	}

	// Upserts in local order. An update is emitted for every mapped ID
	// even when the payload is unchanged; this refreshes time and
	// reminder metadata under a stable ID.
	for _, ev := range local {
		re, exists := remoteByID[ev.ID]
		if exists {
			if err := r.cal.Update(ctx, re.RemoteID, ev); err != nil {
				appLog.Error("event update failed", err, "id", ev.ID)
				r.sink.printf("update failed for %s: %v", ev.ID, err)
				continue
			}
			res.Updated++
			continue
		}

		if _, err := r.cal.Insert(ctx, ev, ev.ID); err != nil {
			appLog.Error("event insert failed", err, "id", ev.ID)
			r.sink.printf("insert failed for %s: %v", ev.ID, err)
			continue
		}
		r.sink.printf("added %s (%s)", ev.ID, ev.Title)
		res.Added++
	}

	return res, nil
}

// listOwned pages through the remote window (deleted entries included)
// and maps namespaced external IDs to their remote events. Foreign
// events are dropped here and can never reach the diff. If the remote
// returns the same external ID twice, the first in listing order wins.
func (r *Reconciler) listOwned(ctx context.Context, window model.Window) (map[string]model.RemoteEvent, error) {
	owned := make(map[string]model.RemoteEvent)

	pageToken := ""
	for {
		events, next, err := r.cal.ListPage(ctx, window, pageToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRemoteListing, err)
		}

		for _, re := range events {
			id := OwnedID(re)
			if id == "" {
				continue
			}
			if first, dup := owned[id]; dup {
				appLog.Warn("duplicate external id on remote events; keeping first",
					"id", id, "kept", first.RemoteID, "ignored", re.RemoteID)
				r.sink.printf("warning: duplicate external id %s, keeping first", id)
				continue
			}
			owned[id] = re
		}

		if next == "" {
			return owned, nil
		}
		pageToken = next
	}
}
