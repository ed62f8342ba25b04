package sync

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"rostercal/internal/model"
)

// Namespace is the fixed tag suffixed to every event ID owned by this
// system. Remote events whose external ID does not carry it are foreign
// and are never mutated or deleted.
const Namespace = "@rostercal"

// DescriptionMarker prefixes the ID line embedded in remote event
// descriptions, so ownership survives even if the external ID property
// is lost.
const DescriptionMarker = "rostercal-id: "

// ErrInvalidDuty marks a malformed duty record. Invalid records are
// dropped from the batch, never fatal to the run.
var ErrInvalidDuty = errors.New("invalid duty record")

// Normalizer converts scraped duty records into canonical events.
type Normalizer struct {
	flightPattern *regexp.Regexp
}

// NewNormalizer compiles the flight-duty classification pattern
// (airline code + digits prefix convention, e.g. `^JX[0-9]{1,4}\b`).
func NewNormalizer(flightPattern string) (*Normalizer, error) {
	re, err := regexp.Compile(flightPattern)
	if err != nil {
		return nil, fmt.Errorf("flight pattern: %w", err)
	}
	return &Normalizer{flightPattern: re}, nil
}

// Normalize converts one duty record into a canonical event. It is a pure
// function: same input, same output, no side effects.
func (n *Normalizer) Normalize(rec model.DutyRecord) (model.Event, error) {
	title := strings.TrimSpace(rec.Name)
	if title == "" {
		return model.Event{}, fmt.Errorf("%w: empty name", ErrInvalidDuty)
	}
	if rec.Start.IsZero() || rec.End.IsZero() {
		return model.Event{}, fmt.Errorf("%w: %q has missing times", ErrInvalidDuty, title)
	}
	if !rec.Start.Before(rec.End) {
		return model.Event{}, fmt.Errorf("%w: %q start %s is not before end %s",
			ErrInvalidDuty, title,
			rec.Start.Format(time.RFC3339), rec.End.Format(time.RFC3339))
	}

	return model.Event{
		ID:         EventID(title, rec.Start),
		Title:      title,
		Start:      rec.Start,
		End:        rec.End,
		FlightDuty: n.flightPattern.MatchString(title),
	}, nil
}

// NormalizeAll converts a batch of duty records, dropping invalid ones
// with a line to the sink. Order is preserved.
func (n *Normalizer) NormalizeAll(recs []model.DutyRecord, sink Sink) []model.Event {
	events := make([]model.Event, 0, len(recs))
	for _, rec := range recs {
		ev, err := n.Normalize(rec)
		if err != nil {
			sink.printf("skipping duty: %v", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// EventID derives the deterministic namespaced identifier for a duty:
// the title lower-cased and stripped of everything outside [a-z0-9/],
// concatenated with a compact start stamp and the namespace suffix.
// Same title + start always yields the same ID; duties with the same
// title on different days never collide.
func EventID(title string, start time.Time) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '/' {
			b.WriteRune(r)
		}
	}
	b.WriteString(start.Format("200601021504"))
	b.WriteString(Namespace)
	return b.String()
}

// OwnedID extracts this system's namespaced ID from a remote event, via
// its external ID or the description marker line. Empty means foreign.
func OwnedID(re model.RemoteEvent) string {
	if strings.HasSuffix(re.ExternalID, Namespace) {
		return re.ExternalID
	}
	for _, line := range strings.Split(re.Description, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, DescriptionMarker) {
			continue
		}
		id := strings.TrimSpace(strings.TrimPrefix(line, DescriptionMarker))
		if strings.HasSuffix(id, Namespace) {
			return id
		}
	}
	return ""
}

// Sink receives human-readable progress lines for one sync run. A nil
// Sink discards everything.
type Sink func(line string)

func (s Sink) printf(format string, args ...any) {
	if s == nil {
		return
	}
	s(fmt.Sprintf(format, args...))
}
