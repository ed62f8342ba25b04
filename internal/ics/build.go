package ics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ical "github.com/arran4/golang-ical"

	"rostercal/internal/model"
)

// prodID identifies this exporter in generated calendars.
const prodID = "-//rostercal//roster export//EN"

// Build renders canonical events into a VCALENDAR payload. Event IDs
// double as UIDs so a re-imported file lines up with the sync namespace.
// Flight duties get a display alarm per configured reminder offset.
func Build(events []model.Event, reminderMinutes []int) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	now := time.Now().UTC()

	for _, ev := range events {
		if ev.ID == "" {
			return nil, errors.New("ics: event without ID")
		}

		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now)
		ve.SetSummary(ev.Title)
		ve.SetStartAt(ev.Start.UTC())
		ve.SetEndAt(ev.End.UTC())

		if !ev.FlightDuty {
			continue
		}
		for _, m := range reminderMinutes {
			alarm := ve.AddAlarm()
			alarm.SetProperty(ical.ComponentProperty(ical.PropertyAction), "DISPLAY")
			alarm.SetProperty(ical.ComponentProperty(ical.PropertyDescription), ev.Title)
			alarm.SetProperty(ical.ComponentProperty(ical.PropertyTrigger), fmt.Sprintf("-PT%dM", m))
		}
	}

	return []byte(cal.Serialize()), nil
}

// FileWriter persists built calendars to a fixed path so the web UI can
// serve the latest export.
type FileWriter struct {
	Path            string
	ReminderMinutes []int
}

// WriteEvents builds and writes the calendar file atomically (temp file
// + rename in the target directory).
func (w *FileWriter) WriteEvents(events []model.Event) error {
	if w.Path == "" {
		return errors.New("ics: output path is empty")
	}

	data, err := Build(events, w.ReminderMinutes)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".rostercal-ics-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpName, w.Path)
}
