package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"rostercal/internal/model"
	"rostercal/internal/sync"
)

// extPropKey is the private extended-property key carrying the namespaced
// event ID on events this system created.
const extPropKey = "rostercalId"

// pageSize bounds one listing page; the reconciler loops continuation
// tokens until the listing is exhausted.
const pageSize = 2500

// Client implements sync.Calendar on the Google Calendar API, scoped to
// one calendar. Duty times are sent with an explicit IANA zone so the
// source data's timezone-less timestamps never get converted twice.
type Client struct {
	svc             *calendar.Service
	calendarID      string
	timezone        string
	reminderMinutes []int
}

var _ sync.Calendar = (*Client)(nil)

// New builds a Client from loaded credentials.
func New(ctx context.Context, creds *Credentials, calendarID, timezone string, reminderMinutes []int) (*Client, error) {
	svc, err := calendar.NewService(ctx, option.WithTokenSource(creds.TokenSource()))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return &Client{
		svc:             svc,
		calendarID:      calendarID,
		timezone:        timezone,
		reminderMinutes: reminderMinutes,
	}, nil
}

// ListPage returns one page of remote events overlapping the window,
// soft-deleted entries included so stale duties can still be pruned.
func (c *Client) ListPage(ctx context.Context, window model.Window, pageToken string) ([]model.RemoteEvent, string, error) {
	call := c.svc.Events.List(c.calendarID).
		TimeMin(window.Start.Format(time.RFC3339)).
		TimeMax(window.End.Format(time.RFC3339)).
		ShowDeleted(true).
		SingleEvents(true).
		MaxResults(pageSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, "", err
	}

	events := make([]model.RemoteEvent, 0, len(resp.Items))
	for _, it := range resp.Items {
		re := model.RemoteEvent{
			RemoteID:    it.Id,
			Title:       it.Summary,
			Description: it.Description,
			Cancelled:   it.Status == "cancelled",
		}
		if it.ExtendedProperties != nil && it.ExtendedProperties.Private != nil {
			re.ExternalID = it.ExtendedProperties.Private[extPropKey]
		}
		events = append(events, re)
	}
	return events, resp.NextPageToken, nil
}

func (c *Client) Insert(ctx context.Context, ev model.Event, externalID string) (string, error) {
	created, err := c.svc.Events.Insert(c.calendarID, c.toGoogleEvent(ev, externalID)).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func (c *Client) Update(ctx context.Context, remoteID string, ev model.Event) error {
	_, err := c.svc.Events.Update(c.calendarID, remoteID, c.toGoogleEvent(ev, ev.ID)).Context(ctx).Do()
	return err
}

// Delete removes a remote event; an already-gone event is success so a
// retried run after partial completion stays idempotent.
func (c *Client) Delete(ctx context.Context, remoteID string) error {
	err := c.svc.Events.Delete(c.calendarID, remoteID).Context(ctx).Do()
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound, http.StatusGone:
			return nil
		}
	}
	return err
}

func (c *Client) toGoogleEvent(ev model.Event, externalID string) *calendar.Event {
	ge := &calendar.Event{
		Summary:     ev.Title,
		Description: sync.DescriptionMarker + externalID,
		Start: &calendar.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: c.timezone,
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{extPropKey: externalID},
		},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			ForceSendFields: []string{"UseDefault"},
		},
	}

	if ev.FlightDuty {
		overrides := make([]*calendar.EventReminder, 0, len(c.reminderMinutes))
		for _, m := range c.reminderMinutes {
			overrides = append(overrides, &calendar.EventReminder{
				Method:  "popup",
				Minutes: int64(m),
			})
		}
		ge.Reminders.Overrides = overrides
	}

	return ge
}
