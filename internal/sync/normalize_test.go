package sync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rostercal/internal/model"
	"rostercal/internal/sync"
)

var tokyo = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
	return loc
}()

func newNormalizer(t *testing.T) *sync.Normalizer {
	t.Helper()
	n, err := sync.NewNormalizer(`^JX[0-9]{1,4}\b`)
	require.NoError(t, err)
	return n
}

func TestNormalizeDeterministic(t *testing.T) {
	n := newNormalizer(t)
	rec := model.DutyRecord{
		Name:  "JX101 NRT/TPE",
		Start: time.Date(2025, 3, 1, 9, 0, 0, 0, tokyo),
		End:   time.Date(2025, 3, 1, 13, 0, 0, 0, tokyo),
	}

	first, err := n.Normalize(rec)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := n.Normalize(rec)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}

	assert.Equal(t, "jx101nrt/tpe202503010900@rostercal", first.ID)
	assert.True(t, first.FlightDuty)
}

func TestNormalizeDiscrimination(t *testing.T) {
	n := newNormalizer(t)

	day1 := model.DutyRecord{
		Name:  "JX101 NRT",
		Start: time.Date(2025, 3, 1, 9, 0, 0, 0, tokyo),
		End:   time.Date(2025, 3, 1, 13, 0, 0, 0, tokyo),
	}
	day2 := day1
	day2.Start = day2.Start.AddDate(0, 0, 1)
	day2.End = day2.End.AddDate(0, 0, 1)

	ev1, err := n.Normalize(day1)
	require.NoError(t, err)
	ev2, err := n.Normalize(day2)
	require.NoError(t, err)
	assert.NotEqual(t, ev1.ID, ev2.ID, "same name on different days must not collide")

	other := day1
	other.Name = "JX102 NRT"
	ev3, err := n.Normalize(other)
	require.NoError(t, err)
	assert.NotEqual(t, ev1.ID, ev3.ID, "different names at same start must not collide")
}

func TestNormalizeInvalidDuty(t *testing.T) {
	n := newNormalizer(t)
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, tokyo)

	tests := []struct {
		name string
		rec  model.DutyRecord
	}{
		{"empty name", model.DutyRecord{Name: "   ", Start: start, End: start.Add(time.Hour)}},
		{"zero start", model.DutyRecord{Name: "SBY", End: start}},
		{"zero end", model.DutyRecord{Name: "SBY", Start: start}},
		{"start equals end", model.DutyRecord{Name: "SBY", Start: start, End: start}},
		{"start after end", model.DutyRecord{Name: "SBY", Start: start.Add(time.Hour), End: start}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.rec)
			assert.ErrorIs(t, err, sync.ErrInvalidDuty)
		})
	}
}

func TestNormalizeAllDropsInvalid(t *testing.T) {
	n := newNormalizer(t)
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, tokyo)

	var lines []string
	sink := sync.Sink(func(line string) { lines = append(lines, line) })

	events := n.NormalizeAll([]model.DutyRecord{
		{Name: "JX101 NRT", Start: start, End: start.Add(4 * time.Hour)},
		{Name: "", Start: start, End: start.Add(time.Hour)},
		{Name: "SBY", Start: start.AddDate(0, 0, 1), End: start.AddDate(0, 0, 1).Add(8 * time.Hour)},
	}, sink)

	require.Len(t, events, 2)
	assert.Equal(t, "JX101 NRT", events[0].Title)
	assert.True(t, events[0].FlightDuty)
	assert.Equal(t, "SBY", events[1].Title)
	assert.False(t, events[1].FlightDuty, "standby is not a flight duty")
	assert.Len(t, lines, 1, "one skip line for the invalid record")
}

func TestOwnedID(t *testing.T) {
	owned := model.RemoteEvent{RemoteID: "r1", ExternalID: "jx101202503010900@rostercal"}
	assert.Equal(t, "jx101202503010900@rostercal", sync.OwnedID(owned))

	viaDesc := model.RemoteEvent{
		RemoteID:    "r2",
		Description: "Flight duty\nrostercal-id: jx102202503020900@rostercal\n",
	}
	assert.Equal(t, "jx102202503020900@rostercal", sync.OwnedID(viaDesc))

	foreign := model.RemoteEvent{RemoteID: "r3", Title: "Dentist", Description: "bring card"}
	assert.Empty(t, sync.OwnedID(foreign))

	wrongNamespace := model.RemoteEvent{RemoteID: "r4", ExternalID: "someothertool-123"}
	assert.Empty(t, sync.OwnedID(wrongNamespace))
}
