package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokyoLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func TestParseDuty(t *testing.T) {
	loc := tokyoLoc(t)

	rec, err := parseDuty(rawDuty{
		Name:  " JX101 NRT/TPE ",
		Start: "2025-03-01 09:00",
		End:   "2025-03-01 13:00",
	}, loc)
	require.NoError(t, err)

	assert.Equal(t, "JX101 NRT/TPE", rec.Name)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, loc), rec.Start)
	assert.Equal(t, time.Date(2025, 3, 1, 13, 0, 0, 0, loc), rec.End)
}

func TestParseDutyOvernightRollover(t *testing.T) {
	loc := tokyoLoc(t)

	// Portal omits the date on the end cell for overnight duties on some
	// layouts; the end lands on the same date and must be bumped a day.
	rec, err := parseDuty(rawDuty{
		Name:  "JX205 TPE/NRT",
		Start: "2025-03-01 22:00",
		End:   "2025-03-01 04:30",
	}, loc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 2, 4, 30, 0, 0, loc), rec.End)
	assert.True(t, rec.Start.Before(rec.End))
}

func TestParseDutyErrors(t *testing.T) {
	loc := tokyoLoc(t)

	tests := []struct {
		name string
		row  rawDuty
	}{
		{"empty name", rawDuty{Name: "  ", Start: "2025-03-01 09:00", End: "2025-03-01 13:00"}},
		{"bad start", rawDuty{Name: "SBY", Start: "garbage", End: "2025-03-01 13:00"}},
		{"bad end", rawDuty{Name: "SBY", Start: "2025-03-01 09:00", End: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDuty(tt.row, loc)
			assert.Error(t, err)
		})
	}
}

func TestParseDutiesDropsBadRows(t *testing.T) {
	loc := tokyoLoc(t)

	duties := parseDuties([]rawDuty{
		{Name: "JX101 NRT", Start: "2025-03-01 09:00", End: "2025-03-01 13:00"},
		{Name: "", Start: "2025-03-02 09:00", End: "2025-03-02 13:00"},
		{Name: "SBY", Start: "2025-03-03 06:00", End: "2025-03-03 14:00"},
	}, loc)

	require.Len(t, duties, 2)
	assert.Equal(t, "JX101 NRT", duties[0].Name)
	assert.Equal(t, "SBY", duties[1].Name)
}

func TestParseMonthLabel(t *testing.T) {
	loc := tokyoLoc(t)

	for _, label := range []string{"2025-03", " Mar 2025 ", "March 2025", "2025/03"} {
		got, err := parseMonthLabel(label, loc)
		require.NoError(t, err, "label %q", label)
		assert.Equal(t, "2025-03", got.Format("2006-01"))
	}

	_, err := parseMonthLabel("Week 12", loc)
	assert.Error(t, err)
}
