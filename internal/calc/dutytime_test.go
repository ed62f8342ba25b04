package calc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rostercal/internal/calc"
)

func reportAt(hour, min int) time.Time {
	return time.Date(2025, 3, 1, hour, min, 0, 0, time.UTC)
}

func TestMaxFDPBands(t *testing.T) {
	tests := []struct {
		hour, min int
		sectors   int
		want      time.Duration
	}{
		{6, 0, 1, 13 * time.Hour},
		{13, 29, 2, 13 * time.Hour},
		{13, 30, 1, 12*time.Hour + 45*time.Minute},
		{15, 0, 1, 12 * time.Hour},
		{17, 0, 1, 11 * time.Hour},
		{2, 0, 1, 11 * time.Hour},  // night wrap
		{5, 0, 1, 12 * time.Hour},  // early-start recovery
		{5, 45, 1, 12*time.Hour + 45*time.Minute},
		{6, 0, 4, 12 * time.Hour},  // 2 extra sectors, -1h
		{6, 0, 10, 9 * time.Hour},  // floored
		{17, 0, 10, 9 * time.Hour}, // floor holds on short bands too
	}

	for _, tt := range tests {
		got, err := calc.MaxFDP(reportAt(tt.hour, tt.min), tt.sectors)
		require.NoError(t, err, "%02d:%02d x%d", tt.hour, tt.min, tt.sectors)
		assert.Equal(t, tt.want, got, "%02d:%02d x%d", tt.hour, tt.min, tt.sectors)
	}
}

func TestMaxFDPBandsCoverFullClock(t *testing.T) {
	for minute := 0; minute < 24*60; minute++ {
		got, err := calc.MaxFDP(reportAt(minute/60, minute%60), 1)
		require.NoError(t, err, "%02d:%02d", minute/60, minute%60)
		assert.Positive(t, got, "%02d:%02d", minute/60, minute%60)
	}
}

func TestMaxFDPSectorValidation(t *testing.T) {
	_, err := calc.MaxFDP(reportAt(6, 0), 0)
	assert.Error(t, err)
	_, err = calc.MaxFDP(reportAt(6, 0), 11)
	assert.Error(t, err)
}

func TestCheckFDP(t *testing.T) {
	in := calc.FDPInput{
		Report:   reportAt(6, 0),
		OffDuty:  reportAt(18, 30),
		Sectors:  4,
		HomeBase: true,
	}

	res, err := calc.CheckFDP(in)
	require.NoError(t, err)

	assert.Equal(t, 12*time.Hour+30*time.Minute, res.FDP)
	assert.Equal(t, 12*time.Hour, res.MaxFDP)
	assert.False(t, res.Legal)
	assert.Equal(t, -30*time.Minute, res.Margin)
	// Rest must cover the preceding duty since it exceeds the 12h floor.
	assert.Equal(t, res.FDP, res.MinRest)

	in.OffDuty = reportAt(17, 0)
	res, err = calc.CheckFDP(in)
	require.NoError(t, err)
	assert.True(t, res.Legal)
	assert.Equal(t, time.Hour, res.Margin)
	assert.Equal(t, 12*time.Hour, res.MinRest, "floor applies when duty is shorter")
}

func TestCheckFDPValidation(t *testing.T) {
	_, err := calc.CheckFDP(calc.FDPInput{})
	assert.Error(t, err)

	_, err = calc.CheckFDP(calc.FDPInput{
		Report:  reportAt(10, 0),
		OffDuty: reportAt(9, 0),
		Sectors: 2,
	})
	assert.Error(t, err)
}

func TestMinRest(t *testing.T) {
	assert.Equal(t, 12*time.Hour, calc.MinRest(8*time.Hour, true))
	assert.Equal(t, 10*time.Hour, calc.MinRest(8*time.Hour, false))
	assert.Equal(t, 13*time.Hour, calc.MinRest(13*time.Hour, true))
	assert.Equal(t, 11*time.Hour, calc.MinRest(11*time.Hour, false))
}
