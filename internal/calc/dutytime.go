package calc

import (
	"errors"
	"fmt"
	"time"
)

// Flight duty period (FDP) legality for acclimatised crew, following the
// EASA ORO.FTL.205 style table: the maximum FDP depends on the report
// time of day and shrinks by 30 minutes per sector beyond the second,
// floored at 9 hours.

const (
	minSectors = 1
	maxSectors = 10

	sectorPenalty = 30 * time.Minute
	fdpFloor      = 9 * time.Hour

	// Minimum rest is at least as long as the preceding duty and never
	// below 12h at home base / 10h away from it.
	minRestHome = 12 * time.Hour
	minRestAway = 10 * time.Hour
)

// fdpBand maps a report time-of-day range (minutes since midnight,
// inclusive start, exclusive end) to the base max FDP for 1-2 sectors.
type fdpBand struct {
	fromMin int
	toMin   int
	base    time.Duration
}

// Bands cover the full 24h clock. The night band wraps midnight and is
// split in two entries.
var fdpBands = []fdpBand{
	{5 * 60, 5*60 + 15, 12 * time.Hour},
	{5*60 + 15, 5*60 + 30, 12*time.Hour + 15*time.Minute},
	{5*60 + 30, 5*60 + 45, 12*time.Hour + 30*time.Minute},
	{5*60 + 45, 6 * 60, 12*time.Hour + 45*time.Minute},
	{6 * 60, 13*60 + 30, 13 * time.Hour},
	{13*60 + 30, 14 * 60, 12*time.Hour + 45*time.Minute},
	{14 * 60, 14*60 + 30, 12*time.Hour + 30*time.Minute},
	{14*60 + 30, 15 * 60, 12*time.Hour + 15*time.Minute},
	{15 * 60, 15*60 + 30, 12 * time.Hour},
	{15*60 + 30, 16 * 60, 11*time.Hour + 45*time.Minute},
	{16 * 60, 16*60 + 30, 11*time.Hour + 30*time.Minute},
	{16*60 + 30, 17 * 60, 11*time.Hour + 15*time.Minute},
	{17 * 60, 24 * 60, 11 * time.Hour},
	{0, 5 * 60, 11 * time.Hour},
}

// MaxFDP returns the maximum flight duty period for a report at the
// given local time with the given number of sectors.
func MaxFDP(report time.Time, sectors int) (time.Duration, error) {
	if sectors < minSectors || sectors > maxSectors {
		return 0, fmt.Errorf("fdp: sectors must be %d..%d, got %d", minSectors, maxSectors, sectors)
	}

	minute := report.Hour()*60 + report.Minute()
	var (
		base  time.Duration
		found bool
	)
	for _, band := range fdpBands {
		if minute >= band.fromMin && minute < band.toMin {
			base = band.base
			found = true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("fdp: no band for report time %s", report.Format("15:04"))
	}

	if sectors > 2 {
		base -= time.Duration(sectors-2) * sectorPenalty
	}
	if base < fdpFloor {
		base = fdpFloor
	}
	return base, nil
}

// FDPInput describes one legality check.
type FDPInput struct {
	// Report is the duty report (sign-on) time, local.
	Report time.Time `json:"report"`

	// OffDuty is the end of the flight duty period, local.
	OffDuty time.Time `json:"off_duty"`

	Sectors int `json:"sectors"`

	// HomeBase marks rest taken at home base (12h floor) versus away
	// (10h floor).
	HomeBase bool `json:"home_base"`
}

// FDPResult is the outcome of a legality check.
type FDPResult struct {
	FDP     time.Duration `json:"fdp"`
	MaxFDP  time.Duration `json:"max_fdp"`
	Legal   bool          `json:"legal"`
	Margin  time.Duration `json:"margin"`
	MinRest time.Duration `json:"min_rest"`
}

// CheckFDP evaluates one flight duty period against the table and
// computes the minimum rest that must follow it.
func CheckFDP(in FDPInput) (FDPResult, error) {
	if in.Report.IsZero() || in.OffDuty.IsZero() {
		return FDPResult{}, errors.New("fdp: report and off-duty times are required")
	}
	fdp := in.OffDuty.Sub(in.Report)
	if fdp <= 0 {
		return FDPResult{}, errors.New("fdp: off-duty time must be after report time")
	}

	max, err := MaxFDP(in.Report, in.Sectors)
	if err != nil {
		return FDPResult{}, err
	}

	return FDPResult{
		FDP:     fdp,
		MaxFDP:  max,
		Legal:   fdp <= max,
		Margin:  max - fdp,
		MinRest: MinRest(fdp, in.HomeBase),
	}, nil
}

// MinRest returns the minimum rest period after a duty of the given
// length: at least as long as the duty, never below the home/away floor.
func MinRest(precedingDuty time.Duration, homeBase bool) time.Duration {
	floor := minRestAway
	if homeBase {
		floor = minRestHome
	}
	if precedingDuty > floor {
		return precedingDuty
	}
	return floor
}
