package calc

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Cold-temperature altitude correction per the ICAO PANS-OPS (Doc 8168)
// temperature error equation. At temperatures well below ISA the
// barometric altimeter overreads; published minimum altitudes must be
// raised by the true altitude error to preserve obstacle clearance.

const (
	// isaLapseRate is the standard tropospheric lapse rate in °C per foot.
	isaLapseRate = 0.0019812

	// isaSeaLevelTempC is the ISA sea-level temperature.
	isaSeaLevelTempC = 15.0

	// correctionThresholdC: corrections are operationally required at
	// aerodrome temperatures of 0°C and below.
	correctionThresholdC = 0.0
)

// ColdTempInput describes one correction request.
type ColdTempInput struct {
	// AerodromeTempC is the reported aerodrome temperature.
	AerodromeTempC float64 `json:"aerodrome_temp_c"`

	// ElevationFt is the aerodrome elevation.
	ElevationFt float64 `json:"elevation_ft"`

	// AltitudesFt are the published (indicated) altitudes to correct,
	// e.g. MDA, FAF crossing, intermediate stepdowns.
	AltitudesFt []float64 `json:"altitudes_ft"`
}

// Correction is the corrected value for one published altitude.
type Correction struct {
	AltitudeFt   float64 `json:"altitude_ft"`
	HeightFt     float64 `json:"height_ft"`
	CorrectionFt float64 `json:"correction_ft"`
	CorrectedFt  float64 `json:"corrected_ft"`
}

// Required reports whether a correction is operationally required for
// the given aerodrome temperature.
func Required(aerodromeTempC float64) bool {
	return aerodromeTempC <= correctionThresholdC
}

// ColdTempCorrections computes the altitude correction for each published
// altitude. Corrections are rounded up to the next 10 ft (conservative).
// Altitudes at or below the aerodrome elevation are rejected.
func ColdTempCorrections(in ColdTempInput) ([]Correction, error) {
	if len(in.AltitudesFt) == 0 {
		return nil, errors.New("coldtemp: no altitudes given")
	}
	if in.AerodromeTempC < -80 || in.AerodromeTempC > 50 {
		return nil, fmt.Errorf("coldtemp: implausible aerodrome temperature %.1f°C", in.AerodromeTempC)
	}

	altitudes := append([]float64(nil), in.AltitudesFt...)
	sort.Float64s(altitudes)

	out := make([]Correction, 0, len(altitudes))
	for _, alt := range altitudes {
		height := alt - in.ElevationFt
		if height <= 0 {
			return nil, fmt.Errorf("coldtemp: altitude %.0f ft is not above aerodrome elevation %.0f ft",
				alt, in.ElevationFt)
		}

		corr := temperatureError(height, in.AerodromeTempC, in.ElevationFt)
		corr = math.Ceil(corr/10) * 10

		out = append(out, Correction{
			AltitudeFt:   alt,
			HeightFt:     height,
			CorrectionFt: corr,
			CorrectedFt:  alt + corr,
		})
	}
	return out, nil
}

// temperatureError is the Doc 8168 Vol I temperature error equation:
//
//	ΔH = H · (15 − t0) / (273 + t0 − 0.5·L0·(H + H_aerodrome))
//
// with t0 the aerodrome temperature reduced to sea level and L0 the
// standard lapse rate. H is height above the aerodrome. All terms here
// are kept in feet and °C; the lapse-rate products stay dimensionally
// consistent with the published equation.
func temperatureError(heightFt, aerodromeTempC, elevationFt float64) float64 {
	t0 := aerodromeTempC + isaLapseRate*elevationFt
	denom := 273 + t0 - 0.5*isaLapseRate*(heightFt+elevationFt)
	if denom <= 0 {
		// Outside any sane atmosphere; fall back to the 4%-per-10°C rule.
		return heightFt * 0.04 * (isaSeaLevelTempC - t0) / 10
	}
	err := heightFt * (isaSeaLevelTempC - t0) / denom
	if err < 0 {
		return 0
	}
	return err
}
