package domain

import "fmt"

// Physical limits used by ValidateRanges.
const (
	maxTemperatureC     = 50.0
	minTemperatureC     = -5.0
	maxDOSatPercent     = 500.0
	maxDOMgL            = 50.0
	maxConcentrationMgL = 100000.0
)

// ValidateRanges rejects physically impossible readings with ErrOutOfRange.
// It is an optional boundary check for callers; Assess and the sub-index
// functions accept any finite value.
func ValidateRanges(r Reading) error {
	if err := r.Validate(); err != nil {
		return err
	}

	if r.PH < 0 || r.PH > 14 {
		return rangeError("ph", r.PH, 0, 14)
	}
	if mgL, ok := r.DO.MgL(); ok {
		if mgL < 0 || mgL > maxDOMgL {
			return rangeError("do_mg_l", mgL, 0, maxDOMgL)
		}
	} else if pct := r.DO.Percent(); pct < 0 || pct > maxDOSatPercent {
		return rangeError("do_sat_percent", pct, 0, maxDOSatPercent)
	}
	if t, ok := r.DO.Temperature(); ok && (t < minTemperatureC || t > maxTemperatureC) {
		return rangeError("temperature_c", t, minTemperatureC, maxTemperatureC)
	}

	concentrations := []namedValue{
		{"bod", r.BOD},
		{"cod", r.COD},
		{"ammonia", r.Ammonia},
		{"suspended_solids", r.SuspendedSolids},
	}
	for _, c := range concentrations {
		if c.v < 0 || c.v > maxConcentrationMgL {
			return rangeError(c.name, c.v, 0, maxConcentrationMgL)
		}
	}
	return nil
}

func rangeError(field string, v, lo, hi float64) error {
	return fmt.Errorf("%w: %s=%g outside [%g, %g]", ErrOutOfRange, field, v, lo, hi)
}
