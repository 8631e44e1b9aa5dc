package domain

import "math"

// SubindexSet holds the six DOE sub-index scores of one reading, each in [0,100].
type SubindexSet struct {
	DO  float64 `json:"si_do"`
	BOD float64 `json:"si_bod"`
	COD float64 `json:"si_cod"`
	AN  float64 `json:"si_an"`
	SS  float64 `json:"si_ss"`
	PH  float64 `json:"si_ph"`
}

// ComputeSubindexes scores every parameter of a reading. The reading is
// assumed valid; Assess validates before calling it.
func ComputeSubindexes(r Reading) SubindexSet {
	return SubindexSet{
		DO:  SubindexDO(r.DO.Percent()),
		BOD: SubindexBOD(r.BOD),
		COD: SubindexCOD(r.COD),
		AN:  SubindexAN(r.Ammonia),
		SS:  SubindexSS(r.SuspendedSolids),
		PH:  SubindexPH(r.PH),
	}
}

// DOSaturation returns the oxygen saturation concentration in mg/L of fresh
// water at 1 atm for the given temperature in °C.
func DOSaturation(tempC float64) float64 {
	t := tempC
	return 14.652 - 0.41022*t + 0.0079910*t*t - 0.000077774*t*t*t
}

// DOPercentSaturation converts a DO concentration to percent saturation.
// A zero saturation concentration yields 0 rather than dividing by zero.
func DOPercentSaturation(doMgL, tempC float64) float64 {
	sat := DOSaturation(tempC)
	if sat == 0 {
		return 0
	}
	return doMgL / sat * 100
}

// SubindexDO scores dissolved oxygen given as percent saturation.
func SubindexDO(x float64) float64 {
	switch {
	case x <= 8:
		return 0
	case x >= 92:
		return 100
	default:
		return clampScore(-0.395 + 0.030*x*x - 0.00020*x*x*x)
	}
}

// SubindexBOD scores biochemical oxygen demand in mg/L.
func SubindexBOD(x float64) float64 {
	if x <= 5 {
		return clampScore(100.4 - 4.23*x)
	}
	return clampScore(108*math.Exp(-0.055*x) - 0.1*x)
}

// SubindexCOD scores chemical oxygen demand in mg/L.
func SubindexCOD(x float64) float64 {
	if x <= 20 {
		return clampScore(-1.33*x + 99.1)
	}
	return clampScore(103*math.Exp(-0.0157*x) - 0.04*x)
}

// SubindexAN scores ammoniacal nitrogen in mg/L.
func SubindexAN(x float64) float64 {
	switch {
	case x <= 0.3:
		return clampScore(100.5 - 105*x)
	case x < 4:
		return clampScore(94*math.Exp(-0.573*x) - 5*math.Abs(x-2))
	default:
		return 0
	}
}

// SubindexSS scores suspended solids in mg/L.
func SubindexSS(x float64) float64 {
	switch {
	case x <= 100:
		return clampScore(97.5*math.Exp(-0.00676*x) + 0.05*x)
	case x < 1000:
		return clampScore(71*math.Exp(-0.0016*x) - 0.015*x)
	default:
		return 0
	}
}

// SubindexPH scores pH.
func SubindexPH(x float64) float64 {
	switch {
	case x < 5.5:
		return clampScore(17.2 - 17.2*x + 5.02*x*x)
	case x < 7.0:
		return clampScore(-242 + 95.5*x - 6.67*x*x)
	case x < 8.75:
		return clampScore(-181 + 82.4*x - 6.05*x*x)
	default:
		return clampScore(536 - 77.0*x + 2.76*x*x)
	}
}

// clampScore bounds a score to [0,100].
func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
