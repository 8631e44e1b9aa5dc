package domain

import "fmt"

// Band is the qualitative band of a raw parameter value, ordered from best to worst.
type Band int

const (
	BandExcellent Band = iota + 1
	BandGood
	BandModerate
	BandPoor
	BandVeryPoor
)

var bandLabels = map[Band]string{
	BandExcellent: "Excellent",
	BandGood:      "Good",
	BandModerate:  "Moderate",
	BandPoor:      "Poor",
	BandVeryPoor:  "Very Poor",
}

func (b Band) String() string {
	if s, ok := bandLabels[b]; ok {
		return s
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// MarshalText encodes the band label.
func (b Band) MarshalText() ([]byte, error) {
	s, ok := bandLabels[b]
	if !ok {
		return nil, fmt.Errorf("invalid band %d", int(b))
	}
	return []byte(s), nil
}

// Critical reports whether the band triggers alert evaluation.
func (b Band) Critical() bool { return b == BandVeryPoor }

// BandOf places a raw value in its qualitative band. These thresholds are
// independent of the sub-index formulas:
//
//	pH:   (7.0,8.5] Excellent | [6.0,7.0] Good | [5.0,6.0) Moderate | <5.0 Poor | >8.5 Very Poor
//	DO:   >7 | [5,7] | [3,5) | [1,3) | <1            (mg/L)
//	COD:  <10 | <25 | <50 | <100 | ≥100              (mg/L)
//	BOD:  <1 | <3 | <6 | <12 | ≥12                   (mg/L)
//	NH3N: <0.1 | <0.3 | <0.9 | <2.7 | ≥2.7           (mg/L)
//	SS:   <25 | <50 | <150 | <300 | ≥300             (mg/L)
func BandOf(p Parameter, v float64) (Band, error) {
	switch p {
	case ParamPH:
		return phBand(v), nil
	case ParamDO:
		return doBand(v), nil
	case ParamCOD:
		return ascendingBand(v, 10, 25, 50, 100), nil
	case ParamBOD:
		return ascendingBand(v, 1, 3, 6, 12), nil
	case ParamNH3N:
		return ascendingBand(v, 0.1, 0.3, 0.9, 2.7), nil
	case ParamSS:
		return ascendingBand(v, 25, 50, 150, 300), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownParameter, string(p))
	}
}

// phBand is not monotone: both acidic and alkaline water degrade the band,
// but only alkaline water above 8.5 is Very Poor.
func phBand(v float64) Band {
	switch {
	case v > 8.5:
		return BandVeryPoor
	case v > 7.0:
		return BandExcellent
	case v >= 6.0:
		return BandGood
	case v >= 5.0:
		return BandModerate
	default:
		return BandPoor
	}
}

func doBand(v float64) Band {
	switch {
	case v > 7:
		return BandExcellent
	case v >= 5:
		return BandGood
	case v >= 3:
		return BandModerate
	case v >= 1:
		return BandPoor
	default:
		return BandVeryPoor
	}
}

// ascendingBand bands a pollutant concentration where higher is worse.
// Each bound is the exclusive upper limit of its band.
func ascendingBand(v, excellent, good, moderate, poor float64) Band {
	switch {
	case v < excellent:
		return BandExcellent
	case v < good:
		return BandGood
	case v < moderate:
		return BandModerate
	case v < poor:
		return BandPoor
	default:
		return BandVeryPoor
	}
}
