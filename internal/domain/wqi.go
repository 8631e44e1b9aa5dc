package domain

import "fmt"

// Sub-index weights of the DOE WQI. They sum to 1.00.
const (
	weightDO  = 0.22
	weightBOD = 0.19
	weightCOD = 0.16
	weightAN  = 0.15
	weightSS  = 0.16
	weightPH  = 0.12
)

// WqiResult is the assessment of one reading.
type WqiResult struct {
	Value      float64     `json:"wqi"`
	Subindexes SubindexSet `json:"subindexes"`
	Class      Class       `json:"class"`
	Status     Status      `json:"status"`
	DOPercent  float64     `json:"do_percent_saturation"`
}

// AggregateWQI combines six sub-indices into a WQI in [0,100].
func AggregateWQI(si SubindexSet) float64 {
	wqi := weightDO*si.DO +
		weightBOD*si.BOD +
		weightCOD*si.COD +
		weightAN*si.AN +
		weightSS*si.SS +
		weightPH*si.PH
	return clampScore(wqi)
}

// Assess computes the WQI of a reading and labels it with both bandings.
// It fails with ErrInvalidReading for structurally invalid readings.
func Assess(r Reading) (WqiResult, error) {
	if err := r.Validate(); err != nil {
		return WqiResult{}, fmt.Errorf("assess reading: %w", err)
	}

	si := ComputeSubindexes(r)
	v := AggregateWQI(si)
	return WqiResult{
		Value:      v,
		Subindexes: si,
		Class:      ClassifyWQI(v),
		Status:     StatusOf(v),
		DOPercent:  r.DO.Percent(),
	}, nil
}
