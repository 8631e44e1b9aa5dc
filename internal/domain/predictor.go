package domain

import (
	"context"
	"log/slog"
)

// PredictionFeatures is the feature vector of the river status classifier.
// Field names match the classifier's training columns.
type PredictionFeatures struct {
	DO    float64 `json:"DO"`
	DOSat float64 `json:"DO_SAT"`
	BOD   float64 `json:"BOD"`
	COD   float64 `json:"COD"`
	SS    float64 `json:"SS"`
	PH    float64 `json:"pH"`
	NH3N  float64 `json:"NH3N"`
	Temp  float64 `json:"TEMP"`
}

// Predictor classifies a reading into a river status with an external model.
type Predictor interface {
	Predict(ctx context.Context, features PredictionFeatures) (Prediction, error)
}

// FeaturesOf builds the classifier features of a reading. Both DO forms and
// the temperature are required; a saturation reading without temperature
// cannot be converted and reports false.
func FeaturesOf(r Reading) (PredictionFeatures, bool) {
	temp, ok := r.DO.Temperature()
	if !ok {
		return PredictionFeatures{}, false
	}

	pct := r.DO.Percent()
	mgL, isConc := r.DO.MgL()
	if !isConc {
		mgL = pct / 100 * DOSaturation(temp)
	}

	return PredictionFeatures{
		DO:    mgL,
		DOSat: pct,
		BOD:   r.BOD,
		COD:   r.COD,
		SS:    r.SuspendedSolids,
		PH:    r.PH,
		NH3N:  r.Ammonia,
		Temp:  temp,
	}, true
}

// EnrichWithPrediction attaches the classifier's river status to an
// assessment. A nil predictor leaves the assessment untouched; incomplete
// features or a failed call are recorded in PredictionSource and never fail
// the assessment.
func EnrichWithPrediction(ctx context.Context, a Assessment, r Reading, predictor Predictor, logger *slog.Logger) Assessment {
	if predictor == nil {
		return a
	}

	features, ok := FeaturesOf(r)
	if !ok {
		a.PredictionSource = "skipped"
		return a
	}

	p, err := predictor.Predict(ctx, features)
	if err != nil {
		logger.Warn("river status prediction failed",
			"assessment_id", a.ID,
			"station_id", a.StationID,
			"error", err,
		)
		a.PredictionSource = "failed"
		return a
	}

	a.Prediction = &p
	a.PredictionSource = "model"
	return a
}
