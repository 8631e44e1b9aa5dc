package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Parameter names a monitored water-quality parameter.
type Parameter string

const (
	ParamPH   Parameter = "pH"
	ParamDO   Parameter = "DO"
	ParamCOD  Parameter = "COD"
	ParamBOD  Parameter = "BOD"
	ParamNH3N Parameter = "NH3N"
	ParamSS   Parameter = "SS"
)

// Parameters lists the alert-evaluated parameters in evaluation order.
var Parameters = []Parameter{ParamPH, ParamDO, ParamCOD, ParamBOD, ParamNH3N, ParamSS}

// ParseParameter resolves a parameter name case-insensitively.
// "NH3-N" and "AN" are accepted as aliases for ammoniacal nitrogen.
func ParseParameter(s string) (Parameter, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PH":
		return ParamPH, nil
	case "DO":
		return ParamDO, nil
	case "COD":
		return ParamCOD, nil
	case "BOD":
		return ParamBOD, nil
	case "NH3N", "NH3-N", "AN":
		return ParamNH3N, nil
	case "SS":
		return ParamSS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownParameter, s)
	}
}

// Unit returns the display unit of the parameter's raw value.
func (p Parameter) Unit() string {
	if p == ParamPH {
		return ""
	}
	return "mg/L"
}

type doForm uint8

const (
	doMissing doForm = iota
	doConcentration
	doSaturation
)

// DissolvedOxygen holds exactly one form of the DO measurement: a mg/L
// concentration with its water temperature, or a percent saturation. The zero
// value means DO is absent, which makes the reading invalid.
type DissolvedOxygen struct {
	form    doForm
	value   float64
	tempC   float64
	hasTemp bool
}

// DOConcentration builds a mg/L measurement. Temperature is required to
// derive percent saturation.
func DOConcentration(mgL, tempC float64) DissolvedOxygen {
	return DissolvedOxygen{form: doConcentration, value: mgL, tempC: tempC, hasTemp: true}
}

// DOSaturationPercent builds a percent-saturation measurement.
func DOSaturationPercent(percent float64) DissolvedOxygen {
	return DissolvedOxygen{form: doSaturation, value: percent}
}

// WithTemperature attaches an informational water temperature to a
// saturation measurement. Concentrations already carry one.
func (d DissolvedOxygen) WithTemperature(tempC float64) DissolvedOxygen {
	d.tempC = tempC
	d.hasTemp = true
	return d
}

// IsSet reports whether a DO form is present.
func (d DissolvedOxygen) IsSet() bool { return d.form != doMissing }

// MgL returns the concentration when the reading carries DO in mg/L.
func (d DissolvedOxygen) MgL() (float64, bool) {
	return d.value, d.form == doConcentration
}

// Temperature returns the water temperature in °C when known.
func (d DissolvedOxygen) Temperature() (float64, bool) {
	return d.tempC, d.hasTemp
}

// Percent returns DO as percent saturation, converting a concentration with
// its temperature. Only meaningful when IsSet.
func (d DissolvedOxygen) Percent() float64 {
	if d.form == doConcentration {
		return DOPercentSaturation(d.value, d.tempC)
	}
	return d.value
}

// Reading is one validated sample from a monitoring station. It is passed by
// value and never mutated after construction.
type Reading struct {
	StationID       string
	SampleTime      time.Time
	DO              DissolvedOxygen
	BOD             float64
	COD             float64
	PH              float64
	Ammonia         float64
	SuspendedSolids float64
}

// ReadingInput is the loosely populated form of a reading, with every numeric
// field optional so that missing values can be told apart from zeros.
type ReadingInput struct {
	StationID       string    `json:"station_id"`
	SampleTime      time.Time `json:"sample_time"`
	DOMgL           *float64  `json:"do_mg_l,omitempty"`
	DOSatPercent    *float64  `json:"do_sat_percent,omitempty"`
	TemperatureC    *float64  `json:"temperature_c,omitempty"`
	BOD             *float64  `json:"bod"`
	COD             *float64  `json:"cod"`
	PH              *float64  `json:"ph"`
	Ammonia         *float64  `json:"ammonia"`
	SuspendedSolids *float64  `json:"suspended_solids"`
}

// NewReading validates an input and builds a Reading. Exactly one DO form must
// be present; DO in mg/L requires a temperature.
func NewReading(in ReadingInput) (Reading, error) {
	var do DissolvedOxygen
	switch {
	case in.DOMgL != nil && in.DOSatPercent != nil:
		return Reading{}, fmt.Errorf("%w: both do_mg_l and do_sat_percent present", ErrInvalidReading)
	case in.DOMgL != nil:
		if in.TemperatureC == nil {
			return Reading{}, fmt.Errorf("%w: temperature_c is required with do_mg_l", ErrInvalidReading)
		}
		do = DOConcentration(*in.DOMgL, *in.TemperatureC)
	case in.DOSatPercent != nil:
		do = DOSaturationPercent(*in.DOSatPercent)
		if in.TemperatureC != nil {
			do = do.WithTemperature(*in.TemperatureC)
		}
	default:
		return Reading{}, fmt.Errorf("%w: neither do_mg_l nor do_sat_percent present", ErrInvalidReading)
	}

	required := []struct {
		name string
		v    *float64
	}{
		{"bod", in.BOD},
		{"cod", in.COD},
		{"ph", in.PH},
		{"ammonia", in.Ammonia},
		{"suspended_solids", in.SuspendedSolids},
	}
	for _, f := range required {
		if f.v == nil {
			return Reading{}, fmt.Errorf("%w: %s is required", ErrInvalidReading, f.name)
		}
	}

	r := Reading{
		StationID:       strings.TrimSpace(in.StationID),
		SampleTime:      in.SampleTime,
		DO:              do,
		BOD:             *in.BOD,
		COD:             *in.COD,
		PH:              *in.PH,
		Ammonia:         *in.Ammonia,
		SuspendedSolids: *in.SuspendedSolids,
	}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate checks the structural invariants of a reading: a DO form is
// present and every numeric field is finite. Physical ranges are not checked
// here, see ValidateRanges.
func (r Reading) Validate() error {
	if !r.DO.IsSet() {
		return fmt.Errorf("%w: dissolved oxygen is missing", ErrInvalidReading)
	}
	fields := []namedValue{
		{"do", r.DO.value},
		{"bod", r.BOD},
		{"cod", r.COD},
		{"ph", r.PH},
		{"ammonia", r.Ammonia},
		{"suspended_solids", r.SuspendedSolids},
	}
	if t, ok := r.DO.Temperature(); ok {
		fields = append(fields, namedValue{"temperature_c", t})
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidReading, f.name)
		}
	}
	return nil
}

type namedValue struct {
	name string
	v    float64
}

// Value returns the raw value of a monitored parameter. DO is only available
// as a concentration; a saturation-only reading reports false for ParamDO.
func (r Reading) Value(p Parameter) (float64, bool) {
	switch p {
	case ParamPH:
		return r.PH, true
	case ParamDO:
		return r.DO.MgL()
	case ParamCOD:
		return r.COD, true
	case ParamBOD:
		return r.BOD, true
	case ParamNH3N:
		return r.Ammonia, true
	case ParamSS:
		return r.SuspendedSolids, true
	default:
		return 0, false
	}
}
