package domain

import "fmt"

// Class is the five-level DOE river class. ClassI is the cleanest.
type Class int

const (
	ClassI Class = iota + 1
	ClassII
	ClassIII
	ClassIV
	ClassV
)

var classNames = map[Class]string{
	ClassI:   "I",
	ClassII:  "II",
	ClassIII: "III",
	ClassIV:  "IV",
	ClassV:   "V",
}

func (c Class) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// MarshalText encodes the class as its roman numeral.
func (c Class) MarshalText() ([]byte, error) {
	s, ok := classNames[c]
	if !ok {
		return nil, fmt.Errorf("invalid class %d", int(c))
	}
	return []byte(s), nil
}

// UnmarshalText decodes a roman numeral class.
func (c *Class) UnmarshalText(b []byte) error {
	for k, v := range classNames {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("invalid class %q", b)
}

// Status is the coarse three-band river status.
type Status string

const (
	StatusPolluted         Status = "Polluted"
	StatusSlightlyPolluted Status = "Slightly Polluted"
	StatusClean            Status = "Clean"
)

// ClassifyWQI maps a WQI to its DOE class:
//
//	≥92 I, ≥76 II, ≥51 III, ≥31 IV, else V
func ClassifyWQI(wqi float64) Class {
	switch {
	case wqi >= 92:
		return ClassI
	case wqi >= 76:
		return ClassII
	case wqi >= 51:
		return ClassIII
	case wqi >= 31:
		return ClassIV
	default:
		return ClassV
	}
}

// StatusOf maps a WQI to the river status. Lower bounds are inclusive:
//
//	≥80 Clean, ≥60 Slightly Polluted, else Polluted
func StatusOf(wqi float64) Status {
	switch {
	case wqi >= 80:
		return StatusClean
	case wqi >= 60:
		return StatusSlightlyPolluted
	default:
		return StatusPolluted
	}
}
