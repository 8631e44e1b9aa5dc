package domain

import "errors"

var (
	// ErrInvalidReading marks a reading that is missing a required field or
	// carries a non-finite number. The engine never substitutes defaults.
	ErrInvalidReading = errors.New("invalid reading")

	// ErrOutOfRange marks a physically impossible value. Only returned by
	// ValidateRanges; the sub-index formulas accept any finite input.
	ErrOutOfRange = errors.New("value out of range")

	// ErrAlertPersistenceFailed wraps store failures on the exists/insert path.
	ErrAlertPersistenceFailed = errors.New("alert persistence failed")

	// ErrAlertExists is returned by stores when an insert hits an existing key.
	ErrAlertExists = errors.New("alert already recorded")

	// ErrSessionStation is returned when a reading is evaluated against the
	// session of another station.
	ErrSessionStation = errors.New("reading does not belong to session station")

	// ErrNotPending is returned when acknowledging a parameter that has no
	// pending alert in the session.
	ErrNotPending = errors.New("no pending alert for parameter")

	// ErrUnknownParameter is returned for parameter names outside the monitored set.
	ErrUnknownParameter = errors.New("unknown parameter")
)
