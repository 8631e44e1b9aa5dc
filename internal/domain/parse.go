package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawReadingRecord is the flat JSON row published by the sensor feed. Keys
// follow the DOE monitoring sheet headers, including the leading space of the
// 2016 station id column.
type RawReadingRecord struct {
	StationID    string      `json:" ID STN (2016)"`
	NewStationID string      `json:"ID STN BARU"`
	State        string      `json:"STATES"`
	Basin        string      `json:"BASIN"`
	Location     string      `json:"LOCATION"`
	SampleDate   string      `json:"SMP-DAT"`
	Time         string      `json:"Time"`
	DO           Measurement `json:"DO"`
	DOSat        Measurement `json:"DO_SAT"`
	BOD          Measurement `json:"BOD"`
	COD          Measurement `json:"COD"`
	SS           Measurement `json:"SS"`
	PH           Measurement `json:"pH"`
	NH3N         Measurement `json:"NH3N"`
	Temp         Measurement `json:"TEMP"`
}

// Measurement is an optional number that accepts JSON numbers and numeric
// strings. Detection-limit prefixes ("<0.01") are stripped; empty strings,
// null and "NaN" mean absent.
type Measurement struct {
	Value float64
	Valid bool
}

func (m *Measurement) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = Measurement{}
		return nil
	}

	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "<"))
		if s == "" || strings.EqualFold(s, "nan") {
			*m = Measurement{}
			return nil
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse measurement %q: %w", s, err)
	}
	*m = Measurement{Value: v, Valid: true}
	return nil
}

func (m Measurement) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

func (m Measurement) ptr() *float64 {
	if !m.Valid {
		return nil
	}
	v := m.Value
	return &v
}

// Measure builds a present measurement.
func Measure(v float64) Measurement {
	return Measurement{Value: v, Valid: true}
}

// ParseRawReading decodes a raw message into a validated Reading and the site
// details that came with it.
func ParseRawReading(raw RawEvent) (Reading, Site, error) {
	var rec RawReadingRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Reading{}, Site{}, fmt.Errorf("%w: parse raw reading: %w", ErrInvalidReading, err)
	}

	stationID := strings.TrimSpace(rec.StationID)
	if stationID == "" || stationID == "-" {
		stationID = strings.TrimSpace(rec.NewStationID)
	}
	if stationID == "" || stationID == "-" {
		return Reading{}, Site{}, fmt.Errorf("%w: station id is missing", ErrInvalidReading)
	}

	in := ReadingInput{
		StationID:       stationID,
		SampleTime:      parseSampleTime(raw.Timestamp, rec.SampleDate, rec.Time),
		TemperatureC:    rec.Temp.ptr(),
		BOD:             rec.BOD.ptr(),
		COD:             rec.COD.ptr(),
		PH:              rec.PH.ptr(),
		Ammonia:         rec.NH3N.ptr(),
		SuspendedSolids: rec.SS.ptr(),
	}
	// The feed usually carries both DO forms. The concentration wins when its
	// temperature is known because the critical bands are defined in mg/L.
	switch {
	case rec.DO.Valid && rec.Temp.Valid:
		in.DOMgL = rec.DO.ptr()
	case rec.DOSat.Valid:
		in.DOSatPercent = rec.DOSat.ptr()
	case rec.DO.Valid:
		in.DOMgL = rec.DO.ptr()
	}

	r, err := NewReading(in)
	if err != nil {
		return Reading{}, Site{}, err
	}

	site := Site{
		NewStationID: strings.TrimSpace(rec.NewStationID),
		Location:     strings.TrimSpace(rec.Location),
		Basin:        strings.TrimSpace(rec.Basin),
		State:        strings.TrimSpace(rec.State),
	}
	return r, site, nil
}

var sampleDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02-Jan-06",
	"02-Jan-2006",
	"2/1/06",
}

// parseSampleTime combines the sample date and time-of-day columns into a UTC
// time. A missing or unparseable date falls back to the date of base, and a
// missing time of day keeps midnight. When both columns are unusable the base
// timestamp is returned unchanged.
func parseSampleTime(base time.Time, date, clockTime string) time.Time {
	day, dateOK := parseSampleDate(date)
	hour, minute, second, timeOK := parseClock(clockTime)

	if !dateOK && !timeOK {
		return base.UTC()
	}
	if !dateOK {
		b := base.UTC()
		day = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	}
	if !timeOK {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, time.UTC)
}

func parseSampleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range sampleDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseClock accepts "15:04", "15:04:05", "1504" and "930".
func parseClock(s string) (hour, minute, second int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, 0, false
	}

	if strings.Contains(s, ":") {
		for _, layout := range []string{"15:04:05", "15:04", "3:04 PM", "3:04PM"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Hour(), t.Minute(), t.Second(), true
			}
		}
		return 0, 0, 0, false
	}

	if len(s) == 3 {
		s = "0" + s
	}
	if len(s) != 4 {
		return 0, 0, 0, false
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[2:])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, 0, false
	}
	return h, m, 0, true
}

// AssessmentID derives a deterministic assessment ID from the station and
// sample time so that replays of the same reading produce the same ID. The
// time keeps the microsecond precision of AlertKey.
func AssessmentID(stationID string, sampleTime time.Time) string {
	input := fmt.Sprintf("%s|%s", stationID, sampleTime.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano))
	hash := sha256.Sum256([]byte(input))
	return "wqi-" + hex.EncodeToString(hash[:8])
}
