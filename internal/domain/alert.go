package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertKey is the deduplication identity of an alert. Two records with equal
// keys are the same alert.
type AlertKey struct {
	StationID  string    `json:"station_id"`
	Parameter  Parameter `json:"parameter"`
	SampleTime time.Time `json:"sample_time"`
}

// NewAlertKey normalizes the sample time to UTC at microsecond precision so
// keys compare equal across stores and map lookups.
func NewAlertKey(stationID string, p Parameter, sampleTime time.Time) AlertKey {
	return AlertKey{
		StationID:  stationID,
		Parameter:  p,
		SampleTime: sampleTime.UTC().Truncate(time.Microsecond),
	}
}

func (k AlertKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.StationID, k.Parameter, k.SampleTime.Format(time.RFC3339Nano))
}

// AlertRecord is a persisted alert. It is created once per distinct key and
// never updated in place.
type AlertRecord struct {
	ID          string    `json:"id"`
	Key         AlertKey  `json:"key"`
	Value       float64   `json:"value"`
	StatusLabel string    `json:"status"`
	RaisedAt    time.Time `json:"raised_at"`
}

// AlertFilter narrows an alert history listing. Zero fields match everything.
type AlertFilter struct {
	StationID string
	Parameter Parameter
	Limit     int
}

// AlertStore is the durable record of raised alerts.
type AlertStore interface {
	// Exists reports whether a record with the key was already inserted.
	Exists(ctx context.Context, key AlertKey) (bool, error)

	// Insert persists a new record. Stores with a uniqueness guarantee return
	// ErrAlertExists when the key is taken.
	Insert(ctx context.Context, rec AlertRecord) error
}

// AtomicAlertStore is implemented by stores that can check and insert in one
// step. The evaluator prefers it over Exists+Insert.
type AtomicAlertStore interface {
	AlertStore

	// InsertIfAbsent inserts rec unless its key exists and reports whether it inserted.
	InsertIfAbsent(ctx context.Context, rec AlertRecord) (bool, error)
}

// AlertLookup is implemented by stores that can fetch a record by key.
type AlertLookup interface {
	// Get returns the record stored under key. ok is false when there is none.
	Get(ctx context.Context, key AlertKey) (rec AlertRecord, ok bool, err error)
}

// AlertHistory covers the housekeeping side of a store.
type AlertHistory interface {
	List(ctx context.Context, filter AlertFilter) ([]AlertRecord, error)

	// Clear deletes the history of one station, or of every station when
	// stationID is empty, and returns the number of deleted records.
	Clear(ctx context.Context, stationID string) (int64, error)

	// PurgeBefore deletes records raised before cutoff.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// newAlertRecord builds the record for an acknowledged candidate.
func newAlertRecord(c Candidate) AlertRecord {
	return AlertRecord{
		ID:          uuid.NewString(),
		Key:         c.Key,
		Value:       c.Value,
		StatusLabel: c.Band.String(),
		RaisedAt:    Now(),
	}
}
