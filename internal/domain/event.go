package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Site holds the descriptive station fields of a raw reading. They do not take
// part in the assessment.
type Site struct {
	NewStationID string `json:"new_station_id,omitempty"`
	Location     string `json:"location,omitempty"`
	Basin        string `json:"basin,omitempty"`
	State        string `json:"state,omitempty"`
}

// Prediction is the river status returned by the external classifier.
type Prediction struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
}

// Assessment is the processed form of one reading, destined for the sink topic.
type Assessment struct {
	ID         string    `json:"id"`
	StationID  string    `json:"station_id"`
	SampleTime time.Time `json:"sample_time"`
	Site       Site      `json:"site"`
	WqiResult

	Prediction       *Prediction `json:"prediction,omitempty"`
	PredictionSource string      `json:"prediction_source,omitempty"` // "model", "failed", "skipped"

	// Alerts raised and persisted while processing this reading.
	Alerts []AlertRecord `json:"alerts,omitempty"`
	// Candidates that became pending and wait for an external acknowledgement.
	PendingAlerts []Candidate `json:"pending_alerts,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}
