package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Evaluator turns critical readings into pending alerts and pending alerts
// into at most one persisted AlertRecord per AlertKey.
type Evaluator struct {
	store  AlertStore
	locks  *keyedMutex
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator backed by store. When the store does not
// implement AtomicAlertStore, existence checks and inserts are serialized per
// key inside this process.
func NewEvaluator(store AlertStore, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		store:  store,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

// Evaluate bands every parameter of the reading and returns the candidates
// that just became pending in the session. Parameters that are already
// pending or acknowledged are not emitted again.
func (e *Evaluator) Evaluate(s *Session, r Reading) ([]Candidate, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("evaluate reading: %w", err)
	}
	if r.StationID != s.StationID() {
		return nil, fmt.Errorf("%w: reading %q, session %q", ErrSessionStation, r.StationID, s.StationID())
	}

	var emitted []Candidate
	for _, p := range Parameters {
		v, ok := r.Value(p)
		if !ok {
			continue
		}
		band, err := BandOf(p, v)
		if err != nil {
			return nil, err
		}
		if !band.Critical() {
			continue
		}

		c := Candidate{
			Key:   NewAlertKey(r.StationID, p, r.SampleTime),
			Value: v,
			Band:  band,
		}
		if s.observe(c) {
			emitted = append(emitted, c)
		}
	}
	return emitted, nil
}

// Acknowledge is the caller's acknowledgement of a pending parameter. It moves
// the parameter to Acknowledged and records the alert. created is false when
// an alert with the same key was already stored. On a store failure the
// parameter goes back to Pending so the caller may retry.
func (e *Evaluator) Acknowledge(ctx context.Context, s *Session, p Parameter) (rec AlertRecord, created bool, err error) {
	c, gen, err := s.acknowledge(p)
	if err != nil {
		return AlertRecord{}, false, err
	}

	rec, created, err = e.Record(ctx, c)
	if err != nil {
		s.restore(c, gen)
		return AlertRecord{}, false, err
	}
	return rec, created, nil
}

// Acknowledgement is the outcome of acknowledging one pending candidate.
type Acknowledgement struct {
	Candidate Candidate
	Record    AlertRecord
	Created   bool
	Err       error
}

// AcknowledgePending acknowledges every pending parameter of the session.
// Failed acknowledgements stay pending and are reported in the result.
func (e *Evaluator) AcknowledgePending(ctx context.Context, s *Session) []Acknowledgement {
	pending := s.Pending()
	out := make([]Acknowledgement, 0, len(pending))
	for _, c := range pending {
		rec, created, err := e.Acknowledge(ctx, s, c.Key.Parameter)
		if errors.Is(err, ErrNotPending) {
			// Acknowledged concurrently.
			continue
		}
		out = append(out, Acknowledgement{Candidate: c, Record: rec, Created: created, Err: err})
	}
	return out
}

// Record persists the alert of a candidate unless one with the same key
// exists. Concurrent calls for the same key never both insert.
func (e *Evaluator) Record(ctx context.Context, c Candidate) (AlertRecord, bool, error) {
	rec := newAlertRecord(c)

	if atomic, ok := e.store.(AtomicAlertStore); ok {
		inserted, err := atomic.InsertIfAbsent(ctx, rec)
		if err != nil {
			return AlertRecord{}, false, persistenceError(c.Key, err)
		}
		if !inserted {
			e.logSuppressed(c)
			return AlertRecord{}, false, nil
		}
		e.logRecorded(rec)
		return rec, true, nil
	}

	unlock := e.locks.lock(c.Key.String())
	defer unlock()

	exists, err := e.store.Exists(ctx, c.Key)
	if err != nil {
		return AlertRecord{}, false, persistenceError(c.Key, err)
	}
	if exists {
		e.logSuppressed(c)
		return AlertRecord{}, false, nil
	}

	if err := e.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrAlertExists) {
			e.logSuppressed(c)
			return AlertRecord{}, false, nil
		}
		return AlertRecord{}, false, persistenceError(c.Key, err)
	}
	e.logRecorded(rec)
	return rec, true, nil
}

// Recorded returns the stored records keyed by the reading's own critical
// parameters. A redelivered reading gets back the records its first delivery
// stored, with the same IDs. Stores without AlertLookup yield nothing.
func (e *Evaluator) Recorded(ctx context.Context, r Reading) ([]AlertRecord, error) {
	lookup, ok := e.store.(AlertLookup)
	if !ok {
		return nil, nil
	}

	var out []AlertRecord
	for _, p := range Parameters {
		v, ok := r.Value(p)
		if !ok {
			continue
		}
		band, err := BandOf(p, v)
		if err != nil {
			return nil, err
		}
		if !band.Critical() {
			continue
		}

		key := NewAlertKey(r.StationID, p, r.SampleTime)
		rec, found, err := lookup.Get(ctx, key)
		if err != nil {
			return nil, persistenceError(key, err)
		}
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

func persistenceError(key AlertKey, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrAlertPersistenceFailed, key, err)
}

func (e *Evaluator) logSuppressed(c Candidate) {
	e.logger.Debug("duplicate alert suppressed",
		"station_id", c.Key.StationID,
		"parameter", c.Key.Parameter,
		"sample_time", c.Key.SampleTime,
	)
}

func (e *Evaluator) logRecorded(rec AlertRecord) {
	e.logger.Info("alert recorded",
		"alert_id", rec.ID,
		"station_id", rec.Key.StationID,
		"parameter", rec.Key.Parameter,
		"sample_time", rec.Key.SampleTime,
		"value", rec.Value,
		"status", rec.StatusLabel,
	)
}
