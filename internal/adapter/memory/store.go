// Package memory provides an in-process alert store. It keeps no data across
// restarts and is meant for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/river-wqi-etl/internal/domain"
)

// Store implements domain.AlertStore, domain.AlertLookup and
// domain.AlertHistory. It does not offer an atomic insert-if-absent; the
// evaluator serializes per key.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.AlertRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]domain.AlertRecord)}
}

func (s *Store) Exists(_ context.Context, key domain.AlertKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key.String()]
	return ok, nil
}

func (s *Store) Get(_ context.Context, key domain.AlertKey) (domain.AlertRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key.String()]
	return rec, ok, nil
}

// Insert adds rec, returning domain.ErrAlertExists when its key is taken.
func (s *Store) Insert(_ context.Context, rec domain.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := rec.Key.String()
	if _, ok := s.records[k]; ok {
		return domain.ErrAlertExists
	}
	s.records[k] = rec
	return nil
}

// List returns matching records, most recently raised first.
func (s *Store) List(_ context.Context, f domain.AlertFilter) ([]domain.AlertRecord, error) {
	s.mu.RLock()
	out := make([]domain.AlertRecord, 0, len(s.records))
	for _, rec := range s.records {
		if f.StationID != "" && rec.Key.StationID != f.StationID {
			continue
		}
		if f.Parameter != "" && rec.Key.Parameter != f.Parameter {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RaisedAt.Equal(out[j].RaisedAt) {
			return out[i].RaisedAt.After(out[j].RaisedAt)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) Clear(_ context.Context, stationID string) (int64, error) {
	return s.deleteWhere(func(rec domain.AlertRecord) bool {
		return stationID == "" || rec.Key.StationID == stationID
	}), nil
}

func (s *Store) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return s.deleteWhere(func(rec domain.AlertRecord) bool {
		return rec.RaisedAt.Before(cutoff)
	}), nil
}

func (s *Store) deleteWhere(match func(domain.AlertRecord) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, rec := range s.records {
		if match(rec) {
			delete(s.records, k)
			n++
		}
	}
	return n
}
