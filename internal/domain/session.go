package domain

import (
	"fmt"
	"sync"
	"time"
)

// AlertState is the per-parameter alert state inside a session.
type AlertState int

const (
	StateNormal AlertState = iota
	StatePending
	StateAcknowledged
)

func (s AlertState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StatePending:
		return "pending"
	case StateAcknowledged:
		return "acknowledged"
	default:
		return fmt.Sprintf("AlertState(%d)", int(s))
	}
}

// Candidate is an alert awaiting acknowledgement.
type Candidate struct {
	Key   AlertKey `json:"key"`
	Value float64  `json:"value"`
	Band  Band     `json:"band"`
}

// Session tracks which parameters of one station already raised an alert.
// Each parameter moves Normal → Pending → Acknowledged; Acknowledged is
// terminal until Reset. Sessions are bound to a single station.
type Session struct {
	stationID string

	mu         sync.Mutex
	startedAt  time.Time
	generation uint64
	states     map[Parameter]AlertState
	pending    map[Parameter]Candidate
}

// NewSession starts an empty session for a station.
func NewSession(stationID string) *Session {
	return &Session{
		stationID: stationID,
		startedAt: Now(),
		states:    make(map[Parameter]AlertState),
		pending:   make(map[Parameter]Candidate),
	}
}

// StationID returns the station the session belongs to.
func (s *Session) StationID() string { return s.stationID }

// StartedAt returns when the session was created or last reset.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// State returns the alert state of a parameter.
func (s *Session) State(p Parameter) AlertState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[p]
}

// Pending returns the candidates awaiting acknowledgement in evaluation order.
func (s *Session) Pending() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Candidate, 0, len(s.pending))
	for _, p := range Parameters {
		if c, ok := s.pending[p]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Reset returns every parameter to Normal and drops pending candidates.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.startedAt = Now()
	s.states = make(map[Parameter]AlertState)
	s.pending = make(map[Parameter]Candidate)
}

// observe records a critical candidate. It reports true when the parameter
// just entered Pending. A parameter already pending keeps its state but
// tracks the latest critical reading.
func (s *Session) observe(c Candidate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := c.Key.Parameter
	switch s.states[p] {
	case StateNormal:
		s.states[p] = StatePending
		s.pending[p] = c
		return true
	case StatePending:
		s.pending[p] = c
	}
	return false
}

// acknowledge moves a pending parameter to Acknowledged and hands back its
// candidate together with the session generation.
func (s *Session) acknowledge(p Parameter) (Candidate, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.states[p] != StatePending {
		return Candidate{}, 0, fmt.Errorf("%w: %s is %s", ErrNotPending, p, s.states[p])
	}
	c := s.pending[p]
	delete(s.pending, p)
	s.states[p] = StateAcknowledged
	return c, s.generation, nil
}

// restore puts a candidate back to Pending after a failed acknowledgement,
// unless the session was reset in the meantime.
func (s *Session) restore(c Candidate, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		return
	}
	p := c.Key.Parameter
	s.states[p] = StatePending
	s.pending[p] = c
}

// Sessions holds one session per station.
type Sessions struct {
	mu        sync.Mutex
	byStation map[string]*Session
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{byStation: make(map[string]*Session)}
}

// Get returns the session of a station, starting one if needed.
func (r *Sessions) Get(stationID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byStation[stationID]
	if !ok {
		s = NewSession(stationID)
		r.byStation[stationID] = s
	}
	return s
}

// Lookup returns the session of a station without creating one.
func (r *Sessions) Lookup(stationID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byStation[stationID]
	return s, ok
}

// Reset resets the session of one station. It reports false when the station
// has no session yet.
func (r *Sessions) Reset(stationID string) bool {
	s, ok := r.Lookup(stationID)
	if !ok {
		return false
	}
	s.Reset()
	return true
}

// ResetAll resets every station session.
func (r *Sessions) ResetAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byStation))
	for _, s := range r.byStation {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Reset()
	}
}
