package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/couchcryptid/river-wqi-etl/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
)

const (
	maxRequestBody   = 1 << 20
	defaultListLimit = 100
)

// API serves the calculator and the alert session endpoints.
type API struct {
	sessions       *domain.Sessions
	evaluator      *domain.Evaluator
	history        domain.AlertHistory
	validateRanges bool
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// APIOptions configures NewAPI.
type APIOptions struct {
	// ValidateRanges makes the calculator reject physically impossible values.
	ValidateRanges bool
}

// NewAPI creates the /v1 handlers. history may be nil, which disables the
// alert history routes.
func NewAPI(sessions *domain.Sessions, evaluator *domain.Evaluator, history domain.AlertHistory, opts APIOptions, metrics *observability.Metrics, logger *slog.Logger) *API {
	return &API{
		sessions:       sessions,
		evaluator:      evaluator,
		history:        history,
		validateRanges: opts.ValidateRanges,
		metrics:        metrics,
		logger:         logger,
	}
}

func (a *API) routes(r chi.Router) {
	r.Post("/wqi", a.handleComputeWQI)
	r.Route("/stations/{station}", func(r chi.Router) {
		r.Get("/alerts/pending", a.handlePending)
		r.Post("/alerts/{parameter}/ack", a.handleAcknowledge)
		r.Post("/session/reset", a.handleResetSession)
	})
	if a.history != nil {
		r.Get("/alerts", a.handleListAlerts)
		r.Delete("/alerts", a.handleClearAlerts)
	}
}

func (a *API) handleComputeWQI(w http.ResponseWriter, r *http.Request) {
	var in domain.ReadingInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode reading: %w", err))
		return
	}

	reading, err := domain.NewReading(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if a.validateRanges {
		if err := domain.ValidateRanges(reading); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	result, err := domain.Assess(reading)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, result)
}

type pendingResponse struct {
	StationID string             `json:"station_id"`
	Pending   []domain.Candidate `json:"pending"`
}

func (a *API) handlePending(w http.ResponseWriter, r *http.Request) {
	station := chi.URLParam(r, "station")
	resp := pendingResponse{StationID: station, Pending: []domain.Candidate{}}
	if s, ok := a.sessions.Lookup(station); ok {
		resp.Pending = s.Pending()
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

type ackResponse struct {
	Status string              `json:"status"` // "recorded" or "duplicate"
	Record *domain.AlertRecord `json:"record,omitempty"`
}

func (a *API) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	station := chi.URLParam(r, "station")
	param, err := domain.ParseParameter(chi.URLParam(r, "parameter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s, ok := a.sessions.Lookup(station)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: no session for station %q", domain.ErrNotPending, station))
		return
	}

	rec, created, err := a.evaluator.Acknowledge(r.Context(), s, param)
	switch {
	case errors.Is(err, domain.ErrNotPending):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, domain.ErrAlertPersistenceFailed):
		a.metrics.AlertPersistenceErrors.Inc()
		a.logger.Error("alert acknowledgement failed",
			"station_id", station,
			"parameter", param,
			"error", err,
		)
		writeError(w, http.StatusBadGateway, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if !created {
		a.metrics.AlertsSuppressed.WithLabelValues(string(param)).Inc()
		sharedobs.WriteJSON(w, http.StatusOK, ackResponse{Status: "duplicate"})
		return
	}
	a.metrics.AlertsRecorded.WithLabelValues(string(param)).Inc()
	sharedobs.WriteJSON(w, http.StatusCreated, ackResponse{Status: "recorded", Record: &rec})
}

func (a *API) handleResetSession(w http.ResponseWriter, r *http.Request) {
	station := chi.URLParam(r, "station")
	if !a.sessions.Reset(station) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no session for station %q", station))
		return
	}
	a.logger.Info("alert session reset", "station_id", station)
	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset", "station_id": station})
}

type listResponse struct {
	Alerts []domain.AlertRecord `json:"alerts"`
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AlertFilter{
		StationID: q.Get("station"),
		Limit:     defaultListLimit,
	}
	if v := q.Get("parameter"); v != "" {
		p, err := domain.ParseParameter(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.Parameter = p
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		filter.Limit = n
	}

	records, err := a.history.List(r.Context(), filter)
	if err != nil {
		a.logger.Error("list alerts failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []domain.AlertRecord{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, listResponse{Alerts: records})
}

func (a *API) handleClearAlerts(w http.ResponseWriter, r *http.Request) {
	station := r.URL.Query().Get("station")
	n, err := a.history.Clear(r.Context(), station)
	if err != nil {
		a.logger.Error("clear alerts failed", "station_id", station, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.logger.Info("alert history cleared", "station_id", station, "deleted", n)
	sharedobs.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
