package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/couchcryptid/river-wqi-etl/internal/observability"
)

// TransformerOptions toggles the optional stages of ReadingTransformer.
type TransformerOptions struct {
	// ValidateRanges rejects physically impossible readings.
	ValidateRanges bool
	// AutoAcknowledge records pending alerts as soon as they are raised
	// instead of waiting for an acknowledgement over HTTP.
	AutoAcknowledge bool
}

// ReadingTransformer implements Transformer. It assesses a reading, enriches
// it with an optional river status prediction and evaluates it against the
// station's alert session.
type ReadingTransformer struct {
	sessions  *domain.Sessions
	evaluator *domain.Evaluator
	predictor domain.Predictor
	opts      TransformerOptions
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewTransformer creates a ReadingTransformer. Pass a nil predictor to
// disable prediction enrichment.
func NewTransformer(sessions *domain.Sessions, evaluator *domain.Evaluator, predictor domain.Predictor, opts TransformerOptions, metrics *observability.Metrics, logger *slog.Logger) *ReadingTransformer {
	return &ReadingTransformer{
		sessions:  sessions,
		evaluator: evaluator,
		predictor: predictor,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}
}

func (t *ReadingTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.Assessment, error) {
	r, site, err := domain.ParseRawReading(raw)
	if err != nil {
		t.metrics.ReadingsRejected.WithLabelValues("invalid").Inc()
		return domain.Assessment{}, err
	}
	if t.opts.ValidateRanges {
		if err := domain.ValidateRanges(r); err != nil {
			reason := "invalid"
			if errors.Is(err, domain.ErrOutOfRange) {
				reason = "out_of_range"
			}
			t.metrics.ReadingsRejected.WithLabelValues(reason).Inc()
			return domain.Assessment{}, err
		}
	}

	res, err := domain.Assess(r)
	if err != nil {
		t.metrics.ReadingsRejected.WithLabelValues("invalid").Inc()
		return domain.Assessment{}, err
	}
	t.metrics.WQI.Observe(res.Value)
	t.metrics.AssessmentsByClass.WithLabelValues(res.Class.String()).Inc()

	a := domain.Assessment{
		ID:          domain.AssessmentID(r.StationID, r.SampleTime),
		StationID:   r.StationID,
		SampleTime:  r.SampleTime,
		Site:        site,
		WqiResult:   res,
		ProcessedAt: domain.Now(),
	}
	a = domain.EnrichWithPrediction(ctx, a, r, t.predictor, t.logger)

	session := t.sessions.Get(r.StationID)
	raised, err := t.evaluator.Evaluate(session, r)
	if err != nil {
		return domain.Assessment{}, err
	}
	for _, c := range raised {
		t.metrics.AlertsPending.WithLabelValues(string(c.Key.Parameter)).Inc()
	}

	if t.opts.AutoAcknowledge {
		a.Alerts = t.acknowledge(ctx, session)
		a.Alerts = t.withStoredAlerts(ctx, r, a.Alerts)
	}
	a.PendingAlerts = session.Pending()

	return a, nil
}

// withStoredAlerts adds the records already stored under the reading's own
// keys. A reading redelivered after a failed load, or replayed after a
// restart, carries the same records again so they still reach the alert
// topic. Record IDs do not change, so consumers can drop repeats.
func (t *ReadingTransformer) withStoredAlerts(ctx context.Context, r domain.Reading, recorded []domain.AlertRecord) []domain.AlertRecord {
	stored, err := t.evaluator.Recorded(ctx, r)
	if err != nil {
		t.metrics.AlertPersistenceErrors.Inc()
		t.logger.Error("stored alert lookup failed",
			"station_id", r.StationID,
			"sample_time", r.SampleTime,
			"error", err,
		)
		return recorded
	}

	seen := make(map[string]bool, len(recorded))
	for _, rec := range recorded {
		seen[rec.ID] = true
	}
	for _, rec := range stored {
		if !seen[rec.ID] {
			recorded = append(recorded, rec)
			seen[rec.ID] = true
		}
	}
	return recorded
}

// acknowledge records every pending alert of the session. Failures stay
// pending and are retried on the station's next reading.
func (t *ReadingTransformer) acknowledge(ctx context.Context, session *domain.Session) []domain.AlertRecord {
	var recorded []domain.AlertRecord
	for _, ack := range t.evaluator.AcknowledgePending(ctx, session) {
		param := string(ack.Candidate.Key.Parameter)
		switch {
		case ack.Err != nil:
			t.metrics.AlertPersistenceErrors.Inc()
			t.logger.Error("alert persistence failed",
				"station_id", ack.Candidate.Key.StationID,
				"parameter", param,
				"sample_time", ack.Candidate.Key.SampleTime,
				"error", ack.Err,
			)
		case ack.Created:
			t.metrics.AlertsRecorded.WithLabelValues(param).Inc()
			recorded = append(recorded, ack.Record)
		default:
			t.metrics.AlertsSuppressed.WithLabelValues(param).Inc()
		}
	}
	return recorded
}
