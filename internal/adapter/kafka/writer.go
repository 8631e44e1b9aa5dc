package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/river-wqi-etl/internal/config"
	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes assessments to the sink topic and recorded alerts to the
// alert topic. It implements pipeline.BatchLoader.
type Writer struct {
	writer     *kafkago.Writer
	sinkTopic  string
	alertTopic string
	logger     *slog.Logger
}

// NewWriter creates a Kafka producer. The topic is set per message.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{
		writer:     w,
		sinkTopic:  cfg.KafkaSinkTopic,
		alertTopic: cfg.KafkaAlertTopic,
		logger:     logger,
	}
}

// LoadBatch publishes every assessment followed by its alerts in a single
// WriteMessages call. Messages are keyed by station so one station's
// assessments stay on one partition.
func (w *Writer) LoadBatch(ctx context.Context, assessments []domain.Assessment) error {
	if len(assessments) == 0 {
		return nil
	}
	msgs, err := w.messages(assessments)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func (w *Writer) messages(assessments []domain.Assessment) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(assessments))
	for i := range assessments {
		msg, err := serializeAssessment(assessments[i])
		if err != nil {
			return nil, err
		}
		msg.Topic = w.sinkTopic
		msgs = append(msgs, msg)

		for _, rec := range assessments[i].Alerts {
			alert, err := serializeAlert(rec)
			if err != nil {
				return nil, err
			}
			alert.Topic = w.alertTopic
			msgs = append(msgs, alert)
		}
	}
	return msgs, nil
}

// serializeAssessment marshals an Assessment into a Kafka message.
func serializeAssessment(a domain.Assessment) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.StationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "assessment_id", Value: []byte(a.ID)},
			{Key: "class", Value: []byte(a.Class.String())},
			{Key: "processed_at", Value: []byte(a.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}

// serializeAlert marshals an AlertRecord into a Kafka message.
func serializeAlert(rec domain.AlertRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Key.StationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_id", Value: []byte(rec.ID)},
			{Key: "parameter", Value: []byte(rec.Key.Parameter)},
			{Key: "raised_at", Value: []byte(rec.RaisedAt.Format(time.RFC3339))},
		},
	}, nil
}
