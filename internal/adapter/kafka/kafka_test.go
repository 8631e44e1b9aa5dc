package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/river-wqi-etl/internal/config"
	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("1K01"),
		Value:     []byte(`{" ID STN (2016)":"1K01"}`),
		Topic:     "raw-water-readings",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("doe")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("1K01"), raw.Key)
	assert.JSONEq(t, `{" ID STN (2016)":"1K01"}`, string(raw.Value))
	assert.Equal(t, "raw-water-readings", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "doe", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func testAssessment() domain.Assessment {
	key := domain.NewAlertKey("1K01", domain.ParamPH, sampleTime)
	return domain.Assessment{
		ID:         domain.AssessmentID("1K01", sampleTime),
		StationID:  "1K01",
		SampleTime: sampleTime,
		WqiResult: domain.WqiResult{
			Value:  27.46,
			Class:  domain.ClassV,
			Status: domain.StatusPolluted,
		},
		Alerts: []domain.AlertRecord{
			{ID: "a1", Key: key, Value: 8.9, StatusLabel: "Very Poor", RaisedAt: sampleTime.Add(time.Minute)},
		},
		ProcessedAt: sampleTime.Add(time.Minute),
	}
}

func TestSerializeAssessment(t *testing.T) {
	a := testAssessment()

	msg, err := serializeAssessment(a)
	require.NoError(t, err)

	assert.Equal(t, []byte("1K01"), msg.Key)
	assert.Contains(t, string(msg.Value), `"class":"V"`)
	assert.Contains(t, string(msg.Value), `"status":"Polluted"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "assessment_id", msg.Headers[0].Key)
	assert.Equal(t, []byte(a.ID), msg.Headers[0].Value)
	assert.Equal(t, []byte("V"), msg.Headers[1].Value)
	assert.Equal(t, []byte(a.ProcessedAt.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestSerializeAlert(t *testing.T) {
	rec := testAssessment().Alerts[0]

	msg, err := serializeAlert(rec)
	require.NoError(t, err)

	var got domain.AlertRecord
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, rec.Key, got.Key)
	assert.Equal(t, "Very Poor", got.StatusLabel)
	assert.Equal(t, "parameter", msg.Headers[1].Key)
	assert.Equal(t, []byte("pH"), msg.Headers[1].Value)
}

func TestWriter_MessagesRouteByTopic(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:    []string{"localhost:9092"},
		KafkaSinkTopic:  "water-quality-assessments",
		KafkaAlertTopic: "water-quality-alerts",
	}
	w := NewWriter(cfg, nil)
	defer w.Close()

	clean := testAssessment()
	clean.Alerts = nil

	msgs, err := w.messages([]domain.Assessment{testAssessment(), clean})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "water-quality-assessments", msgs[0].Topic)
	assert.Equal(t, "water-quality-alerts", msgs[1].Topic)
	assert.Equal(t, "water-quality-assessments", msgs[2].Topic)
}
