//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/river-wqi-etl/internal/adapter/kafka"
	"github.com/couchcryptid/river-wqi-etl/internal/adapter/memory"
	"github.com/couchcryptid/river-wqi-etl/internal/config"
	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/couchcryptid/river-wqi-etl/internal/observability"
	"github.com/couchcryptid/river-wqi-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-readings"
	testSinkTopic   = "test-assessments"
	testAlertTopic  = "test-alerts"
)

// sinkMessage holds a message read from the sink or alert topic.
type sinkMessage struct {
	Value   map[string]any
	Key     string
	Headers map[string]string
}

// readSink reads a single message from consumer and decodes its JSON body.
func readSink(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sinkMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from %s", consumer.Config().Topic)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var value map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &value), "unmarshal sink message")

	return sinkMessage{Value: value, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaAlertTopic:    testAlertTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func newConsumer(t *testing.T, broker, topic string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-consumer-%s-%d", topic, time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func newTransformer() *pipeline.ReadingTransformer {
	store := memory.NewStore()
	return pipeline.NewTransformer(
		domain.NewSessions(),
		domain.NewEvaluator(store, discardLogger()),
		nil,
		pipeline.TransformerOptions{AutoAcknowledge: true},
		observability.NewMetricsForTesting(),
		discardLogger(),
	)
}

func publish(ctx context.Context, t *testing.T, broker string, msgs ...kafkago.Message) {
	t.Helper()
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (Extractor) and
// kafka.Writer (Loader) correctly round-trip a reading through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	for _, topic := range []string{testSourceTopic, testSinkTopic, testAlertTopic} {
		createTopic(t, broker, topic)
	}
	cfg := testConfig(broker, "test-reader")

	rows := loadReadings(t)
	payload := []byte(rows[1]) // 1K01, every parameter critical
	publish(ctx, t, broker, kafkago.Message{Key: []byte("1K01"), Value: payload})

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("1K01"), raw.Key)
	assert.JSONEq(t, string(payload), string(raw.Value))
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	a, err := newTransformer().Transform(ctx, raw)
	require.NoError(t, err)
	require.Len(t, a.Alerts, 6)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.Assessment{a}))

	sm := readSink(ctx, t, newConsumer(t, broker, testSinkTopic))
	assert.Equal(t, "1K01", sm.Key)
	assert.Equal(t, a.ID, sm.Headers["assessment_id"])
	assert.Equal(t, "V", sm.Headers["class"])
	_, err = time.Parse(time.RFC3339, sm.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")
	assert.Equal(t, "Polluted", sm.Value["status"])
	assert.Equal(t, "2024-01-15T10:00:00Z", sm.Value["sample_time"])

	alerts := newConsumer(t, broker, testAlertTopic)
	params := map[string]bool{}
	for range a.Alerts {
		am := readSink(ctx, t, alerts)
		assert.Equal(t, "1K01", am.Key)
		assert.NotEmpty(t, am.Headers["alert_id"])
		params[am.Headers["parameter"]] = true
	}
	assert.Len(t, params, 6)
}

// TestPipelineEndToEnd wires the full pipeline (Reader → Transformer → Writer)
// with real Kafka and checks assessments, rejects and alert deduplication.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	for _, topic := range []string{testSourceTopic, testSinkTopic, testAlertTopic} {
		createTopic(t, broker, topic)
	}
	cfg := testConfig(broker, "test-pipeline")

	rows := loadReadings(t)
	msgs := make([]kafkago.Message, 0, len(rows))
	for i, row := range rows {
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(fmt.Sprintf("row-%d", i)),
			Value: row,
		})
	}
	publish(ctx, t, broker, msgs...)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, newTransformer(), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	// Rows 5 and 6 are rejected: missing COD and a non-numeric pH.
	const wantAssessments = 4
	sink := newConsumer(t, broker, testSinkTopic)
	received := make([]sinkMessage, 0, wantAssessments)
	for len(received) < wantAssessments {
		received = append(received, readSink(ctx, t, sink))
	}

	classes := make([]string, 0, len(received))
	for _, sm := range received {
		classes = append(classes, sm.Headers["class"])
		assert.NotEmpty(t, sm.Headers["assessment_id"], "missing assessment_id header")
		_, err := time.Parse(time.RFC3339, sm.Headers["processed_at"])
		assert.NoError(t, err, "invalid processed_at format")
	}
	assert.Equal(t, []string{"II", "V", "V", "I"}, classes)
	assert.Equal(t, received[1].Headers["assessment_id"], received[2].Headers["assessment_id"],
		"a replayed reading keeps its assessment id")
	assert.Equal(t, "1K02", received[3].Key)

	// The critical reading records six alerts. Its replay publishes the same
	// records again under the same alert IDs.
	alerts := newConsumer(t, broker, testAlertTopic)
	alertIDs := map[string]int{}
	for range 12 {
		am := readSink(ctx, t, alerts)
		assert.Equal(t, "1K01", am.Key)
		alertIDs[am.Headers["alert_id"]]++
	}
	assert.Len(t, alertIDs, 6)
	for id, n := range alertIDs {
		assert.Equal(t, 2, n, "alert %s", id)
	}
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := alerts.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no further alerts")

	pipelineCancel()
	require.NoError(t, <-errCh)
	assert.True(t, p.Ready())
}

// TestPipelineTransformError verifies that an invalid message (poison pill) is
// skipped and the pipeline continues processing valid messages.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	for _, topic := range []string{testSourceTopic, testSinkTopic, testAlertTopic} {
		createTopic(t, broker, topic)
	}
	cfg := testConfig(broker, "test-poison")

	rows := loadReadings(t)
	publish(ctx, t, broker,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		kafkago.Message{Key: []byte("good"), Value: rows[0]},
	)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, newTransformer(), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	sink := newConsumer(t, broker, testSinkTopic)
	sm := readSink(ctx, t, sink)
	assert.Equal(t, "1K01", sm.Key)
	assert.Equal(t, "II", sm.Headers["class"])

	// Verify no second message arrives (the poison pill was skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := sink.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
