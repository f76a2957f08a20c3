//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/clima-scope/internal/adapter/kafka"
	"github.com/couchcryptid/clima-scope/internal/config"
	"github.com/couchcryptid/clima-scope/internal/domain"
)

const testEventsTopic = "test-pipeline-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-broker Kafka container and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPublisherDeliversLifecycleEvents verifies that published events arrive
// on the topic with the expected key, value, and headers.
func TestPublisherDeliversLifecycleEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	cfg := &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaEventsTopic: testEventsTopic,
	}

	publisher := kafkaadapter.NewPublisher(cfg, discardLogger())
	t.Cleanup(func() { _ = publisher.Close() })

	occurredAt := time.Now().UTC().Truncate(time.Second)
	events := []domain.Event{
		{
			Type: domain.EventCreated, PipelineID: "p-1", CountyID: "31",
			Status: domain.StatusPending, Stage: domain.StageValidating,
			OccurredAt: occurredAt,
		},
		{
			Type: domain.EventFailed, PipelineID: "p-1", CountyID: "31",
			Status: domain.StatusFailed, Stage: domain.StageFailed,
			Error:      "stage validating: validation failed: missing required field: period",
			OccurredAt: occurredAt.Add(time.Second),
		},
	}
	for _, ev := range events {
		require.NoError(t, publisher.Publish(ctx, ev))
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	for i, want := range events {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read event %d", i)

		assert.Equal(t, []byte("p-1"), msg.Key, "events for one pipeline share a key")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, string(want.Type), headers["event_type"])
		_, err = time.Parse(time.RFC3339, headers["occurred_at"])
		assert.NoError(t, err, "occurred_at should be valid RFC3339")

		var got domain.Event
		require.NoError(t, json.Unmarshal(msg.Value, &got))
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.CountyID, got.CountyID)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Error, got.Error)
	}
}
