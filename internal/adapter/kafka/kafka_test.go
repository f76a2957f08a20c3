package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/clima-scope/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 1, 28, 9, 30, 0, 0, time.UTC)
	event := domain.Event{
		Type:       domain.EventCompleted,
		PipelineID: "a2c4e6",
		CountyID:   "31",
		Status:     domain.StatusCompleted,
		Stage:      domain.StageCompleted,
		OccurredAt: now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("a2c4e6"), msg.Key)
	assert.Contains(t, string(msg.Value), `"event":"completed"`)
	assert.Contains(t, string(msg.Value), `"county_id":"31"`)
	assert.NotContains(t, string(msg.Value), `"error"`, "empty error is omitted")
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("completed"), msg.Headers[0].Value)
	assert.Equal(t, "occurred_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_FailureCarriesError(t *testing.T) {
	event := domain.Event{
		Type:       domain.EventFailed,
		PipelineID: "b3d5f7",
		CountyID:   "47",
		Status:     domain.StatusFailed,
		Stage:      domain.StageFailed,
		Error:      "stage validating: validation failed: missing required field: period",
		OccurredAt: time.Date(2026, 1, 28, 9, 31, 0, 0, time.UTC),
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)
	assert.Contains(t, string(msg.Value), "missing required field: period")
}
