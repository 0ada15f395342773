package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStampEnvelopeFillsDefaults(t *testing.T) {
	payload := &RowWrittenPayload{
		RunID:   "run-1",
		Country: "UK",
		Row:     3,
	}

	stampEnvelope(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeRowWritten)

	assert.NotEmpty(t, payload.EventID)
	assert.Equal(t, "ROW_WRITTEN", payload.EventType)
	assert.False(t, payload.Timestamp.IsZero())
	assert.Equal(t, "xray-ledger", payload.Source)
}

func TestStampEnvelopeKeepsCallerValues(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := &RunCompletedPayload{
		EventID:   "fixed-id",
		EventType: "CUSTOM",
		Timestamp: ts,
		Source:    "replay",
		RunID:     "run-2",
	}

	stampEnvelope(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeRunCompleted)

	assert.Equal(t, "fixed-id", payload.EventID)
	assert.Equal(t, "CUSTOM", payload.EventType)
	assert.Equal(t, ts, payload.Timestamp)
	assert.Equal(t, "replay", payload.Source)
}
