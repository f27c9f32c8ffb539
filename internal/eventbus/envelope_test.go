package eventbus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whisperqueue/internal/domain"
	"whisperqueue/internal/eventbus"
)

// L1: publish then deliver of a well-formed envelope yields the
// original typed event.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	at := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	env := eventbus.NewEnvelope("j1", domain.EventJobCompleted, at, nil)

	payload, err := eventbus.Encode(env)
	require.NoError(t, err)

	evt, err := eventbus.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, "j1", evt.JobID)
	require.Equal(t, domain.EventJobCompleted, evt.Type)
	require.True(t, at.Equal(evt.Timestamp))
}

func TestDecodeAcceptsLegacyEventNames(t *testing.T) {
	evt, err := eventbus.Decode([]byte(`{"job_id":"j1","event_type":"batch_complete","timestamp":"2026-07-30T00:00:00Z"}`))
	require.NoError(t, err)
	require.Equal(t, domain.EventJobCompleted, evt.Type)
}

func TestDecodeRejectsMissingJobID(t *testing.T) {
	_, err := eventbus.Decode([]byte(`{"event_type":"job_completed"}`))
	require.Error(t, err)
}

func TestDecodeUnknownEventTypeNormalizesToUnknown(t *testing.T) {
	evt, err := eventbus.Decode([]byte(`{"job_id":"j1","event_type":"something_else"}`))
	require.NoError(t, err)
	require.Equal(t, domain.EventUnknown, evt.Type)
}
