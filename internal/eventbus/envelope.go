// Package eventbus defines the Event Bus Adapter contract (C3, spec
// §4.4) and the wire envelope both publish and delivery use.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"whisperqueue/internal/domain"
)

// Envelope is the bit-exact wire format from spec §6.
type Envelope struct {
	JobID        string  `json:"job_id"`
	EventType    string  `json:"event_type"`
	Timestamp    string  `json:"timestamp"`
	ErrorMessage *string `json:"error_message"`
}

// NewEnvelope builds an outbound envelope using the current names only
// (spec §9: "new code should emit only the current names").
func NewEnvelope(jobID string, et domain.EventType, at time.Time, errMsg *string) Envelope {
	return Envelope{
		JobID:        jobID,
		EventType:    string(et),
		Timestamp:    at.UTC().Format(time.RFC3339),
		ErrorMessage: errMsg,
	}
}

// Event is the typed, decoded form a consumer works with: EventType has
// already been normalized through the alias table (domain.NormalizeEventType).
type Event struct {
	JobID        string
	Type         domain.EventType
	Timestamp    time.Time
	ErrorMessage *string
}

// Decode parses a raw envelope payload into an Event. A missing job_id
// is reported as an error so callers can "log and drop" per spec §4.7
// step 1.
func Decode(payload []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, fmt.Errorf("eventbus: decode envelope: %w", err)
	}
	if env.JobID == "" {
		return Event{}, fmt.Errorf("eventbus: envelope missing job_id")
	}

	ts := time.Now().UTC()
	if env.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, env.Timestamp); err == nil {
			ts = parsed
		}
	}

	return Event{
		JobID:        env.JobID,
		Type:         domain.NormalizeEventType(env.EventType),
		Timestamp:    ts,
		ErrorMessage: env.ErrorMessage,
	}, nil
}

// Encode marshals an outbound envelope to its wire bytes.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
