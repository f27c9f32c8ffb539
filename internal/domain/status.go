package domain

// EventType is the normalized kind of a completion event, after alias
// resolution (§6 of the spec: legacy batch_complete/batch_failed and
// current job_completed/job_failed both resolve to the same EventType).
type EventType string

const (
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventNewJob       EventType = "new_job"
	EventJobCanceled  EventType = "job_canceled"
	EventUnknown      EventType = ""
)

// eventAliases maps every wire spelling accepted on input to its
// normalized EventType. New code emits only the current names
// (EventJobCompleted/EventJobFailed); the rest are read-only back-compat
// for the two historical publishers described in spec §9.
var eventAliases = map[string]EventType{
	"job_completed":  EventJobCompleted,
	"batch_complete": EventJobCompleted,
	"job_failed":     EventJobFailed,
	"batch_failed":   EventJobFailed,
	"new_job":        EventNewJob,
	"cancel_job":     EventJobCanceled,
	"job_canceled":   EventJobCanceled,
}

// NormalizeEventType resolves a raw wire event_type string to its
// EventType, or EventUnknown if the string is not one of the accepted
// aliases.
func NormalizeEventType(raw string) EventType {
	if t, ok := eventAliases[raw]; ok {
		return t
	}
	return EventUnknown
}

// Transition reports the status a job moves to when EventType et is
// applied to a job currently in status from, following the state
// diagram in spec §4.1. ok is false when the event has no effect on a
// job in that status — callers must treat that as a silent no-op
// (idempotency), never as an error.
func Transition(from Status, et EventType) (to Status, ok bool) {
	if from != StatusProcessing {
		// All terminal transitions originate in PROCESSING only (I4).
		// NewJob never writes the store.
		return from, false
	}
	switch et {
	case EventJobCompleted:
		return StatusCompleted, true
	case EventJobFailed:
		return StatusFailed, true
	default:
		return from, false
	}
}
