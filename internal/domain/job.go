// Package domain holds the types shared by every adapter and loop: the
// Job record, its status state machine, and the deadline math the
// reaper depends on.
package domain

import "time"

// Status is the lifecycle state of a Job. See Transition for the legal
// moves between states.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further status write may ever apply to a
// job in this state (invariant I4).
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Job is the central entity: one record per submission. Fields mirror
// the wire/store schema directly; optional fields are pointers so a
// zero value and "not set" are distinguishable, matching the teacher's
// convention for optional columns in internal/models.
type Job struct {
	JobID string `json:"job_id" firestore:"job_id"`

	UserID    string  `json:"user_id" firestore:"user_id"`
	UserEmail *string `json:"user_email,omitempty" firestore:"user_email,omitempty"`

	Filename       string `json:"filename" firestore:"filename"`
	FileHash       string `json:"file_hash" firestore:"file_hash"`
	Description    string `json:"description" firestore:"description"`
	RecordingDate  string `json:"recording_date" firestore:"recording_date"`
	AudioPath      string `json:"audio_path" firestore:"audio_path"`
	TranscriptPath string `json:"transcription_path" firestore:"transcription_path"`
	AudioSize      int64  `json:"audio_size" firestore:"audio_size"`

	AudioDurationMs *int64 `json:"audio_duration_ms,omitempty" firestore:"audio_duration_ms,omitempty"`

	Language       string `json:"language" firestore:"language"`
	InitialPrompt  string `json:"initial_prompt" firestore:"initial_prompt"`
	NumSpeakers    *int   `json:"num_speakers,omitempty" firestore:"num_speakers,omitempty"`
	MinSpeakers    *int   `json:"min_speakers,omitempty" firestore:"min_speakers,omitempty"`
	MaxSpeakers    *int   `json:"max_speakers,omitempty" firestore:"max_speakers,omitempty"`

	Status Status `json:"status" firestore:"status"`

	CreatedAt        time.Time  `json:"created_at" firestore:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" firestore:"updated_at"`
	ProcessStartedAt *time.Time `json:"process_started_at,omitempty" firestore:"process_started_at,omitempty"`
	ProcessEndedAt   *time.Time `json:"process_ended_at,omitempty" firestore:"process_ended_at,omitempty"`

	ErrorMessage *string `json:"error_message,omitempty" firestore:"error_message,omitempty"`
	BatchHandle  *string `json:"batch_handle,omitempty" firestore:"batch_handle,omitempty"`
}

// Patch is a small, sparse field set applied by Store.Update or inside a
// transaction. Nil fields are left untouched; the server clock fields
// (CreatedAt/UpdatedAt/ProcessStartedAt/ProcessEndedAt) are never set by
// callers directly — Store implementations stamp them.
type Patch struct {
	Status           *Status
	ErrorMessage     *string
	BatchHandle      *string
	ProcessStartedAt bool // set ProcessStartedAt = server now
	ProcessEndedAt   bool // set ProcessEndedAt = server now
	TouchUpdatedAt   bool // set UpdatedAt = server now (implied by the two above)
}

// AudioDurationSeconds returns the duration hint in whole seconds, or 0
// if the job carries no duration.
func (j Job) AudioDurationSeconds() int64 {
	if j.AudioDurationMs == nil {
		return 0
	}
	return *j.AudioDurationMs / 1000
}
