// Package sqlstore is the local/dev and test Job Store Adapter backend:
// a gorm-backed SQLite store, generalized from the teacher's
// internal/database and internal/repository packages. It satisfies the
// same store.Store contract as store/firestore, so the controller,
// reaper, and completion handler are backend-agnostic.
package sqlstore

import (
	"time"

	"whisperqueue/internal/domain"
)

// jobRow is the gorm row shape for a domain.Job. Optional domain fields
// stay pointers so NULL round-trips correctly, matching the teacher's
// convention in internal/models/transcription.go.
type jobRow struct {
	JobID string `gorm:"column:job_id;primaryKey;type:varchar(64)"`

	UserID    string  `gorm:"column:user_id;not null"`
	UserEmail *string `gorm:"column:user_email"`

	Filename       string `gorm:"column:filename"`
	FileHash       string `gorm:"column:file_hash"`
	Description    string `gorm:"column:description"`
	RecordingDate  string `gorm:"column:recording_date"`
	AudioPath      string `gorm:"column:audio_path"`
	TranscriptPath string `gorm:"column:transcription_path"`
	AudioSize      int64  `gorm:"column:audio_size"`

	AudioDurationMs *int64 `gorm:"column:audio_duration_ms"`

	Language      string `gorm:"column:language"`
	InitialPrompt string `gorm:"column:initial_prompt"`
	NumSpeakers   *int   `gorm:"column:num_speakers"`
	MinSpeakers   *int   `gorm:"column:min_speakers"`
	MaxSpeakers   *int   `gorm:"column:max_speakers"`

	Status string `gorm:"column:status;index;not null"`

	CreatedAt        time.Time  `gorm:"column:created_at;index"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
	ProcessStartedAt *time.Time `gorm:"column:process_started_at"`
	ProcessEndedAt   *time.Time `gorm:"column:process_ended_at"`

	ErrorMessage *string `gorm:"column:error_message"`
	BatchHandle  *string `gorm:"column:batch_handle"`
}

func (jobRow) TableName() string { return "whisper_jobs" }

func rowToJob(r jobRow) domain.Job {
	return domain.Job{
		JobID:            r.JobID,
		UserID:           r.UserID,
		UserEmail:        r.UserEmail,
		Filename:         r.Filename,
		FileHash:         r.FileHash,
		Description:      r.Description,
		RecordingDate:    r.RecordingDate,
		AudioPath:        r.AudioPath,
		TranscriptPath:   r.TranscriptPath,
		AudioSize:        r.AudioSize,
		AudioDurationMs:  r.AudioDurationMs,
		Language:         r.Language,
		InitialPrompt:    r.InitialPrompt,
		NumSpeakers:      r.NumSpeakers,
		MinSpeakers:      r.MinSpeakers,
		MaxSpeakers:      r.MaxSpeakers,
		Status:           domain.Status(r.Status),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		ProcessStartedAt: r.ProcessStartedAt,
		ProcessEndedAt:   r.ProcessEndedAt,
		ErrorMessage:     r.ErrorMessage,
		BatchHandle:      r.BatchHandle,
	}
}

func jobToRow(j domain.Job) jobRow {
	return jobRow{
		JobID:            j.JobID,
		UserID:           j.UserID,
		UserEmail:        j.UserEmail,
		Filename:         j.Filename,
		FileHash:         j.FileHash,
		Description:      j.Description,
		RecordingDate:    j.RecordingDate,
		AudioPath:        j.AudioPath,
		TranscriptPath:   j.TranscriptPath,
		AudioSize:        j.AudioSize,
		AudioDurationMs:  j.AudioDurationMs,
		Language:         j.Language,
		InitialPrompt:    j.InitialPrompt,
		NumSpeakers:      j.NumSpeakers,
		MinSpeakers:      j.MinSpeakers,
		MaxSpeakers:      j.MaxSpeakers,
		Status:           string(j.Status),
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		ProcessStartedAt: j.ProcessStartedAt,
		ProcessEndedAt:   j.ProcessEndedAt,
		ErrorMessage:     j.ErrorMessage,
		BatchHandle:      j.BatchHandle,
	}
}
