// Package batch defines the Batch Executor Adapter contract (C2, spec
// §4.3): a single synchronous Submit call that hands a job to the
// external GPU batch system and returns an opaque handle.
package batch

import (
	"context"
	"fmt"

	"whisperqueue/internal/domain"
)

// Executor is the Batch Executor Adapter.
type Executor interface {
	// Submit builds the parameter set for job and asks the external
	// batch system to run it, returning as soon as the system has
	// accepted the request (not when the pipeline finishes). A non-nil
	// error is a SubmitError per spec §4.6/§7: the caller rolls the job
	// forward to FAILED, it never retries internally.
	Submit(ctx context.Context, job domain.Job) (handle string, err error)
}

// SubmitError wraps the underlying transport/API error so callers can
// format spec §8 scenario 4's required "submit failed: " prefix
// consistently across backends.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return fmt.Sprintf("submit failed: %s", e.Err) }

func (e *SubmitError) Unwrap() error { return e.Err }

// Params is the flattened parameter set a batch job receives as
// environment variables, per the table in spec §4.3. Both the Cloud
// Batch and fake executors build one via BuildParams so their outputs
// stay in lockstep with each other and with the tests that assert on
// individual fields.
type Params struct {
	JobID              string
	AudioPath          string
	TranscriptionPath  string
	NumSpeakers        string
	MinSpeakers        string
	MaxSpeakers        string
	Language           string
	InitialPrompt      string
	HFAuthToken        string
	PubsubTopic        string
	GCPProjectID       string
	GCPRegion          string
	MaxRunDurationSecs int64
}

// BuildParams translates a Job plus static process configuration into
// the Params the external executor needs, per the source table in spec
// §4.3 — NUM_SPEAKERS is empty when unset, MIN/MAX_SPEAKERS default to
// "1", and the run duration is max(300, audio_duration_seconds).
func BuildParams(job domain.Job, bucket, hfAuthToken, pubsubTopic, projectID, region string) Params {
	const minProcessSeconds = 300

	numSpeakers := ""
	if job.NumSpeakers != nil {
		numSpeakers = fmt.Sprintf("%d", *job.NumSpeakers)
	}
	minSpeakers := "1"
	if job.MinSpeakers != nil {
		minSpeakers = fmt.Sprintf("%d", *job.MinSpeakers)
	}
	maxSpeakers := "1"
	if job.MaxSpeakers != nil {
		maxSpeakers = fmt.Sprintf("%d", *job.MaxSpeakers)
	}

	duration := job.AudioDurationSeconds()
	if duration < minProcessSeconds {
		duration = minProcessSeconds
	}

	return Params{
		JobID:              job.JobID,
		AudioPath:          fmt.Sprintf("%s/%s", bucket, job.AudioPath),
		TranscriptionPath:  fmt.Sprintf("%s/%s", bucket, job.TranscriptPath),
		NumSpeakers:        numSpeakers,
		MinSpeakers:        minSpeakers,
		MaxSpeakers:        maxSpeakers,
		Language:           job.Language,
		InitialPrompt:      job.InitialPrompt,
		HFAuthToken:        hfAuthToken,
		PubsubTopic:        pubsubTopic,
		GCPProjectID:       projectID,
		GCPRegion:          region,
		MaxRunDurationSecs: duration,
	}
}

// Env renders Params as the environment map a container runnable
// receives.
func (p Params) Env() map[string]string {
	return map[string]string{
		"JOB_ID":              p.JobID,
		"AUDIO_PATH":          p.AudioPath,
		"TRANSCRIPTION_PATH":  p.TranscriptionPath,
		"NUM_SPEAKERS":        p.NumSpeakers,
		"MIN_SPEAKERS":        p.MinSpeakers,
		"MAX_SPEAKERS":        p.MaxSpeakers,
		"LANGUAGE":            p.Language,
		"INITIAL_PROMPT":      p.InitialPrompt,
		"HF_AUTH_TOKEN":       p.HFAuthToken,
		"PUBSUB_TOPIC":        p.PubsubTopic,
		"GCP_PROJECT_ID":      p.GCPProjectID,
		"GCP_REGION":          p.GCPRegion,
	}
}
