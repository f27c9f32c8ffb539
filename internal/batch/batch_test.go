package batch_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"whisperqueue/internal/batch"
	"whisperqueue/internal/domain"
)

func TestBuildParamsDefaultsAndFloors(t *testing.T) {
	job := domain.Job{
		JobID:          "j1",
		AudioPath:      "in/j1.wav",
		TranscriptPath: "out/j1.json",
		Language:       "ja",
	}

	params := batch.BuildParams(job, "my-bucket", "hf-token", "topic", "proj", "us-central1")

	require.Equal(t, "my-bucket/in/j1.wav", params.AudioPath)
	require.Equal(t, "my-bucket/out/j1.json", params.TranscriptionPath)
	require.Equal(t, "", params.NumSpeakers)
	require.Equal(t, "1", params.MinSpeakers)
	require.Equal(t, "1", params.MaxSpeakers)
	require.EqualValues(t, 300, params.MaxRunDurationSecs)
}

func TestBuildParamsUsesAudioDurationWhenLonger(t *testing.T) {
	durationMs := int64(600_000)
	job := domain.Job{JobID: "j1", AudioDurationMs: &durationMs}

	params := batch.BuildParams(job, "b", "", "", "", "")
	require.EqualValues(t, 600, params.MaxRunDurationSecs)
}

func TestSubmitErrorFormatsSpecPrefix(t *testing.T) {
	err := &batch.SubmitError{Err: errors.New("gpu quota exceeded")}
	require.Equal(t, "submit failed: gpu quota exceeded", err.Error())
	require.Equal(t, err.Err, err.Unwrap())
}
