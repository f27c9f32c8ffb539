package fake_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"whisperqueue/internal/batch"
	"whisperqueue/internal/batch/fake"
	"whisperqueue/internal/domain"
)

func TestSubmitRecordsParamsAndReturnsHandle(t *testing.T) {
	e := fake.New()
	handle, err := e.Submit(context.Background(), domain.Job{JobID: "j1"})
	require.NoError(t, err)
	require.Equal(t, "fake-batch-1", handle)
	require.Len(t, e.Submissions(), 1)
	require.Equal(t, "j1", e.Submissions()[0].JobID)
}

func TestSubmitReturnsSubmitErrorWhenConfigured(t *testing.T) {
	e := fake.New()
	e.FailWith = errors.New("boom")

	_, err := e.Submit(context.Background(), domain.Job{JobID: "j1"})
	var submitErr *batch.SubmitError
	require.ErrorAs(t, err, &submitErr)
	require.Equal(t, 0, e.Count())
}
