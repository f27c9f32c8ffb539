package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whisperqueue/internal/domain"
	"whisperqueue/internal/store"
	"whisperqueue/internal/store/sqlstore"
)

func openTestStore(t *testing.T) *sqlstore.SQLStore {
	t.Helper()
	s, err := sqlstore.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateStampsServerClockFields(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.Seed(context.Background(), domain.Job{
		JobID:     "j1",
		Status:    domain.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	processing := domain.StatusProcessing
	require.NoError(t, s.Update(context.Background(), "j1", domain.Patch{
		Status:           &processing,
		ProcessStartedAt: true,
	}))

	j1, err := s.Get(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessing, j1.Status)
	require.NotNil(t, j1.ProcessStartedAt)
	require.True(t, j1.UpdatedAt.After(now) || j1.UpdatedAt.Equal(now))
}

// I2 at the transaction boundary: concurrent RunTransaction calls never
// let the claimed count exceed N_max, because SetMaxOpenConns(1) and
// gorm's BEGIN serialize every writer onto the one connection.
func TestRunTransactionSerializesCounting(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Seed(context.Background(), domain.Job{
			JobID:     id,
			Status:    domain.StatusQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base,
		}))
	}

	const nMax = 2
	claim := func() (int, error) {
		var claimedCount int
		err := s.RunTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
			claimedCount = 0
			processing, err := tx.CountByStatus(ctx, domain.StatusProcessing)
			if err != nil {
				return err
			}
			free := nMax - processing
			if free <= 0 {
				return nil
			}
			queued, err := tx.ListByStatus(ctx, domain.StatusQueued, store.OrderByCreatedAtAsc, free)
			if err != nil {
				return err
			}
			processingStatus := domain.StatusProcessing
			for _, j := range queued {
				if err := tx.Update(ctx, j.JobID, domain.Patch{Status: &processingStatus, ProcessStartedAt: true}); err != nil {
					return err
				}
				claimedCount++
			}
			return nil
		})
		return claimedCount, err
	}

	type result struct {
		n   int
		err error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			n, err := claim()
			results <- result{n: n, err: err}
		}()
	}
	total := 0
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		total += r.n
	}
	require.Equal(t, nMax, total)

	count, err := s.CountByStatus(context.Background(), domain.StatusProcessing)
	require.NoError(t, err)
	require.LessOrEqual(t, count, nMax)
}
