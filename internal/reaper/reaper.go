// Package reaper is the Timeout Reaper (C4): a periodic sweep that
// transitions abandoned PROCESSING jobs to FAILED once they have run
// longer than their audio-duration-aware deadline. Grounded in the
// teacher's ticker/sweep style (internal/queue/queue.go's checkAndScale)
// and in original_source/backend/app/services/batch_control.py's
// clear_stale_processing.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"whisperqueue/internal/domain"
	"whisperqueue/internal/store"
)

// Config supplies the timeout constants the reaper needs on every tick;
// it is read fresh each tick so operators can change it without a
// restart (spec §4.6 "Edge policy" applies equally here).
type Config interface {
	ProcessTimeoutSeconds() int
	AudioTimeoutMultiplier() float64
}

const failedMessage = "processing timeout"

// Reaper sweeps the store for over-deadline PROCESSING jobs.
type Reaper struct {
	store store.Store
	cfg   Config
	log   *slog.Logger
}

func New(s store.Store, cfg Config, log *slog.Logger) *Reaper {
	return &Reaper{store: s, cfg: cfg, log: log}
}

// Tick runs one sweep. It batches every FAILED write of this sweep into
// a single RunTransaction (spec §4.5 "Ordering and batching"); a commit
// failure is logged and left for the next tick, since the sweep is
// idempotent by construction (re-evaluating elapsed time on the next
// tick reaches the same verdict for any job still PROCESSING).
func (r *Reaper) Tick(ctx context.Context) {
	if err := r.tick(ctx); err != nil {
		r.log.Error("reaper sweep failed", "error", err)
	}
}

func (r *Reaper) tick(ctx context.Context) error {
	now := time.Now().UTC()
	processSecs := r.cfg.ProcessTimeoutSeconds()
	multiplier := r.cfg.AudioTimeoutMultiplier()

	return r.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		processing, err := tx.ListByStatus(ctx, domain.StatusProcessing, store.OrderByCreatedAtAsc, 0)
		if err != nil {
			return err
		}

		for _, job := range processing {
			if job.ProcessStartedAt == nil {
				// P5: never transition a job with no start attestation.
				continue
			}

			var durationMs int64
			if job.AudioDurationMs != nil {
				durationMs = *job.AudioDurationMs
			}
			deadline := domain.Deadline(processSecs, multiplier, durationMs)
			elapsed := now.Sub(*job.ProcessStartedAt)
			if elapsed.Seconds() <= float64(deadline) {
				continue
			}

			msg := failedMessage
			failed := domain.StatusFailed
			if err := tx.Update(ctx, job.JobID, domain.Patch{
				Status:         &failed,
				ErrorMessage:   &msg,
				ProcessEndedAt: true,
			}); err != nil {
				return err
			}
			r.log.Info("reaped job", "job_id", job.JobID, "elapsed_seconds", elapsed.Seconds(), "deadline_seconds", deadline)
		}
		return nil
	})
}
