// Package controller is the Queue Controller (C5), the central
// algorithm: claim up to the free-slot count inside one transaction,
// then submit each claimed job to the Batch Executor outside it,
// rolling forward to FAILED on submit error. Grounded in
// original_source/whisper_queue/app/main.py::process_next_job and
// original_source/backend/app/services/batch_control.py::trigger_whisper_batch_processing.
package controller

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"whisperqueue/internal/batch"
	"whisperqueue/internal/domain"
	"whisperqueue/internal/store"
)

// Config supplies N_max fresh on every dispatch so operators can change
// the ceiling without a restart (spec §4.6 "Edge policy").
type Config interface {
	MaxProcessingJobs() int
}

// Controller runs the claim-then-submit algorithm.
type Controller struct {
	store    store.Store
	executor batch.Executor
	cfg      Config
	log      *slog.Logger

	group singleflight.Group
}

func New(s store.Store, executor batch.Executor, cfg Config, log *slog.Logger) *Controller {
	return &Controller{store: s, executor: executor, cfg: cfg, log: log}
}

// Dispatch runs one claim-then-submit cycle and returns the jobs that
// were claimed (regardless of whether their submit later failed).
func (c *Controller) Dispatch(ctx context.Context) ([]domain.Job, error) {
	claimed, err := c.claim(ctx)
	if err != nil {
		return nil, err
	}
	for _, job := range claimed {
		c.submit(ctx, job)
	}
	return claimed, nil
}

// claim is phase one: inside a single transaction, count PROCESSING
// jobs, compute the free-slot count, and claim that many QUEUED jobs
// FIFO by created_at. Counting inside the transaction closes the TOCTOU
// window that would otherwise let two concurrent controllers both see
// free capacity and violate I2.
func (c *Controller) claim(ctx context.Context) ([]domain.Job, error) {
	nMax := c.cfg.MaxProcessingJobs()
	var claimed []domain.Job

	err := c.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		claimed = nil

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
		for _, job := range queued {
			if err := tx.Update(ctx, job.JobID, domain.Patch{
				Status:           &processingStatus,
				ProcessStartedAt: true,
			}); err != nil {
				return err
			}
			job.Status = processingStatus
			claimed = append(claimed, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// submit is phase two, run outside the transaction: hand the job to the
// Batch Executor and record the handle, or roll it forward to FAILED
// on submit error. A job is never rolled back to QUEUED — a failed
// submission is an operator-visible terminal outcome, not a retry.
func (c *Controller) submit(ctx context.Context, job domain.Job) {
	handle, err := c.executor.Submit(ctx, job)
	if err != nil {
		failed := domain.StatusFailed
		msg := err.Error()
		if updateErr := c.store.Update(ctx, job.JobID, domain.Patch{
			Status:         &failed,
			ErrorMessage:   &msg,
			ProcessEndedAt: true,
		}); updateErr != nil {
			c.log.Error("failed to record submit failure", "job_id", job.JobID, "error", updateErr)
		}
		c.log.Error("batch submit failed", "job_id", job.JobID, "error", err)
		return
	}

	if updateErr := c.store.Update(ctx, job.JobID, domain.Patch{BatchHandle: &handle}); updateErr != nil {
		// Best-effort bookkeeping per spec §4.6; the job is already
		// PROCESSING and running, losing the handle only hurts
		// operator correlation, not correctness.
		c.log.Error("failed to record batch handle", "job_id", job.JobID, "error", updateErr)
	}
}

// TriggerDispatch asks the controller to run Dispatch, collapsing any
// concurrent callers into a single in-flight call via singleflight —
// N concurrent Completion Handler deliveries that all finish around the
// same time trigger one Dispatch, not N transactions racing for the
// same free slots.
func (c *Controller) TriggerDispatch(ctx context.Context) {
	_, err, _ := c.group.Do("dispatch", func() (interface{}, error) {
		return c.Dispatch(ctx)
	})
	if err != nil {
		c.log.Error("triggered dispatch failed", "error", err)
	}
}
