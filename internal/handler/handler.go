// Package handler is the Completion Handler (C6): it decodes an
// inbound event, applies an idempotent terminal transition to the
// store, fires the completion notification side effect, and triggers
// the Queue Controller's next dispatch. Grounded in
// original_source/whisper_queue/app/main.py::handle_batch_completion
// and process_subscription_message.
package handler

import (
	"context"
	"log/slog"

	"whisperqueue/internal/domain"
	"whisperqueue/internal/eventbus"
	"whisperqueue/internal/notify"
	"whisperqueue/internal/store"
)

// Dispatcher is the subset of *controller.Controller the handler needs:
// trigger the next dispatch after a terminal transition.
type Dispatcher interface {
	TriggerDispatch(ctx context.Context)
}

// NotifyConfig reports whether the completion email side effect is
// enabled (EMAIL_NOTIFICATION, spec §6).
type NotifyConfig interface {
	EmailNotificationEnabled() bool
}

// Handler applies inbound completion events to the store.
type Handler struct {
	store      store.Store
	dispatcher Dispatcher
	notifier   notify.Notifier
	cfg        NotifyConfig
	log        *slog.Logger
}

func New(s store.Store, dispatcher Dispatcher, notifier notify.Notifier, cfg NotifyConfig, log *slog.Logger) *Handler {
	return &Handler{store: s, dispatcher: dispatcher, notifier: notifier, cfg: cfg, log: log}
}

// Handle implements the 5-step contract of spec §4.7. It is the
// function eventbus.Bus.Subscribe calls for every raw delivery.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	// Step 1: parse envelope; missing job_id is logged and dropped.
	evt, err := eventbus.Decode(payload)
	if err != nil {
		h.log.Warn("dropping malformed event", "error", err)
		return nil
	}

	// Step 2: load current job; not found is logged and dropped.
	job, err := h.store.Get(ctx, evt.JobID)
	if err == store.ErrNotFound {
		h.log.Warn("dropping event for unknown job", "job_id", evt.JobID)
		return nil
	}
	if err != nil {
		return err
	}

	switch evt.Type {
	case domain.EventNewJob:
		// new_job triggers C5 directly; no store write.
		h.dispatcher.TriggerDispatch(ctx)
		return nil
	case domain.EventJobCanceled:
		// Upstream has already set CANCELED; nothing to do here.
		return nil
	case domain.EventJobCompleted, domain.EventJobFailed:
		return h.applyTransition(ctx, job, evt)
	default:
		h.log.Warn("dropping unknown event type", "job_id", evt.JobID)
		return nil
	}
}

func (h *Handler) applyTransition(ctx context.Context, job domain.Job, evt eventbus.Event) error {
	to, ok := domain.Transition(job.Status, evt.Type)
	if !ok {
		// Step 4: idempotency — redelivered events, or events arriving
		// after the reaper already failed the job, are a silent no-op.
		h.log.Debug("ignoring event, job not in processing", "job_id", job.JobID, "status", job.Status)
		return nil
	}

	patch := domain.Patch{
		Status:         &to,
		ProcessEndedAt: true,
	}
	if to == domain.StatusFailed {
		patch.ErrorMessage = evt.ErrorMessage
	}

	if err := h.store.Update(ctx, job.JobID, patch); err != nil {
		return err
	}

	if to == domain.StatusCompleted && h.cfg.EmailNotificationEnabled() && job.UserEmail != nil {
		// Best-effort: failures here must never affect the store
		// transition already committed above (spec §9).
		if err := h.notifier.NotifyCompleted(ctx, job.JobID, *job.UserEmail); err != nil {
			h.log.Warn("notification failed", "job_id", job.JobID, "error", err)
		}
	}

	// Step 5: any terminal transition wakes the controller.
	h.dispatcher.TriggerDispatch(ctx)
	return nil
}
