// Package notify is the completion notification side effect the
// Completion Handler fires on COMPLETED when EMAIL_NOTIFICATION is
// enabled and the job has a user_email. Grounded in
// original_source/whisper_queue/app/main.py's send_email_notification,
// which itself only logs rather than calling a real mail provider — an
// actual SMTP/SendGrid client is out of scope here for the same reason.
package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers a best-effort completion notification. Failures
// must never affect the store transition that triggered them (spec
// §9 "Notifications in handlers").
type Notifier interface {
	NotifyCompleted(ctx context.Context, jobID, userEmail string) error
}

// LogNotifier is the default Notifier: it logs the notification instead
// of sending one, matching the no-op behavior of the original stub.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyCompleted(ctx context.Context, jobID, userEmail string) error {
	n.log.Info("completion notification", "job_id", jobID, "user_email", userEmail)
	return nil
}
