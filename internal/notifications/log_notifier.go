package notifications

import (
	"context"
	"log/slog"

	"github.com/geocoder89/sitehub/internal/domain/notification"
)

// LogNotifier only logs. It backs NOTIFIER=log in local setups without an
// inbox table to look at.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, in notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.InfoContext(ctx, "notification.send",
		"kind", in.Kind,
		"user_id", in.UserID,
		"project_id", in.ProjectID,
		"job_id", in.JobID,
	)
	return nil
}
