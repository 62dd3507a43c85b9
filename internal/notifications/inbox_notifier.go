package notifications

import (
	"context"
	"log/slog"

	"github.com/geocoder89/sitehub/internal/domain/notification"
)

type InboxStore interface {
	Insert(ctx context.Context, n notification.Notification) (bool, error)
}

// InboxNotifier stores notifications for GET /notifications.
type InboxNotifier struct {
	store InboxStore
	log   *slog.Logger
}

func NewInboxNotifier(store InboxStore, logger *slog.Logger) *InboxNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxNotifier{store: store, log: logger}
}

func (n *InboxNotifier) Notify(ctx context.Context, in notification.Notification) error {
	inserted, err := n.store.Insert(ctx, in)
	if err != nil {
		return err
	}
	if !inserted {
		n.log.DebugContext(ctx, "notification.duplicate",
			"job_id", in.JobID,
			"user_id", in.UserID,
		)
	}
	return nil
}
