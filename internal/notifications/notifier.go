package notifications

import (
	"context"

	"github.com/geocoder89/sitehub/internal/domain/notification"
)

// Notifier delivers one notification to one user. Implementations must be
// safe to call again for the same (job, user) pair, since jobs are retried.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notification) error
}
