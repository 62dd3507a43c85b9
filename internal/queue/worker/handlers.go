package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/sitehub/internal/domain/chat"
	"github.com/geocoder89/sitehub/internal/domain/job"
	"github.com/geocoder89/sitehub/internal/domain/notification"
	"github.com/geocoder89/sitehub/internal/domain/project"
	"github.com/geocoder89/sitehub/internal/jobs"
	"github.com/geocoder89/sitehub/internal/notifications"
)

type MessageReader interface {
	GetByID(ctx context.Context, id string) (chat.Message, error)
}

type MemberLister interface {
	ListActiveUserIDs(ctx context.Context, projectID string) ([]string, error)
}

type ProgressRecalculator interface {
	RecalculateProgress(ctx context.Context, projectID string) (float64, error)
}

type DashboardInvalidator interface {
	Invalidate(ctx context.Context, projectID string) error
}

const previewLen = 80

// ChatNotifyHandler fans a chat message out to every other active member.
// A message deleted before the job runs is skipped. Recipients already
// notified by an earlier attempt are not notified twice, since the inbox
// is unique on (job, user).
func ChatNotifyHandler(messages MessageReader, members MemberLister, notifier notifications.Notifier, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, j job.Job) error {
		p, err := jobs.Decode[jobs.ChatNotifyPayload](j)
		if err != nil {
			return err
		}

		msg, err := messages.GetByID(ctx, p.MessageID)
		if errors.Is(err, chat.ErrNotFound) {
			logger.InfoContext(ctx, "chat.notify.skipped", "job_id", j.ID, "message_id", p.MessageID, "reason", "message_deleted")
			return nil
		}
		if err != nil {
			return err
		}

		userIDs, err := members.ListActiveUserIDs(ctx, p.ProjectID)
		if err != nil {
			return err
		}

		text := preview(msg.Body)
		sent := 0
		for _, uid := range userIDs {
			if uid == msg.AuthorID {
				continue
			}
			n := notification.New(j.ID, uid, p.ProjectID, notification.KindChatMessage, text)
			if err := notifier.Notify(ctx, n); err != nil {
				return fmt.Errorf("notify %s: %w", uid, err)
			}
			sent++
		}

		logger.InfoContext(ctx, "chat.notify.sent",
			"job_id", j.ID,
			"message_id", p.MessageID,
			"project_id", p.ProjectID,
			"recipients", sent,
			"request_id", p.RequestID,
		)
		return nil
	}
}

// RecalculateProgressHandler recomputes a project's progress from its tasks
// and drops the cached dashboard.
func RecalculateProgressHandler(projects ProgressRecalculator, dashboards DashboardInvalidator, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, j job.Job) error {
		p, err := jobs.Decode[jobs.RecalculateProgressPayload](j)
		if err != nil {
			return err
		}

		progress, err := projects.RecalculateProgress(ctx, p.ProjectID)
		if errors.Is(err, project.ErrNotFound) {
			logger.InfoContext(ctx, "progress.recalculate.skipped", "job_id", j.ID, "project_id", p.ProjectID, "reason", "project_deleted")
			return nil
		}
		if err != nil {
			return err
		}

		if dashboards != nil {
			if err := dashboards.Invalidate(ctx, p.ProjectID); err != nil {
				logger.WarnContext(ctx, "dashboard.invalidate_failed", "project_id", p.ProjectID, "err", err)
			}
		}

		logger.InfoContext(ctx, "progress.recalculated",
			"job_id", j.ID,
			"project_id", p.ProjectID,
			"progress", progress,
			"actor_id", p.ActorID,
			"request_id", p.RequestID,
		)
		return nil
	}
}

func preview(body string) string {
	r := []rune(body)
	if len(r) <= previewLen {
		return "New message: " + body
	}
	return "New message: " + string(r[:previewLen]) + "..."
}
