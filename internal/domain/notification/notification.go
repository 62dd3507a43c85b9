package notification

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindChatMessage Kind = "chat_message"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	ProjectID string     `json:"projectId"`
	Kind      Kind       `json:"kind"`
	Message   string     `json:"message"`
	JobID     string     `json:"jobId"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ListFilter struct {
	UnreadOnly bool
	Limit      int
}

func New(jobID, userID, projectID string, kind Kind, message string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Kind:      kind,
		Message:   message,
		JobID:     jobID,
		CreatedAt: time.Now().UTC(),
	}
}
