package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("message not found")
	ErrNotAuthor = errors.New("only the author can delete this message")
)

type Message struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ListFilter struct {
	Query  string
	Limit  int
	Offset int
}

type PostMessageRequest struct {
	Body string `json:"body" binding:"required,min=1,max=4000"`
}

func NewMessage(projectID, authorID, body string) Message {
	return Message{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}
