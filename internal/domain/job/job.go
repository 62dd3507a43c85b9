// Package job models rows of the durable jobs table the worker drains.
package job

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// ParseStatus accepts only the four stored statuses.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusDone, StatusFailed:
		return st, true
	}
	return "", false
}

// Retryable reports whether an operator may push the job back to pending.
func (s Status) Retryable() bool {
	return s == StatusFailed
}

// DefaultMaxAttempts applies when neither the caller nor the job type sets a
// budget.
const DefaultMaxAttempts = 10

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrAlreadyEnqueued = errors.New("job with this idempotency key already exists")
	ErrJobNotFailed    = errors.New("job is not failed")
)

type Job struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	Status         Status          `json:"status"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"maxAttempts"`
	RunAt          time.Time       `json:"runAt"`
	LockedAt       *time.Time      `json:"lockedAt,omitempty"`
	LockedBy       *string         `json:"lockedBy,omitempty"`
	LastError      *string         `json:"lastError,omitempty"`
	IdempotencyKey *string         `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// OnLastAttempt is true while the run in progress is the final one allowed.
// Attempts counts completed runs.
func (j Job) OnLastAttempt() bool {
	return j.Attempts+1 >= j.MaxAttempts
}

type CreateRequest struct {
	Type           string
	Payload        json.RawMessage
	RunAt          time.Time
	MaxAttempts    int
	IdempotencyKey *string
}

type ListFilter struct {
	Status *Status
	Type   *string
	Limit  int
}

func New(req CreateRequest) Job {
	now := time.Now().UTC()

	j := Job{
		ID:             uuid.NewString(),
		Type:           req.Type,
		Payload:        req.Payload,
		Status:         StatusPending,
		MaxAttempts:    req.MaxAttempts,
		RunAt:          req.RunAt,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = DefaultMaxAttempts
	}
	if j.RunAt.IsZero() {
		j.RunAt = now
	}
	return j
}
