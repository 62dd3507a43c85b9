package jobs

// Payload is the typed body of a job. Payloads carry ids only; handlers
// load current state when they run.
type Payload interface {
	JobType() JobType
}

// ChatNotifyPayload is enqueued in the same transaction as its message.
type ChatNotifyPayload struct {
	MessageID string `json:"messageId" validate:"notblank"`
	ProjectID string `json:"projectId" validate:"notblank"`
	AuthorID  string `json:"authorId" validate:"notblank"`
	RequestID string `json:"requestId,omitempty"`
}

func (ChatNotifyPayload) JobType() JobType { return JobChatNotify }

type RecalculateProgressPayload struct {
	ProjectID string `json:"projectId" validate:"notblank"`
	ActorID   string `json:"actorId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func (RecalculateProgressPayload) JobType() JobType { return JobRecalculateProgress }
