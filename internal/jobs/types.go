package jobs

import "errors"

type JobType string

const (
	// JobChatNotify fans a new chat message out to the other active members.
	JobChatNotify JobType = "chat.notify"

	// JobRecalculateProgress derives project progress from task completion.
	JobRecalculateProgress JobType = "project.recalculate_progress"
)

// The worker treats all three as permanent: retrying cannot fix them.
var (
	ErrInvalidJobType      = errors.New("invalid job type")
	ErrInvalidJobPayload   = errors.New("invalid job payload")
	ErrPayloadTypeMismatch = errors.New("payload type mismatch for job type")
)

// maxAttempts bounds retries per type. A stale notification is worth less
// than a stale progress figure.
var maxAttempts = map[JobType]int{
	JobChatNotify:          5,
	JobRecalculateProgress: 10,
}

func (t JobType) IsValid() bool {
	_, ok := maxAttempts[t]
	return ok
}

// MaxAttempts is the retry budget for t; zero lets the job default apply.
func (t JobType) MaxAttempts() int {
	return maxAttempts[t]
}
