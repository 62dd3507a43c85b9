package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/geocoder89/sitehub/internal/domain/job"
)

func Encode(p Payload) ([]byte, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}
	return b, nil
}

// Decode reads j's payload as P. The job's type must be the one P belongs
// to, and the decoded payload must validate.
func Decode[P Payload](j job.Job) (P, error) {
	var p P

	t := JobType(j.Type)
	if !t.IsValid() {
		return p, ErrInvalidJobType
	}
	if want := p.JobType(); t != want {
		return p, fmt.Errorf("%w: %s read as %s", ErrPayloadTypeMismatch, t, want)
	}
	if len(j.Payload) == 0 {
		return p, ErrInvalidJobPayload
	}

	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}
	if err := Validate(p); err != nil {
		return p, err
	}
	return p, nil
}

// NewRequest encodes p into a job create request for p's type. An empty
// idempotency key leaves the job unkeyed.
func NewRequest(p Payload, idempotencyKey string, runAt time.Time) (job.CreateRequest, error) {
	b, err := Encode(p)
	if err != nil {
		return job.CreateRequest{}, err
	}

	t := p.JobType()
	req := job.CreateRequest{
		Type:        string(t),
		Payload:     b,
		RunAt:       runAt,
		MaxAttempts: t.MaxAttempts(),
	}
	if idempotencyKey != "" {
		req.IdempotencyKey = &idempotencyKey
	}
	return req, nil
}
