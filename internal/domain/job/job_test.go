package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	j := New(CreateRequest{Type: "x"})

	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, DefaultMaxAttempts, j.MaxAttempts)
	assert.False(t, j.RunAt.IsZero())
	assert.NotEmpty(t, j.ID)

	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	j = New(CreateRequest{Type: "x", MaxAttempts: 3, RunAt: at})
	assert.Equal(t, 3, j.MaxAttempts)
	assert.Equal(t, at, j.RunAt)
}

func TestOnLastAttempt(t *testing.T) {
	j := New(CreateRequest{Type: "x", MaxAttempts: 3})

	assert.False(t, j.OnLastAttempt())
	j.Attempts = 2
	assert.True(t, j.OnLastAttempt())
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusFailed.Retryable())
	assert.False(t, StatusDone.Retryable())
}
