package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	raw, err := EncodeCursor(at, "id-1")
	require.NoError(t, err)

	c, err := DecodeCursor(raw)
	require.NoError(t, err)
	assert.True(t, at.Equal(c.At))
	assert.Equal(t, "id-1", c.ID)
}

func TestDecodeCursor_RejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "!!!", "e30"} { // e30 is "{}"
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidCursor, raw)
	}
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 20, ParseLimit("", 20, 100))
	assert.Equal(t, 20, ParseLimit("-3", 20, 100))
	assert.Equal(t, 5, ParseLimit("5", 20, 100))
	assert.Equal(t, 100, ParseLimit("500", 20, 100))
	assert.Equal(t, 0, ParseOffset("x"))
	assert.Equal(t, 40, ParseOffset("40"))
}
