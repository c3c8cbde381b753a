package threadfeed_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

func TestCursorRoundTrip(t *testing.T) {
	key := threadfeed.PageKey{
		CreatedAt: time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC),
		ID:        uuid.New(),
	}

	cursor := threadfeed.EncodeCursor(key)
	require.NotEmpty(t, cursor)

	decoded, err := threadfeed.DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, decoded.CreatedAt.Equal(key.CreatedAt))
	assert.Equal(t, key.ID, decoded.ID)
}

func TestCursorIsOpaque(t *testing.T) {
	cursor := threadfeed.EncodeCursor(threadfeed.PageKey{
		CreatedAt: time.Now().UTC(),
		ID:        uuid.New(),
	})

	// URL-safe without padding, so it survives a query string untouched.
	_, err := base64.RawURLEncoding.DecodeString(cursor)
	assert.NoError(t, err)
	assert.NotContains(t, cursor, "=")
	assert.NotContains(t, cursor, "+")
	assert.NotContains(t, cursor, "/")
}

func TestDecodeCursorRejectsMalformedTokens(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"no separator", base64.RawURLEncoding.EncodeToString([]byte("justonepart"))},
		{"bad timestamp", base64.RawURLEncoding.EncodeToString([]byte("abc:" + uuid.New().String()))},
		{"bad id", base64.RawURLEncoding.EncodeToString([]byte("1234567890:not-a-uuid"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := threadfeed.DecodeCursor(tt.cursor)
			assert.ErrorIs(t, err, threadfeed.ErrInvalidCursor)
		})
	}
}
