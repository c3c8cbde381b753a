package threadfeed

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PageKey is the ordering key of the last item on a page: creation time
// with the thread id as tie-break. Together they form a total order that
// is stable under concurrent inserts.
type PageKey struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// EncodeCursor renders a page key as an opaque continuation token. The
// encoding carries no cross-version stability promise.
func EncodeCursor(key PageKey) string {
	raw := fmt.Sprintf("%d:%s", key.CreatedAt.UnixNano(), key.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a continuation token back into a page key. Any
// malformed token yields ErrInvalidCursor; the caller must restart
// pagination from the first page.
func DecodeCursor(cursor string) (PageKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return PageKey{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	nanos, idPart, found := strings.Cut(string(raw), ":")
	if !found {
		return PageKey{}, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}

	ts, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return PageKey{}, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}

	id, err := uuid.Parse(idPart)
	if err != nil {
		return PageKey{}, fmt.Errorf("%w: bad id", ErrInvalidCursor)
	}

	return PageKey{CreatedAt: time.Unix(0, ts).UTC(), ID: id}, nil
}
