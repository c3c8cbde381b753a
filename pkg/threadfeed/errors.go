package threadfeed

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrUserNotFound indicates a referenced user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates a user with the same subject already exists
	ErrUserExists = errors.New("user already exists")

	// ErrThreadNotFound indicates a thread was not found
	ErrThreadNotFound = errors.New("thread not found")

	// ErrParentNotFound indicates the parent of a reply does not exist
	ErrParentNotFound = errors.New("parent thread not found")

	// ErrEmptyContent indicates a publish with neither body nor attachments
	ErrEmptyContent = errors.New("thread has no body and no attachments")

	// ErrEmptyQuery indicates a directory search with an empty query
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrInvalidCursor indicates a feed cursor that does not decode to a
	// valid ordering key; callers must restart pagination from the top
	ErrInvalidCursor = errors.New("invalid feed cursor")

	// ErrAttachmentUploadFailed indicates at least one attachment upload
	// did not complete; the whole publish is abandoned and safe to retry
	// from scratch
	ErrAttachmentUploadFailed = errors.New("attachment upload failed")

	// ErrUpstreamUnavailable indicates the blob store could not issue a
	// grant or accept a write; safe to retry the whole operation
	ErrUpstreamUnavailable = errors.New("storage backend unavailable")

	// ErrGrantExpired indicates an upload grant was presented after its
	// validity window
	ErrGrantExpired = errors.New("upload grant expired")

	// ErrGrantConsumed indicates an upload grant was presented twice
	ErrGrantConsumed = errors.New("upload grant already consumed")
)

// PublishError represents an error raised while publishing a thread
type PublishError struct {
	AuthorID uuid.UUID
	Op       string
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish operation %s failed for author %s: %v", e.Op, e.AuthorID, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// FeedError represents an error raised while serving a feed page
type FeedError struct {
	Op  string
	Err error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed operation %s failed: %v", e.Op, e.Err)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
