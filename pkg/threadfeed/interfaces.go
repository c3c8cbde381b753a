package threadfeed

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for durable object storage backends.
// Objects are addressed by opaque keys; writes happen either directly
// through Upload or out of band through a presigned URL obtained from
// GetUploadURL.
type BlobStore interface {
	// GetUploadURL returns a short-lived presigned URL for writing one
	// object at the given key
	GetUploadURL(ctx context.Context, objectKey string) (string, error)

	// Upload writes object bytes directly
	Upload(ctx context.Context, objectKey, mimeType string, reader io.Reader) error

	// GetDownloadURL returns a presigned URL for reading an object
	GetDownloadURL(ctx context.Context, objectKey string) (string, error)

	// Download reads object bytes directly
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes an object
	Delete(ctx context.Context, objectKey string) error
}

// ThreadPage describes one keyset page of threads. A nil Key means the
// first page. AuthorID narrows the page to one author's threads, replies
// included; without it only top-level threads are returned.
type ThreadPage struct {
	AuthorID *uuid.UUID
	Key      *PageKey
	Limit    int
}

// Repository defines the interface for user and thread persistence.
//
// CommitThread is the single atomic write path: the thread insert and,
// for replies, the parent reply-counter increment are applied together or
// not at all. AdjustFollowers is likewise a single round trip, never
// read-then-write.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserBySubject(ctx context.Context, subject string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	SearchUsers(ctx context.Context, query string) ([]*User, error)
	AdjustFollowers(ctx context.Context, id uuid.UUID, delta int) error

	// Thread operations
	CommitThread(ctx context.Context, thread *Thread) error
	GetThread(ctx context.Context, id uuid.UUID) (*Thread, error)
	ListThreads(ctx context.Context, page ThreadPage) ([]*ThreadWithAuthor, error)
	ListReplies(ctx context.Context, parentID uuid.UUID, page ThreadPage) ([]*ThreadWithAuthor, error)
}

// EventSink defines the interface for event handling
type EventSink interface {
	// UserCreated is fired when a user is synced from the identity provider
	UserCreated(ctx context.Context, user *User) error

	// UserUpdated is fired when a profile mutation succeeds
	UserUpdated(ctx context.Context, user *User) error

	// ThreadPublished is fired when a thread commit succeeds
	ThreadPublished(ctx context.Context, thread *Thread) error
}
