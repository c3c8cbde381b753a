package threadfeed

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the threadfeed library
type Service interface {
	// User operations
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserBySubject(ctx context.Context, subject string) (*User, error)
	UpdateBio(ctx context.Context, req UpdateBioRequest) (*User, error)
	UpdateLink(ctx context.Context, req UpdateLinkRequest) (*User, error)
	UpdateProfileImage(ctx context.Context, req UpdateProfileImageRequest) (*User, error)
	UpdateDisplayName(ctx context.Context, req UpdateDisplayNameRequest) (*User, error)
	AdjustFollowers(ctx context.Context, id uuid.UUID, delta int) error

	// Directory search
	SearchUsers(ctx context.Context, query string) ([]*User, error)

	// Upload grant operations
	GenerateUploadGrant(ctx context.Context) (*UploadGrant, error)

	// Thread operations
	PublishThread(ctx context.Context, req PublishThreadRequest) (*Thread, error)
	GetThread(ctx context.Context, id uuid.UUID) (*ThreadWithAuthor, error)
	GetFeedPage(ctx context.Context, req FeedPageRequest) (*FeedPage, error)
	GetReplies(ctx context.Context, req RepliesPageRequest) (*FeedPage, error)

	// Media operations
	ResolveMediaURL(ctx context.Context, blobID string) (string, error)
	OpenMedia(ctx context.Context, blobID string) (io.ReadCloser, error)
}
