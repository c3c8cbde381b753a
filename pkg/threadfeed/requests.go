package threadfeed

import "github.com/google/uuid"

// Request/Response DTOs

// CreateUserRequest contains the fields delivered by the identity
// provider's user-created event. Handle may be absent at creation time.
type CreateUserRequest struct {
	Subject        string
	FirstName      string
	LastName       string
	Email          string
	Handle         string
	ImageURL       string
	FollowersCount int
}

// PublishThreadRequest contains parameters for publishing a thread.
//
// Attachments are raw files the publisher uploads itself, one grant per
// file, before the commit. Media carries content identifiers the client
// already uploaded through the grant flow. Either list may be empty, but
// a thread with an empty body needs at least one of the two.
type PublishThreadRequest struct {
	AuthorID    uuid.UUID
	Body        string
	Attachments []RawAttachment
	Media       []MediaReference
	ParentID    *uuid.UUID
}

// FeedPageRequest contains parameters for fetching one feed page. An
// empty Cursor means the first page. AuthorID switches from the global
// top-level feed to a single author's threads, replies included.
type FeedPageRequest struct {
	AuthorID *uuid.UUID
	Cursor   string
	PageSize int
}

// RepliesPageRequest contains parameters for listing the replies under
// one thread, oldest first.
type RepliesPageRequest struct {
	ParentID uuid.UUID
	Cursor   string
	PageSize int
}

// UpdateBioRequest contains parameters for replacing a user's bio
type UpdateBioRequest struct {
	UserID uuid.UUID
	Bio    string
}

// UpdateLinkRequest contains parameters for replacing a user's website link
type UpdateLinkRequest struct {
	UserID     uuid.UUID
	WebsiteURL string
}

// UpdateProfileImageRequest contains parameters for replacing a user's
// profile image reference
type UpdateProfileImageRequest struct {
	UserID   uuid.UUID
	ImageURL string
}

// UpdateDisplayNameRequest contains parameters for replacing a user's
// display name
type UpdateDisplayNameRequest struct {
	UserID    uuid.UUID
	FirstName string
	LastName  string
}
