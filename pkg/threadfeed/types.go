package threadfeed

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a profile synced from the external identity provider. Subject is
// the provider's stable key; Handle may be briefly empty right after the
// user-created webhook fires.
type User struct {
	ID             uuid.UUID `json:"id"`
	Subject        string    `json:"subject"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	Handle         string    `json:"handle,omitempty"`
	Email          string    `json:"email"`
	Bio            string    `json:"bio,omitempty"`
	WebsiteURL     string    `json:"website_url,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	FollowersCount int       `json:"followers_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DisplayName joins the first and last name; either part may be absent.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}

// Thread is a single post. A reply is a thread whose ParentID points at
// another thread. Immutable after commit except for the counters.
type Thread struct {
	ID         uuid.UUID        `json:"id"`
	AuthorID   uuid.UUID        `json:"author_id"`
	Body       string           `json:"body,omitempty"`
	Media      []MediaReference `json:"media,omitempty"`
	ParentID   *uuid.UUID       `json:"parent_id,omitempty"`
	ReplyCount int              `json:"reply_count"`
	LikeCount  int              `json:"like_count"`
	CreatedAt  time.Time        `json:"created_at"`
}

// IsReply reports whether the thread was committed as a reply.
func (t *Thread) IsReply() bool {
	return t.ParentID != nil
}

// MediaReference is the durable pointer to one uploaded attachment. BlobID
// is the content identifier the blob store returned after a successful
// write; it is owned exclusively by the embedding thread.
type MediaReference struct {
	BlobID   string `json:"blob_id"`
	MimeType string `json:"mime_type"`
}

// RawAttachment is an attachment that has not been uploaded yet. The
// publisher acquires a grant, writes the bytes, and records the resulting
// MediaReference before the thread is committed.
type RawAttachment struct {
	Data     io.Reader
	MimeType string
}

// UploadGrant is a single-use capability to write one object to the blob
// store. It is consumed by exactly one successful write or discarded; it is
// never reused across files.
type UploadGrant struct {
	URL       string    `json:"upload_url"`
	ObjectKey string    `json:"object_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the grant's validity window has passed.
func (g *UploadGrant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// ThreadWithAuthor is a feed item: the thread denormalized with its
// author's current profile. The author snapshot is joined at query time,
// not stored, so profile edits show up in subsequent page fetches.
type ThreadWithAuthor struct {
	Thread
	Author *User `json:"author"`
}

// FeedPage is one page of a cursor chain. NextCursor is empty exactly when
// fewer items than the requested page size were found, which signals end of
// data.
type FeedPage struct {
	Items      []*ThreadWithAuthor `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

// MatchesQuery reports whether the user matches a directory search query.
// Matching is a case-insensitive substring test over handle and display
// name.
func (u *User) MatchesQuery(query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return false
	}
	return strings.Contains(strings.ToLower(u.Handle), q) ||
		strings.Contains(strings.ToLower(u.DisplayName()), q)
}
