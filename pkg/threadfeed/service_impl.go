package threadfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGrantTTL bounds how long an issued upload grant stays valid.
	// Abandoned grants expire instead of lingering as open write
	// capabilities.
	DefaultGrantTTL = 15 * time.Minute

	// DefaultPageSize is used when a feed request does not specify one.
	DefaultPageSize = 20

	// DefaultMaxPageSize caps the page size a caller may request.
	DefaultMaxPageSize = 50
)

// service implements the Service interface
type service struct {
	repository  Repository
	blobStore   BlobStore
	eventSink   EventSink
	grantTTL    time.Duration
	pageSize    int
	maxPageSize int
	now         func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobStore = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithGrantTTL sets the validity window for issued upload grants
func WithGrantTTL(ttl time.Duration) Option {
	return func(s *service) {
		if ttl > 0 {
			s.grantTTL = ttl
		}
	}
}

// WithPageSizes sets the default and maximum feed page sizes
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(s *service) {
		if defaultSize > 0 {
			s.pageSize = defaultSize
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		grantTTL:    DefaultGrantTTL,
		pageSize:    DefaultPageSize,
		maxPageSize: DefaultMaxPageSize,
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}

	return s, nil
}

// User operations

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if req.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}

	if existing, err := s.repository.GetUserBySubject(ctx, req.Subject); err == nil && existing != nil {
		return nil, ErrUserExists
	}

	now := s.now()
	user := &User{
		ID:             uuid.New(),
		Subject:        req.Subject,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Handle:         req.Handle,
		ImageURL:       req.ImageURL,
		FollowersCount: req.FollowersCount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repository.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.fireEvent(func() error { return s.eventSink.UserCreated(ctx, user) })
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repository.GetUser(ctx, id)
}

func (s *service) GetUserBySubject(ctx context.Context, subject string) (*User, error) {
	return s.repository.GetUserBySubject(ctx, subject)
}

func (s *service) UpdateBio(ctx context.Context, req UpdateBioRequest) (*User, error) {
	return s.updateUser(ctx, req.UserID, func(u *User) {
		u.Bio = req.Bio
	})
}

func (s *service) UpdateLink(ctx context.Context, req UpdateLinkRequest) (*User, error) {
	return s.updateUser(ctx, req.UserID, func(u *User) {
		u.WebsiteURL = req.WebsiteURL
	})
}

func (s *service) UpdateProfileImage(ctx context.Context, req UpdateProfileImageRequest) (*User, error) {
	return s.updateUser(ctx, req.UserID, func(u *User) {
		u.ImageURL = req.ImageURL
	})
}

func (s *service) UpdateDisplayName(ctx context.Context, req UpdateDisplayNameRequest) (*User, error) {
	return s.updateUser(ctx, req.UserID, func(u *User) {
		u.FirstName = req.FirstName
		u.LastName = req.LastName
	})
}

func (s *service) updateUser(ctx context.Context, id uuid.UUID, mutate func(*User)) (*User, error) {
	user, err := s.repository.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	mutate(user)
	user.UpdatedAt = s.now()

	if err := s.repository.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.fireEvent(func() error { return s.eventSink.UserUpdated(ctx, user) })
	return user, nil
}

func (s *service) AdjustFollowers(ctx context.Context, id uuid.UUID, delta int) error {
	return s.repository.AdjustFollowers(ctx, id, delta)
}

// Directory search

func (s *service) SearchUsers(ctx context.Context, query string) ([]*User, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	return s.repository.SearchUsers(ctx, query)
}

// Upload grant operations

func (s *service) GenerateUploadGrant(ctx context.Context) (*UploadGrant, error) {
	if s.blobStore == nil {
		return nil, fmt.Errorf("no blob store configured")
	}

	objectKey := uuid.New().String()
	url, err := s.blobStore.GetUploadURL(ctx, objectKey)
	if err != nil {
		return nil, &StorageError{
			Key: objectKey,
			Op:  "presign",
			Err: fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err),
		}
	}

	return &UploadGrant{
		URL:       url,
		ObjectKey: objectKey,
		ExpiresAt: s.now().Add(s.grantTTL),
	}, nil
}

// Thread operations

func (s *service) PublishThread(ctx context.Context, req PublishThreadRequest) (*Thread, error) {
	if _, err := s.repository.GetUser(ctx, req.AuthorID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, &PublishError{AuthorID: req.AuthorID, Op: "validate", Err: ErrUserNotFound}
		}
		return nil, &PublishError{AuthorID: req.AuthorID, Op: "validate", Err: err}
	}

	if strings.TrimSpace(req.Body) == "" && len(req.Attachments) == 0 && len(req.Media) == 0 {
		return nil, &PublishError{AuthorID: req.AuthorID, Op: "validate", Err: ErrEmptyContent}
	}

	if req.ParentID != nil {
		if _, err := s.repository.GetThread(ctx, *req.ParentID); err != nil {
			if errors.Is(err, ErrThreadNotFound) {
				return nil, &PublishError{AuthorID: req.AuthorID, Op: "validate", Err: ErrParentNotFound}
			}
			return nil, &PublishError{AuthorID: req.AuthorID, Op: "validate", Err: err}
		}
	}

	uploaded, err := s.uploadAttachments(ctx, req.Attachments)
	if err != nil {
		return nil, &PublishError{AuthorID: req.AuthorID, Op: "upload", Err: err}
	}

	media := make([]MediaReference, 0, len(req.Media)+len(uploaded))
	media = append(media, req.Media...)
	media = append(media, uploaded...)

	thread := &Thread{
		ID:        uuid.New(),
		AuthorID:  req.AuthorID,
		Body:      req.Body,
		Media:     media,
		ParentID:  req.ParentID,
		CreatedAt: s.now(),
	}

	if err := s.repository.CommitThread(ctx, thread); err != nil {
		s.discardBlobs(ctx, uploaded)
		if errors.Is(err, ErrThreadNotFound) {
			err = ErrParentNotFound
		}
		return nil, &PublishError{AuthorID: req.AuthorID, Op: "commit", Err: err}
	}

	s.fireEvent(func() error { return s.eventSink.ThreadPublished(ctx, thread) })
	return thread, nil
}

// uploadAttachments writes every raw attachment to the blob store, one
// fresh grant per file, concurrently. Either every upload succeeds or the
// already-written blobs are discarded and an error is returned; the caller
// never commits a partially-uploaded set.
func (s *service) uploadAttachments(ctx context.Context, attachments []RawAttachment) ([]MediaReference, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("%w: no blob store configured", ErrAttachmentUploadFailed)
	}

	refs := make([]MediaReference, len(attachments))
	g, gctx := errgroup.WithContext(ctx)

	for i, att := range attachments {
		i, att := i, att
		g.Go(func() error {
			key := uuid.New().String()
			if err := s.blobStore.Upload(gctx, key, att.MimeType, att.Data); err != nil {
				return fmt.Errorf("%w: %v", ErrAttachmentUploadFailed, err)
			}
			refs[i] = MediaReference{BlobID: key, MimeType: att.MimeType}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discardBlobs(ctx, refs)
		return nil, err
	}

	return refs, nil
}

// discardBlobs deletes blobs written during an abandoned publish. Failures
// here leave unreferenced objects behind, which is acceptable; the commit
// already did not happen.
func (s *service) discardBlobs(ctx context.Context, refs []MediaReference) {
	if s.blobStore == nil {
		return
	}
	for _, ref := range refs {
		if ref.BlobID == "" {
			continue
		}
		_ = s.blobStore.Delete(ctx, ref.BlobID)
	}
}

func (s *service) GetThread(ctx context.Context, id uuid.UUID) (*ThreadWithAuthor, error) {
	thread, err := s.repository.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}

	author, err := s.repository.GetUser(ctx, thread.AuthorID)
	if err != nil {
		return nil, err
	}

	return &ThreadWithAuthor{Thread: *thread, Author: author}, nil
}

func (s *service) GetFeedPage(ctx context.Context, req FeedPageRequest) (*FeedPage, error) {
	limit := s.clampPageSize(req.PageSize)

	page := ThreadPage{AuthorID: req.AuthorID, Limit: limit}
	if req.Cursor != "" {
		key, err := DecodeCursor(req.Cursor)
		if err != nil {
			return nil, &FeedError{Op: "decode_cursor", Err: err}
		}
		page.Key = &key
	}

	items, err := s.repository.ListThreads(ctx, page)
	if err != nil {
		return nil, &FeedError{Op: "list", Err: err}
	}

	return s.buildPage(items, limit), nil
}

func (s *service) GetReplies(ctx context.Context, req RepliesPageRequest) (*FeedPage, error) {
	limit := s.clampPageSize(req.PageSize)

	page := ThreadPage{Limit: limit}
	if req.Cursor != "" {
		key, err := DecodeCursor(req.Cursor)
		if err != nil {
			return nil, &FeedError{Op: "decode_cursor", Err: err}
		}
		page.Key = &key
	}

	items, err := s.repository.ListReplies(ctx, req.ParentID, page)
	if err != nil {
		return nil, &FeedError{Op: "list_replies", Err: err}
	}

	return s.buildPage(items, limit), nil
}

func (s *service) buildPage(items []*ThreadWithAuthor, limit int) *FeedPage {
	result := &FeedPage{Items: items}
	if len(items) == limit {
		last := items[len(items)-1]
		result.NextCursor = EncodeCursor(PageKey{CreatedAt: last.CreatedAt, ID: last.Thread.ID})
	}
	return result
}

func (s *service) clampPageSize(requested int) int {
	switch {
	case requested <= 0:
		return s.pageSize
	case requested > s.maxPageSize:
		return s.maxPageSize
	default:
		return requested
	}
}

// Media operations

func (s *service) ResolveMediaURL(ctx context.Context, blobID string) (string, error) {
	if s.blobStore == nil {
		return "", fmt.Errorf("no blob store configured")
	}

	url, err := s.blobStore.GetDownloadURL(ctx, blobID)
	if err != nil {
		return "", &StorageError{Key: blobID, Op: "presign_download", Err: err}
	}
	return url, nil
}

func (s *service) OpenMedia(ctx context.Context, blobID string) (io.ReadCloser, error) {
	if s.blobStore == nil {
		return nil, fmt.Errorf("no blob store configured")
	}

	rc, err := s.blobStore.Download(ctx, blobID)
	if err != nil {
		return nil, &StorageError{Key: blobID, Op: "download", Err: err}
	}
	return rc, nil
}

// fireEvent runs an event hook without letting sink failures fail the
// operation that fired them.
func (s *service) fireEvent(fire func() error) {
	_ = fire()
}
