package threadfeed_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
	"github.com/threadfeed/threadfeed/pkg/threadfeed/repo/memory"
	memorystorage "github.com/threadfeed/threadfeed/pkg/threadfeed/storage/memory"
)

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []threadfeed.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []threadfeed.Option{},
			expectError: true,
		},
		{
			name: "with repository should succeed",
			options: []threadfeed.Option{
				threadfeed.WithRepository(memory.New()),
			},
			expectError: false,
		},
		{
			name: "with repository and blob store should succeed",
			options: []threadfeed.Option{
				threadfeed.WithRepository(memory.New()),
				threadfeed.WithBlobStore(memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := threadfeed.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

// flakyStore wraps the memory backend and fails uploads on demand.
type flakyStore struct {
	*memorystorage.Backend

	mu       sync.Mutex
	failNext int
	uploads  int
	deleted  []string
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Backend: memorystorage.New()}
}

func (f *flakyStore) Upload(ctx context.Context, objectKey, mimeType string, reader io.Reader) error {
	f.mu.Lock()
	f.uploads++
	shouldFail := f.failNext > 0
	if shouldFail {
		f.failNext--
	}
	f.mu.Unlock()

	if shouldFail {
		return fmt.Errorf("simulated upload failure")
	}
	return f.Backend.Upload(ctx, objectKey, mimeType, reader)
}

func (f *flakyStore) Delete(ctx context.Context, objectKey string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, objectKey)
	f.mu.Unlock()
	return f.Backend.Delete(ctx, objectKey)
}

func newTestService(t *testing.T) (threadfeed.Service, *flakyStore) {
	t.Helper()
	store := newFlakyStore()
	svc, err := threadfeed.New(
		threadfeed.WithRepository(memory.New()),
		threadfeed.WithBlobStore(store),
	)
	require.NoError(t, err)
	return svc, store
}

func createUser(t *testing.T, svc threadfeed.Service, handle string) *threadfeed.User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), threadfeed.CreateUserRequest{
		Subject:   "sub-" + handle,
		FirstName: handle,
		Email:     handle + "@example.com",
		Handle:    handle,
	})
	require.NoError(t, err)
	return user
}

func attachment(content string) threadfeed.RawAttachment {
	return threadfeed.RawAttachment{
		Data:     bytes.NewReader([]byte(content)),
		MimeType: "image/jpeg",
	}
}

func TestPublishThread(t *testing.T) {
	ctx := context.Background()

	t.Run("text only", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "alice")

		thread, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, author.ID, thread.AuthorID)
		assert.Empty(t, thread.Media)
		assert.False(t, thread.IsReply())

		page, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{PageSize: 5})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, thread.ID, page.Items[0].Thread.ID)
		assert.Equal(t, "alice", page.Items[0].Author.Handle)
	})

	t.Run("attachments are uploaded before commit", func(t *testing.T) {
		svc, store := newTestService(t)
		author := createUser(t, svc, "bob")

		thread, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID:    author.ID,
			Body:        "with pics",
			Attachments: []threadfeed.RawAttachment{attachment("a"), attachment("b"), attachment("c")},
		})
		require.NoError(t, err)
		require.Len(t, thread.Media, 3)
		assert.Equal(t, 3, store.Len())

		for _, ref := range thread.Media {
			assert.NotEmpty(t, ref.BlobID)
			assert.Equal(t, "image/jpeg", ref.MimeType)

			rc, err := svc.OpenMedia(ctx, ref.BlobID)
			require.NoError(t, err)
			rc.Close()
		}
	})

	t.Run("empty body with attachments is valid", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "carol")

		thread, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID:    author.ID,
			Attachments: []threadfeed.RawAttachment{attachment("img")},
		})
		require.NoError(t, err)
		assert.Len(t, thread.Media, 1)
	})

	t.Run("empty content rejected before any upload", func(t *testing.T) {
		svc, store := newTestService(t)
		author := createUser(t, svc, "dave")

		_, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "   ",
		})
		assert.ErrorIs(t, err, threadfeed.ErrEmptyContent)
		assert.Equal(t, 0, store.uploads)
	})

	t.Run("unknown author", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: uuid.New(),
			Body:     "hello",
		})
		assert.ErrorIs(t, err, threadfeed.ErrUserNotFound)
	})

	t.Run("unknown parent", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "erin")

		missing := uuid.New()
		_, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "reply to nothing",
			ParentID: &missing,
		})
		assert.ErrorIs(t, err, threadfeed.ErrParentNotFound)
	})

	t.Run("failed upload aborts the whole publish", func(t *testing.T) {
		svc, store := newTestService(t)
		author := createUser(t, svc, "frank")
		store.failNext = 1

		_, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID:    author.ID,
			Attachments: []threadfeed.RawAttachment{attachment("a"), attachment("b")},
		})
		assert.ErrorIs(t, err, threadfeed.ErrAttachmentUploadFailed)

		// No thread committed, no orphaned blob referenced.
		page, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{PageSize: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("publish error exposes the author and operation", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "grace")

		_, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{AuthorID: author.ID})
		var pubErr *threadfeed.PublishError
		require.ErrorAs(t, err, &pubErr)
		assert.Equal(t, author.ID, pubErr.AuthorID)
		assert.Equal(t, "validate", pubErr.Op)
	})
}

func TestReplyCounter(t *testing.T) {
	ctx := context.Background()

	t.Run("single reply", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "alice")

		parent, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "parent",
		})
		require.NoError(t, err)

		reply, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "reply",
			ParentID: &parent.ID,
		})
		require.NoError(t, err)
		assert.True(t, reply.IsReply())

		got, err := svc.GetThread(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.ReplyCount)
	})

	t.Run("concurrent replies count exactly", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "bob")

		parent, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "parent",
		})
		require.NoError(t, err)

		const replies = 16
		var wg sync.WaitGroup
		errs := make([]error, replies)
		for i := 0; i < replies; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
					AuthorID: author.ID,
					Body:     fmt.Sprintf("reply %d", i),
					ParentID: &parent.ID,
				})
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}

		got, err := svc.GetThread(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, succeeded, got.ReplyCount)
	})

	t.Run("failed reply publish leaves the counter alone", func(t *testing.T) {
		svc, store := newTestService(t)
		author := createUser(t, svc, "carol")

		parent, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "parent",
		})
		require.NoError(t, err)

		store.failNext = 1
		_, err = svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID:    author.ID,
			ParentID:    &parent.ID,
			Attachments: []threadfeed.RawAttachment{attachment("x")},
		})
		assert.ErrorIs(t, err, threadfeed.ErrAttachmentUploadFailed)

		got, err := svc.GetThread(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.ReplyCount)
	})
}

func TestFeedPagination(t *testing.T) {
	ctx := context.Background()

	publishMany := func(t *testing.T, svc threadfeed.Service, author *threadfeed.User, n int) map[uuid.UUID]bool {
		t.Helper()
		ids := make(map[uuid.UUID]bool, n)
		for i := 0; i < n; i++ {
			thread, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
				AuthorID: author.ID,
				Body:     fmt.Sprintf("post %d", i),
			})
			require.NoError(t, err)
			ids[thread.ID] = true
		}
		return ids
	}

	t.Run("cursor chain covers everything exactly once", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "alice")
		published := publishMany(t, svc, author, 12)

		seen := make(map[uuid.UUID]bool)
		var prevKey *threadfeed.PageKey
		cursor := ""
		pages := 0

		for {
			page, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{Cursor: cursor, PageSize: 5})
			require.NoError(t, err)
			pages++

			for _, item := range page.Items {
				assert.False(t, seen[item.Thread.ID], "duplicate thread across pages")
				seen[item.Thread.ID] = true

				// Reverse-chronological order holds across page boundaries.
				if prevKey != nil {
					after := item.CreatedAt.Before(prevKey.CreatedAt) ||
						(item.CreatedAt.Equal(prevKey.CreatedAt) &&
							bytes.Compare(item.Thread.ID[:], prevKey.ID[:]) < 0)
					assert.True(t, after, "ordering violated across pages")
				}
				prevKey = &threadfeed.PageKey{CreatedAt: item.CreatedAt, ID: item.Thread.ID}
			}

			if page.NextCursor == "" {
				assert.Less(t, len(page.Items), 5)
				break
			}
			assert.Len(t, page.Items, 5)
			cursor = page.NextCursor
		}

		assert.Equal(t, 3, pages)
		assert.Equal(t, len(published), len(seen))
		for id := range published {
			assert.True(t, seen[id])
		}
	})

	t.Run("next cursor absent iff short page", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "bob")
		publishMany(t, svc, author, 4)

		full, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{PageSize: 4})
		require.NoError(t, err)
		assert.Len(t, full.Items, 4)
		assert.NotEmpty(t, full.NextCursor)

		rest, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{Cursor: full.NextCursor, PageSize: 4})
		require.NoError(t, err)
		assert.Empty(t, rest.Items)
		assert.Empty(t, rest.NextCursor)
	})

	t.Run("publish during pagination never duplicates", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "carol")
		publishMany(t, svc, author, 6)

		first, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{PageSize: 3})
		require.NoError(t, err)
		require.Len(t, first.Items, 3)
		require.NotEmpty(t, first.NextCursor)

		// A thread committed after the first page was issued.
		late, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "late arrival",
		})
		require.NoError(t, err)

		seen := make(map[uuid.UUID]bool)
		for _, item := range first.Items {
			seen[item.Thread.ID] = true
		}

		cursor := first.NextCursor
		for cursor != "" {
			page, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{Cursor: cursor, PageSize: 3})
			require.NoError(t, err)
			for _, item := range page.Items {
				assert.False(t, seen[item.Thread.ID], "duplicate in cursor chain")
				assert.NotEqual(t, late.ID, item.Thread.ID, "late publish injected into old cursor chain")
				seen[item.Thread.ID] = true
			}
			cursor = page.NextCursor
		}

		// The late thread is on the first page of a fresh fetch.
		fresh, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{PageSize: 3})
		require.NoError(t, err)
		require.NotEmpty(t, fresh.Items)
		assert.Equal(t, late.ID, fresh.Items[0].Thread.ID)
	})

	t.Run("global feed excludes replies, author feed includes them", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "dave")

		parent, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "top level",
		})
		require.NoError(t, err)

		reply, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "a reply",
			ParentID: &parent.ID,
		})
		require.NoError(t, err)

		global, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{PageSize: 10})
		require.NoError(t, err)
		require.Len(t, global.Items, 1)
		assert.Equal(t, parent.ID, global.Items[0].Thread.ID)

		profile, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{
			AuthorID: &author.ID,
			PageSize: 10,
		})
		require.NoError(t, err)
		assert.Len(t, profile.Items, 2)
		_ = reply
	})

	t.Run("author edits show in later fetches", func(t *testing.T) {
		svc, _ := newTestService(t)
		author := createUser(t, svc, "erin")

		_, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     "hello",
		})
		require.NoError(t, err)

		_, err = svc.UpdateBio(ctx, threadfeed.UpdateBioRequest{UserID: author.ID, Bio: "new bio"})
		require.NoError(t, err)

		page, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{PageSize: 5})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "new bio", page.Items[0].Author.Bio)
	})

	t.Run("empty feed is not an error", func(t *testing.T) {
		svc, _ := newTestService(t)

		page, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{PageSize: 5})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("invalid cursor", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.GetFeedPage(ctx, threadfeed.FeedPageRequest{Cursor: "not-a-cursor", PageSize: 5})
		assert.ErrorIs(t, err, threadfeed.ErrInvalidCursor)
	})
}

func TestGetReplies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	author := createUser(t, svc, "alice")

	parent, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
		AuthorID: author.ID,
		Body:     "parent",
	})
	require.NoError(t, err)

	var replyIDs []uuid.UUID
	for i := 0; i < 5; i++ {
		reply, err := svc.PublishThread(ctx, threadfeed.PublishThreadRequest{
			AuthorID: author.ID,
			Body:     fmt.Sprintf("reply %d", i),
			ParentID: &parent.ID,
		})
		require.NoError(t, err)
		replyIDs = append(replyIDs, reply.ID)
	}

	seen := make(map[uuid.UUID]bool)
	cursor := ""
	for {
		page, err := svc.GetReplies(ctx, threadfeed.RepliesPageRequest{
			ParentID: parent.ID,
			Cursor:   cursor,
			PageSize: 2,
		})
		require.NoError(t, err)
		for _, item := range page.Items {
			assert.False(t, seen[item.Thread.ID])
			seen[item.Thread.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Len(t, seen, len(replyIDs))

	_, err = svc.GetReplies(ctx, threadfeed.RepliesPageRequest{ParentID: uuid.New(), PageSize: 2})
	assert.ErrorIs(t, err, threadfeed.ErrThreadNotFound)
}

func TestSearchUsers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	popular := createUser(t, svc, "anna")
	require.NoError(t, svc.AdjustFollowers(ctx, popular.ID, 100))
	createUser(t, svc, "annabel")
	createUser(t, svc, "zed")

	t.Run("substring match ranked by followers", func(t *testing.T) {
		results, err := svc.SearchUsers(ctx, "ann")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "anna", results[0].Handle)
		assert.Equal(t, "annabel", results[1].Handle)
	})

	t.Run("match is case insensitive over display name too", func(t *testing.T) {
		results, err := svc.SearchUsers(ctx, "ANNA")
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("no match yields empty slice", func(t *testing.T) {
		results, err := svc.SearchUsers(ctx, "zzz-no-such-user")
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("empty query rejected", func(t *testing.T) {
		_, err := svc.SearchUsers(ctx, "   ")
		assert.ErrorIs(t, err, threadfeed.ErrEmptyQuery)
	})
}

func TestUploadGrants(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.GenerateUploadGrant(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first.URL)
	assert.NotEmpty(t, first.ObjectKey)
	assert.True(t, first.ExpiresAt.After(time.Now()))

	second, err := svc.GenerateUploadGrant(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.ObjectKey, second.ObjectKey, "grants must be independent")
	assert.NotEqual(t, first.URL, second.URL)
}

func TestProfileMutations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := createUser(t, svc, "alice")

	updated, err := svc.UpdateLink(ctx, threadfeed.UpdateLinkRequest{UserID: user.ID, WebsiteURL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", updated.WebsiteURL)

	updated, err = svc.UpdateProfileImage(ctx, threadfeed.UpdateProfileImageRequest{UserID: user.ID, ImageURL: "https://img.example.com/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/a.png", updated.ImageURL)

	updated, err = svc.UpdateDisplayName(ctx, threadfeed.UpdateDisplayNameRequest{UserID: user.ID, FirstName: "Alicia", LastName: "Smith"})
	require.NoError(t, err)
	assert.Equal(t, "Alicia Smith", updated.DisplayName())

	_, err = svc.UpdateBio(ctx, threadfeed.UpdateBioRequest{UserID: uuid.New(), Bio: "nope"})
	assert.ErrorIs(t, err, threadfeed.ErrUserNotFound)
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	user, err := svc.CreateUser(ctx, threadfeed.CreateUserRequest{
		Subject: "identity|123",
		Email:   "u@example.com",
	})
	require.NoError(t, err)
	assert.Empty(t, user.Handle, "handle may be absent right after creation")

	_, err = svc.CreateUser(ctx, threadfeed.CreateUserRequest{Subject: "identity|123"})
	assert.ErrorIs(t, err, threadfeed.ErrUserExists)

	found, err := svc.GetUserBySubject(ctx, "identity|123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.CreateUser(ctx, threadfeed.CreateUserRequest{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, threadfeed.ErrUserExists))
}

func TestAdjustFollowers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := createUser(t, svc, "alice")

	require.NoError(t, svc.AdjustFollowers(ctx, user.ID, 2))
	require.NoError(t, svc.AdjustFollowers(ctx, user.ID, -5))

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FollowersCount, "follower count never drops below zero")
}
