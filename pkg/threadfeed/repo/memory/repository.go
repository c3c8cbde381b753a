package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

// Repository implements threadfeed.Repository using in-memory storage
type Repository struct {
	mu             sync.RWMutex
	users          map[uuid.UUID]*threadfeed.User
	usersBySubject map[string]uuid.UUID
	threads        map[uuid.UUID]*threadfeed.Thread
}

// New creates a new in-memory repository
func New() threadfeed.Repository {
	return &Repository{
		users:          make(map[uuid.UUID]*threadfeed.User),
		usersBySubject: make(map[string]uuid.UUID),
		threads:        make(map[uuid.UUID]*threadfeed.Thread),
	}
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *threadfeed.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.usersBySubject[user.Subject]; exists {
		return threadfeed.ErrUserExists
	}

	// Store a copy to avoid external modifications
	userCopy := *user
	r.users[user.ID] = &userCopy
	r.usersBySubject[user.Subject] = user.ID

	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*threadfeed.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, threadfeed.ErrUserNotFound
	}

	userCopy := *user
	return &userCopy, nil
}

func (r *Repository) GetUserBySubject(ctx context.Context, subject string) (*threadfeed.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.usersBySubject[subject]
	if !exists {
		return nil, threadfeed.ErrUserNotFound
	}

	userCopy := *r.users[id]
	return &userCopy, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *threadfeed.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.users[user.ID]
	if !exists {
		return threadfeed.ErrUserNotFound
	}

	userCopy := *user
	// Counters are owned by the atomic adjustment path, not profile updates.
	userCopy.FollowersCount = stored.FollowersCount
	r.users[user.ID] = &userCopy

	return nil
}

func (r *Repository) SearchUsers(ctx context.Context, query string) ([]*threadfeed.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*threadfeed.User
	for _, user := range r.users {
		if user.MatchesQuery(query) {
			userCopy := *user
			matches = append(matches, &userCopy)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].FollowersCount != matches[j].FollowersCount {
			return matches[i].FollowersCount > matches[j].FollowersCount
		}
		return strings.ToLower(matches[i].Handle) < strings.ToLower(matches[j].Handle)
	})

	return matches, nil
}

func (r *Repository) AdjustFollowers(ctx context.Context, id uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return threadfeed.ErrUserNotFound
	}

	user.FollowersCount += delta
	if user.FollowersCount < 0 {
		user.FollowersCount = 0
	}

	return nil
}

// Thread operations

// CommitThread inserts the thread and, when it is a reply, increments the
// parent's reply counter under the same lock so no reader observes one
// without the other.
func (r *Repository) CommitThread(ctx context.Context, thread *threadfeed.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[thread.AuthorID]; !exists {
		return threadfeed.ErrUserNotFound
	}

	var parent *threadfeed.Thread
	if thread.ParentID != nil {
		var exists bool
		parent, exists = r.threads[*thread.ParentID]
		if !exists {
			return threadfeed.ErrParentNotFound
		}
	}

	threadCopy := *thread
	threadCopy.Media = append([]threadfeed.MediaReference(nil), thread.Media...)
	r.threads[thread.ID] = &threadCopy

	if parent != nil {
		parent.ReplyCount++
	}

	return nil
}

func (r *Repository) GetThread(ctx context.Context, id uuid.UUID) (*threadfeed.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	thread, exists := r.threads[id]
	if !exists {
		return nil, threadfeed.ErrThreadNotFound
	}

	return copyThread(thread), nil
}

func (r *Repository) ListThreads(ctx context.Context, page threadfeed.ThreadPage) ([]*threadfeed.ThreadWithAuthor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var selected []*threadfeed.Thread
	for _, thread := range r.threads {
		if page.AuthorID != nil {
			if thread.AuthorID != *page.AuthorID {
				continue
			}
		} else if thread.ParentID != nil {
			// Global feed carries top-level threads only.
			continue
		}
		if page.Key != nil && !beforeKey(thread, page.Key) {
			continue
		}
		selected = append(selected, thread)
	}

	// Reverse chronological, id as tie-break.
	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].CreatedAt.Equal(selected[j].CreatedAt) {
			return selected[i].CreatedAt.After(selected[j].CreatedAt)
		}
		return bytes.Compare(selected[i].ID[:], selected[j].ID[:]) > 0
	})

	if page.Limit > 0 && len(selected) > page.Limit {
		selected = selected[:page.Limit]
	}

	return r.joinAuthors(selected), nil
}

func (r *Repository) ListReplies(ctx context.Context, parentID uuid.UUID, page threadfeed.ThreadPage) ([]*threadfeed.ThreadWithAuthor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.threads[parentID]; !exists {
		return nil, threadfeed.ErrThreadNotFound
	}

	var selected []*threadfeed.Thread
	for _, thread := range r.threads {
		if thread.ParentID == nil || *thread.ParentID != parentID {
			continue
		}
		if page.Key != nil && !afterKey(thread, page.Key) {
			continue
		}
		selected = append(selected, thread)
	}

	// Replies read oldest first.
	sort.Slice(selected, func(i, j int) bool {
		if !selected[i].CreatedAt.Equal(selected[j].CreatedAt) {
			return selected[i].CreatedAt.Before(selected[j].CreatedAt)
		}
		return bytes.Compare(selected[i].ID[:], selected[j].ID[:]) < 0
	})

	if page.Limit > 0 && len(selected) > page.Limit {
		selected = selected[:page.Limit]
	}

	return r.joinAuthors(selected), nil
}

// joinAuthors denormalizes each thread with its author's current profile.
// Callers hold at least the read lock.
func (r *Repository) joinAuthors(threads []*threadfeed.Thread) []*threadfeed.ThreadWithAuthor {
	items := make([]*threadfeed.ThreadWithAuthor, 0, len(threads))
	for _, thread := range threads {
		author, exists := r.users[thread.AuthorID]
		if !exists {
			continue
		}
		authorCopy := *author
		items = append(items, &threadfeed.ThreadWithAuthor{
			Thread: *copyThread(thread),
			Author: &authorCopy,
		})
	}
	return items
}

// beforeKey reports whether the thread sorts strictly after the key in
// the reverse-chronological order, i.e. belongs on a later page.
func beforeKey(t *threadfeed.Thread, key *threadfeed.PageKey) bool {
	if !t.CreatedAt.Equal(key.CreatedAt) {
		return t.CreatedAt.Before(key.CreatedAt)
	}
	return bytes.Compare(t.ID[:], key.ID[:]) < 0
}

// afterKey is the ascending counterpart used by reply listings.
func afterKey(t *threadfeed.Thread, key *threadfeed.PageKey) bool {
	if !t.CreatedAt.Equal(key.CreatedAt) {
		return t.CreatedAt.After(key.CreatedAt)
	}
	return bytes.Compare(t.ID[:], key.ID[:]) > 0
}

func copyThread(t *threadfeed.Thread) *threadfeed.Thread {
	threadCopy := *t
	threadCopy.Media = append([]threadfeed.MediaReference(nil), t.Media...)
	return &threadCopy
}
