package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

const defaultGrantTTL = 15 * time.Minute

// Backend is an in-memory implementation of the threadfeed.BlobStore
// interface. Upload URLs are synthetic (memory://) write grants tracked in
// the backend itself, enforcing single use and expiry the way a presigning
// object store would.
type Backend struct {
	mu              sync.RWMutex
	objects         map[string][]byte
	objectsMimeType map[string]string
	grants          map[string]*grant
	grantTTL        time.Duration
	now             func() time.Time
}

type grant struct {
	objectKey string
	expiresAt time.Time
	consumed  bool
}

// Option configures the in-memory backend
type Option func(*Backend)

// WithGrantTTL sets the validity window of issued upload URLs
func WithGrantTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		if ttl > 0 {
			b.grantTTL = ttl
		}
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New creates a new in-memory storage backend
func New(opts ...Option) *Backend {
	b := &Backend{
		objects:         make(map[string][]byte),
		objectsMimeType: make(map[string]string),
		grants:          make(map[string]*grant),
		grantTTL:        defaultGrantTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GetUploadURL issues a fresh single-use write grant for the key
func (b *Backend) GetUploadURL(ctx context.Context, objectKey string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	token := uuid.New().String()
	b.grants[token] = &grant{
		objectKey: objectKey,
		expiresAt: b.now().Add(b.grantTTL),
	}

	return fmt.Sprintf("memory://%s?token=%s", objectKey, token), nil
}

// PutGranted simulates the client-side POST against an issued upload URL.
// The grant is consumed by the first successful write; a second use or a
// write past expiry is rejected.
func (b *Backend) PutGranted(ctx context.Context, token, mimeType string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	g, exists := b.grants[token]
	if !exists {
		return "", errors.New("unknown upload grant")
	}
	if g.consumed {
		return "", threadfeed.ErrGrantConsumed
	}
	if b.now().After(g.expiresAt) {
		return "", threadfeed.ErrGrantExpired
	}

	g.consumed = true
	b.objects[g.objectKey] = data
	b.objectsMimeType[g.objectKey] = mimeType

	return g.objectKey, nil
}

// Upload uploads content directly
func (b *Backend) Upload(ctx context.Context, objectKey, mimeType string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = data
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	b.objectsMimeType[objectKey] = mimeType
	return nil
}

// GetDownloadURL returns a synthetic URL for downloading content
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, exists := b.objects[objectKey]; !exists {
		return "", errors.New("object not found")
	}
	return fmt.Sprintf("memory://%s", objectKey), nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, errors.New("object not found")
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, objectKey)
	delete(b.objectsMimeType, objectKey)
	return nil
}

// MimeType reports the stored MIME type of an object, for tests
func (b *Backend) MimeType(objectKey string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.objectsMimeType[objectKey]
}

// Len reports the number of stored objects, for tests
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
