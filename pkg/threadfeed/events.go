package threadfeed

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful when event handling is not needed or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// UserCreated does nothing and returns nil
func (n *NoopEventSink) UserCreated(ctx context.Context, user *User) error {
	return nil
}

// UserUpdated does nothing and returns nil
func (n *NoopEventSink) UserUpdated(ctx context.Context, user *User) error {
	return nil
}

// ThreadPublished does nothing and returns nil
func (n *NoopEventSink) ThreadPublished(ctx context.Context, thread *Thread) error {
	return nil
}

// LogEventSink writes one structured log line per event.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates an event sink backed by the given logger. A nil
// logger falls back to slog.Default().
func NewLogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger}
}

func (l *LogEventSink) UserCreated(ctx context.Context, user *User) error {
	l.logger.InfoContext(ctx, "user created",
		"user_id", user.ID,
		"subject", user.Subject,
		"handle", user.Handle)
	return nil
}

func (l *LogEventSink) UserUpdated(ctx context.Context, user *User) error {
	l.logger.InfoContext(ctx, "user updated",
		"user_id", user.ID,
		"handle", user.Handle)
	return nil
}

func (l *LogEventSink) ThreadPublished(ctx context.Context, thread *Thread) error {
	l.logger.InfoContext(ctx, "thread published",
		"thread_id", thread.ID,
		"author_id", thread.AuthorID,
		"media_count", len(thread.Media),
		"is_reply", thread.IsReply())
	return nil
}
