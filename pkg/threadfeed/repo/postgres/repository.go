package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

// DBTX is an interface that allows us to use either a connection pool or a
// transaction. Begin is needed because the thread commit runs in its own
// transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements threadfeed.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) threadfeed.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool
func NewWithPool(pool *pgxpool.Pool) threadfeed.Repository {
	return &Repository{db: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "subject") || strings.Contains(pgErr.ConstraintName, "users") {
				return threadfeed.ErrUserExists
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			if strings.Contains(pgErr.ConstraintName, "parent") {
				return threadfeed.ErrParentNotFound
			}
			if strings.Contains(pgErr.ConstraintName, "author") {
				return threadfeed.ErrUserNotFound
			}
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *threadfeed.User) error {
	query := `
		INSERT INTO users (
			id, subject, first_name, last_name, handle, email, bio,
			website_url, image_url, followers_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Subject, user.FirstName, user.LastName, user.Handle,
		user.Email, user.Bio, user.WebsiteURL, user.ImageURL,
		user.FollowersCount, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create_user", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*threadfeed.User, error) {
	return r.getUserBy(ctx, "id = $1", id)
}

func (r *Repository) GetUserBySubject(ctx context.Context, subject string) (*threadfeed.User, error) {
	return r.getUserBy(ctx, "subject = $1", subject)
}

func (r *Repository) getUserBy(ctx context.Context, where string, arg interface{}) (*threadfeed.User, error) {
	query := `
		SELECT id, subject, first_name, last_name, handle, email, bio,
		       website_url, image_url, followers_count, created_at, updated_at
		FROM users
		WHERE ` + where

	user := &threadfeed.User{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Subject, &user.FirstName, &user.LastName, &user.Handle,
		&user.Email, &user.Bio, &user.WebsiteURL, &user.ImageURL,
		&user.FollowersCount, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, threadfeed.ErrUserNotFound
		}
		return nil, r.handlePostgresError("get_user", err)
	}

	return user, nil
}

// UpdateUser replaces the profile fields. The follower counter is owned by
// AdjustFollowers and deliberately left out of the update.
func (r *Repository) UpdateUser(ctx context.Context, user *threadfeed.User) error {
	query := `
		UPDATE users
		SET first_name = $2,
		    last_name = $3,
		    handle = $4,
		    email = $5,
		    bio = $6,
		    website_url = $7,
		    image_url = $8,
		    updated_at = $9
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Handle, user.Email,
		user.Bio, user.WebsiteURL, user.ImageURL, user.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update_user", err)
	}
	if tag.RowsAffected() == 0 {
		return threadfeed.ErrUserNotFound
	}
	return nil
}

func (r *Repository) SearchUsers(ctx context.Context, query string) ([]*threadfeed.User, error) {
	sql := `
		SELECT id, subject, first_name, last_name, handle, email, bio,
		       website_url, image_url, followers_count, created_at, updated_at
		FROM users
		WHERE handle ILIKE $1
		   OR concat_ws(' ', first_name, last_name) ILIKE $1
		ORDER BY followers_count DESC, lower(handle) ASC`

	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.db.Query(ctx, sql, pattern)
	if err != nil {
		return nil, r.handlePostgresError("search_users", err)
	}
	defer rows.Close()

	var users []*threadfeed.User
	for rows.Next() {
		user := &threadfeed.User{}
		err := rows.Scan(
			&user.ID, &user.Subject, &user.FirstName, &user.LastName, &user.Handle,
			&user.Email, &user.Bio, &user.WebsiteURL, &user.ImageURL,
			&user.FollowersCount, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, r.handlePostgresError("search_users_scan", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// AdjustFollowers applies the delta in one round trip; the counter never
// drops below zero.
func (r *Repository) AdjustFollowers(ctx context.Context, id uuid.UUID, delta int) error {
	query := `
		UPDATE users
		SET followers_count = GREATEST(followers_count + $2, 0),
		    updated_at = now() AT TIME ZONE 'utc'
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, delta)
	if err != nil {
		return r.handlePostgresError("adjust_followers", err)
	}
	if tag.RowsAffected() == 0 {
		return threadfeed.ErrUserNotFound
	}
	return nil
}

// Thread operations

// CommitThread inserts the thread and, for replies, increments the
// parent's reply counter inside the same transaction. A reader never sees
// the reply without the advanced counter or the counter without the reply.
func (r *Repository) CommitThread(ctx context.Context, thread *threadfeed.Thread) error {
	media, err := json.Marshal(thread.Media)
	if err != nil {
		return fmt.Errorf("encode media: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return r.handlePostgresError("commit_thread_begin", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO threads (
			id, author_id, body, media, parent_id, reply_count, like_count, created_at
		) VALUES ($1, $2, $3, $4, $5, 0, 0, $6)`

	_, err = tx.Exec(ctx, insert,
		thread.ID, thread.AuthorID, thread.Body, media, thread.ParentID, thread.CreatedAt)
	if err != nil {
		return r.handlePostgresError("commit_thread", err)
	}

	if thread.ParentID != nil {
		tag, err := tx.Exec(ctx,
			`UPDATE threads SET reply_count = reply_count + 1 WHERE id = $1`,
			*thread.ParentID)
		if err != nil {
			return r.handlePostgresError("commit_thread_counter", err)
		}
		if tag.RowsAffected() == 0 {
			return threadfeed.ErrParentNotFound
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetThread(ctx context.Context, id uuid.UUID) (*threadfeed.Thread, error) {
	query := `
		SELECT id, author_id, body, media, parent_id, reply_count, like_count, created_at
		FROM threads
		WHERE id = $1`

	thread := &threadfeed.Thread{}
	var media []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&thread.ID, &thread.AuthorID, &thread.Body, &media,
		&thread.ParentID, &thread.ReplyCount, &thread.LikeCount, &thread.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, threadfeed.ErrThreadNotFound
		}
		return nil, r.handlePostgresError("get_thread", err)
	}

	if err := json.Unmarshal(media, &thread.Media); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}

	return thread, nil
}

const threadWithAuthorColumns = `
	t.id, t.author_id, t.body, t.media, t.parent_id, t.reply_count, t.like_count, t.created_at,
	u.id, u.subject, u.first_name, u.last_name, u.handle, u.email, u.bio,
	u.website_url, u.image_url, u.followers_count, u.created_at, u.updated_at`

// ListThreads serves one keyset page in reverse-chronological order,
// joined with the author's current profile row.
func (r *Repository) ListThreads(ctx context.Context, page threadfeed.ThreadPage) ([]*threadfeed.ThreadWithAuthor, error) {
	var (
		conds []string
		args  []interface{}
	)

	if page.AuthorID != nil {
		args = append(args, *page.AuthorID)
		conds = append(conds, fmt.Sprintf("t.author_id = $%d", len(args)))
	} else {
		conds = append(conds, "t.parent_id IS NULL")
	}

	if page.Key != nil {
		args = append(args, page.Key.CreatedAt, page.Key.ID)
		conds = append(conds, fmt.Sprintf("(t.created_at, t.id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	args = append(args, page.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM threads t
		JOIN users u ON u.id = t.author_id
		WHERE %s
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $%d`,
		threadWithAuthorColumns, strings.Join(conds, " AND "), len(args))

	return r.queryThreadsWithAuthor(ctx, "list_threads", query, args)
}

// ListReplies serves the replies under one thread, oldest first.
func (r *Repository) ListReplies(ctx context.Context, parentID uuid.UUID, page threadfeed.ThreadPage) ([]*threadfeed.ThreadWithAuthor, error) {
	if _, err := r.GetThread(ctx, parentID); err != nil {
		return nil, err
	}

	args := []interface{}{parentID}
	conds := []string{"t.parent_id = $1"}

	if page.Key != nil {
		args = append(args, page.Key.CreatedAt, page.Key.ID)
		conds = append(conds, fmt.Sprintf("(t.created_at, t.id) > ($%d, $%d)", len(args)-1, len(args)))
	}

	args = append(args, page.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM threads t
		JOIN users u ON u.id = t.author_id
		WHERE %s
		ORDER BY t.created_at ASC, t.id ASC
		LIMIT $%d`,
		threadWithAuthorColumns, strings.Join(conds, " AND "), len(args))

	return r.queryThreadsWithAuthor(ctx, "list_replies", query, args)
}

func (r *Repository) queryThreadsWithAuthor(ctx context.Context, op, query string, args []interface{}) ([]*threadfeed.ThreadWithAuthor, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(op, err)
	}
	defer rows.Close()

	var items []*threadfeed.ThreadWithAuthor
	for rows.Next() {
		item := &threadfeed.ThreadWithAuthor{Author: &threadfeed.User{}}
		var media []byte
		err := rows.Scan(
			&item.Thread.ID, &item.Thread.AuthorID, &item.Thread.Body, &media,
			&item.Thread.ParentID, &item.Thread.ReplyCount, &item.Thread.LikeCount, &item.Thread.CreatedAt,
			&item.Author.ID, &item.Author.Subject, &item.Author.FirstName, &item.Author.LastName,
			&item.Author.Handle, &item.Author.Email, &item.Author.Bio, &item.Author.WebsiteURL,
			&item.Author.ImageURL, &item.Author.FollowersCount, &item.Author.CreatedAt, &item.Author.UpdatedAt)
		if err != nil {
			return nil, r.handlePostgresError(op+"_scan", err)
		}
		if err := json.Unmarshal(media, &item.Thread.Media); err != nil {
			return nil, fmt.Errorf("decode media: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters in a user-supplied query.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
