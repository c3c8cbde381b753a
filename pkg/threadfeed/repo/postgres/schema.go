package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements creates the tables this repository reads and writes.
// Applied idempotently by EnsureSchema; production deployments may run the
// same DDL through their own migration tooling instead.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		subject VARCHAR(255) NOT NULL,
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		handle VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		website_url TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		followers_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
		updated_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
		CONSTRAINT users_subject_key UNIQUE (subject)
	)`,
	`CREATE TABLE IF NOT EXISTS threads (
		id UUID PRIMARY KEY,
		author_id UUID NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		media JSONB NOT NULL DEFAULT '[]',
		parent_id UUID,
		reply_count INTEGER NOT NULL DEFAULT 0,
		like_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
		CONSTRAINT threads_author_fkey FOREIGN KEY (author_id) REFERENCES users (id),
		CONSTRAINT threads_parent_fkey FOREIGN KEY (parent_id) REFERENCES threads (id)
	)`,
	`CREATE INDEX IF NOT EXISTS threads_feed_idx
		ON threads (created_at DESC, id DESC) WHERE parent_id IS NULL`,
	`CREATE INDEX IF NOT EXISTS threads_author_idx
		ON threads (author_id, created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS threads_parent_idx
		ON threads (parent_id, created_at ASC, id ASC) WHERE parent_id IS NOT NULL`,
}

// EnsureSchema creates the users and threads tables if they do not exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
