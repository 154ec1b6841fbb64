package postgres

import (
	"context"
	"fmt"
)

// migration is one named, idempotent schema step.
type migration struct {
	name  string
	stmts []string
}

// migrations run in order. Applied steps are recorded in
// rewind_migrations and skipped on later runs.
var migrations = []migration{
	{
		name: "0001_create_checkpoints",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS rewind_checkpoints (
				thread_id            TEXT NOT NULL,
				namespace            TEXT NOT NULL DEFAULT '',
				checkpoint_id        TEXT NOT NULL,
				parent_checkpoint_id TEXT NOT NULL DEFAULT '',
				checkpoint_type      TEXT NOT NULL DEFAULT '',
				stage                TEXT NOT NULL DEFAULT '',
				payload              BYTEA NOT NULL,
				metadata             BYTEA NOT NULL,
				created_at           BIGINT NOT NULL,
				updated_at           BIGINT NOT NULL,
				PRIMARY KEY (thread_id, namespace, checkpoint_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_rewind_checkpoints_stream
				ON rewind_checkpoints (thread_id, namespace, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_rewind_checkpoints_created
				ON rewind_checkpoints (created_at)`,
		},
	},
}

// Migrate applies pending schema migrations in order.
func (c *Client) Migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rewind_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("rewind/postgres: create migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		err = c.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM rewind_migrations WHERE name = $1)`,
			m.name,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("rewind/postgres: check migration %s: %w", m.name, err)
		}
		if applied {
			continue
		}

		for _, stmt := range m.stmts {
			if _, execErr := c.pool.Exec(ctx, stmt); execErr != nil {
				return fmt.Errorf("rewind/postgres: execute migration %s: %w", m.name, execErr)
			}
		}

		if _, recErr := c.pool.Exec(ctx,
			`INSERT INTO rewind_migrations (name) VALUES ($1)`, m.name,
		); recErr != nil {
			return fmt.Errorf("rewind/postgres: record migration %s: %w", m.name, recErr)
		}

		c.logger.Info("applied migration", "name", m.name)
	}

	return nil
}
