package sqlite

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
				payload              BLOB NOT NULL,
				metadata             BLOB NOT NULL,
				created_at           INTEGER NOT NULL,
				updated_at           INTEGER NOT NULL,
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
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rewind_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("rewind/sqlite: create migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err = c.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM rewind_migrations WHERE name = ?`, m.name,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("rewind/sqlite: check migration %s: %w", m.name, err)
		}
		if applied > 0 {
			continue
		}

		for _, stmt := range m.stmts {
			if _, execErr := c.db.ExecContext(ctx, stmt); execErr != nil {
				return fmt.Errorf("rewind/sqlite: execute migration %s: %w", m.name, execErr)
			}
		}

		if _, recErr := c.db.ExecContext(ctx,
			`INSERT INTO rewind_migrations (name) VALUES (?)`, m.name,
		); recErr != nil {
			return fmt.Errorf("rewind/sqlite: record migration %s: %w", m.name, recErr)
		}

		c.logger.Info("applied migration", "name", m.name)
	}

	return nil
}
