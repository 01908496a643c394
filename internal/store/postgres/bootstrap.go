package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// ensureSchema creates the tables on first run. The check is keyed on the
// conversations table so re-runs are cheap no-ops.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	bootCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(bootCtx, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'conversations'
		)`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("schema check failed: %w", err)
	}
	if exists {
		return nil
	}

	script, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}

	tx, err := db.BeginTx(bootCtx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap tx: %w", err)
	}
	if _, err := tx.ExecContext(bootCtx, string(script)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply initdb.sql: %w", err)
	}
	return tx.Commit()
}
