package migrations

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

const splitMarker = "--bun:split"

// execSplit runs each statement of a migration script in order.
func execSplit(ctx context.Context, db *bun.DB, script string) error {
	for _, stmt := range strings.Split(script, splitMarker) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
