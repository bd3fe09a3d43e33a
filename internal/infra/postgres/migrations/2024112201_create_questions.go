package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2024112201_create_questions.sql
var createQuestionsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execSplit(ctx, db, createQuestionsSQL)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execSplit(ctx, db, `DROP TABLE IF EXISTS answers`+splitMarker+`DROP TABLE IF EXISTS questions`)
		},
	)
}
