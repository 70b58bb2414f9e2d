package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate runs goose up for the migrations under dir in fsys. goose needs a
// database/sql handle, which is borrowed from the pool for the duration.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string, cfg Config, log *slog.Logger) (err error) {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { err = errors.Join(err, db.Close()) }()

	goose.SetBaseFS(fsys)
	goose.SetTableName(cfg.MigrationsTable)
	goose.SetLogger(migrationLog{log.With(slog.String("component", "migrations"))})
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrations, err)
	}

	before, _ := goose.GetDBVersionContext(ctx, db)
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return errors.Join(ErrMigrations, err)
	}
	after, _ := goose.GetDBVersionContext(ctx, db)
	log.InfoContext(ctx, "schema migrated", slog.Int64("from", before), slog.Int64("to", after))
	return nil
}

type migrationLog struct{ *slog.Logger }

func (l migrationLog) Printf(format string, v ...any) { l.Info(fmt.Sprintf(format, v...)) }
func (l migrationLog) Fatalf(format string, v ...any) { l.Error(fmt.Sprintf(format, v...)) }
