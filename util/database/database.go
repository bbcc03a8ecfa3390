package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New opens a pgx-backed *sqlx.DB. Repositories run raw SQL through the
// database/sql surface; sqlx adds struct scanning for list queries.
func New(ctx context.Context, dsn string) (*sqlx.DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*cfg.ConnConfig)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlx.NewDb(db, "pgx"), nil
}
