package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrator runs goose migrations over the shared pool. Goose needs *sql.DB,
// so it gets its own handle derived from the pool; closing the migrator does
// not close the pool.
type Migrator struct {
	db             *sql.DB
	migrationsPath string
}

func NewMigrator(pool *pgxpool.Pool, migrationsPath string) (*Migrator, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{
		db:             stdlib.OpenDBFromPool(pool),
		migrationsPath: migrationsPath,
	}, nil
}

// Run applies all pending migrations.
func (mg *Migrator) Run(ctx context.Context) error {
	if err := goose.UpContext(ctx, mg.db, mg.migrationsPath); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (mg *Migrator) Close() error {
	if mg.db != nil {
		return mg.db.Close()
	}
	return nil
}
