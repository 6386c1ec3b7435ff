// Package sqlite implements the site registry and account storage on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/sitehost"

	_ "modernc.org/sqlite" // SQLite driver
)

// database provides SQLite database operations.
type database struct {
	db     *sql.DB
	tables sitehost.Tables
}

// Connect opens a SQLite database. Tables should be validated before calling Connect.
//
// The pool is limited to one connection: SQLite serializes writers anyway,
// and ":memory:" databases exist per connection.
func Connect(ctx context.Context, dsn string, tables sitehost.Tables) (*database, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	return &database{
		db:     db,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

func (d *database) GetSiteRegistry() sitehost.SiteRegistry {
	return &siteRegistry{db: d.db, tableName: d.tables.Sites}
}

func (d *database) GetUserRepo() sitehost.UserRepo {
	return &userRepo{db: d.db, tableName: d.tables.Users}
}

func (d *database) GetRoleStore() sitehost.RoleStore {
	return &roleStore{db: d.db, tableName: d.tables.Roles}
}

// Close closes the database connection.
func (d *database) Close() error {
	return d.db.Close()
}
