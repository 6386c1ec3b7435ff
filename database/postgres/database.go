// Package postgres implements the site registry and account storage on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/sitehost"
)

type database struct {
	pool   *pgxpool.Pool
	tables sitehost.Tables
}

// Connect establishes a connection to PostgreSQL.
// Tables should be validated before calling Connect.
func Connect(ctx context.Context, dsn string, tables sitehost.Tables) (*database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &database{
		pool:   pool,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.pool, d.tables); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.pool, d.tables)
}

func (d *database) GetSiteRegistry() sitehost.SiteRegistry {
	return &siteRegistry{pool: d.pool, tableName: pgxIdent(d.tables.Sites)}
}

func (d *database) GetUserRepo() sitehost.UserRepo {
	return &userRepo{pool: d.pool, tableName: pgxIdent(d.tables.Users)}
}

func (d *database) GetRoleStore() sitehost.RoleStore {
	return &roleStore{pool: d.pool, tableName: pgxIdent(d.tables.Roles)}
}

// Close closes the database connection pool.
func (d *database) Close() error {
	d.pool.Close()
	return nil
}
