package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/sitehost"
)

func pgxIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, pool *pgxpool.Pool) error
	Down      func(ctx context.Context, pool *pgxpool.Pool) error
}

func getTableMigrations(tables sitehost.Tables) []TableMigration {
	return []TableMigration{
		{TableName: tables.Sites, Up: createSitesTable(tables.Sites), Down: dropTable(tables.Sites)},
		{TableName: tables.Users, Up: createUsersTable(tables.Users), Down: dropTable(tables.Users)},
		{TableName: tables.Roles, Up: createRolesTable(tables.Roles), Down: dropTable(tables.Roles)},
	}
}

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables sitehost.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, pool); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}
	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables sitehost.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, pool); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createSitesTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgxIdent(tableName)
		indexOwner := pgxIdent(fmt.Sprintf("idx_%s_owner_created", tableName))
		indexCreated := pgxIdent(fmt.Sprintf("idx_%s_created", tableName))

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				identifier TEXT NOT NULL UNIQUE,
				owner_id UUID NOT NULL,
				content_kind TEXT NOT NULL,
				storage_key TEXT NOT NULL UNIQUE,
				site_url TEXT NOT NULL,
				size_bytes BIGINT NOT NULL,
				etag TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (owner_id, created_at DESC, id DESC);

			CREATE INDEX IF NOT EXISTS %s
			ON %s (created_at DESC, id DESC);
		`,
			quotedTable,
			indexOwner, quotedTable,
			indexCreated, quotedTable,
		)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create sites table: %w", err)
		}
		return nil
	}
}

func createUsersTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				email TEXT NOT NULL UNIQUE,
				username TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`, pgxIdent(tableName))

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create users table: %w", err)
		}
		return nil
	}
}

func createRolesTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		quotedTable := pgxIdent(tableName)
		indexRole := pgxIdent(fmt.Sprintf("idx_%s_role", tableName))

		sql := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				principal_id UUID NOT NULL,
				role TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (principal_id, role)
			);

			CREATE INDEX IF NOT EXISTS %s ON %s (role);
		`, quotedTable, indexRole, quotedTable)

		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("create roles table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", pgxIdent(tableName)))
		return err
	}
}
