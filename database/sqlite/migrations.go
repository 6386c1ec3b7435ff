package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/sitehost"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations for the app
func getTableMigrations(tables sitehost.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Sites,
			Up:        createSitesTable(tables.Sites),
			Down:      dropTable(tables.Sites),
		},
		{
			TableName: tables.Users,
			Up:        createUsersTable(tables.Users),
			Down:      dropTable(tables.Users),
		},
		{
			TableName: tables.Roles,
			Up:        createRolesTable(tables.Roles),
			Down:      dropTable(tables.Roles),
		},
	}
}

func Migrate(ctx context.Context, db *sql.DB, tables sitehost.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables sitehost.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func execAll(ctx context.Context, db *sql.DB, statements ...string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func createSitesTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexOwner := quoteIdentifier(fmt.Sprintf("idx_%s_owner_created", tableName))
		indexCreated := quoteIdentifier(fmt.Sprintf("idx_%s_created", tableName))

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT NOT NULL PRIMARY KEY,
					identifier TEXT NOT NULL UNIQUE,
					owner_id TEXT NOT NULL,
					content_kind TEXT NOT NULL,
					storage_key TEXT NOT NULL UNIQUE,
					site_url TEXT NOT NULL,
					size_bytes INTEGER NOT NULL,
					etag TEXT NOT NULL,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)
			`, quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (owner_id, created_at, id)`, indexOwner, quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at, id)`, indexCreated, quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create sites table: %w", err)
		}
		return nil
	}
}

func createUsersTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		err := execAll(ctx, db, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				username TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				created_at TEXT NOT NULL
			)
		`, quoteIdentifier(tableName)))
		if err != nil {
			return fmt.Errorf("create users table: %w", err)
		}
		return nil
	}
}

func createRolesTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexRole := quoteIdentifier(fmt.Sprintf("idx_%s_role", tableName))

		err := execAll(ctx, db,
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					principal_id TEXT NOT NULL,
					role TEXT NOT NULL,
					created_at TEXT NOT NULL,
					PRIMARY KEY (principal_id, role)
				)
			`, quotedTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (role)`, indexRole, quotedTable),
		)
		if err != nil {
			return fmt.Errorf("create roles table: %w", err)
		}
		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}
