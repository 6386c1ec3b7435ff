package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

type roleStore struct {
	db        *sql.DB
	tableName string
}

func (r *roleStore) Assign(ctx context.Context, principal uuid.UUID, role sitehost.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("assign role: %w: unknown role %q", sitehost.ErrInvalidInput, role)
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (principal_id, role, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (principal_id, role) DO NOTHING`, quoteIdentifier(r.tableName))

	if _, err := r.db.ExecContext(ctx, query, principal.String(), string(role), formatTime(nowUTC())); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}

// AssignFirst inserts the role only while nobody holds it. A single write
// statement holds SQLite's write lock from start to end, so two connections
// cannot both see the role missing.
func (r *roleStore) AssignFirst(ctx context.Context, principal uuid.UUID, role sitehost.Role) (bool, error) {
	if !role.IsValid() {
		return false, fmt.Errorf("assign first role: %w: unknown role %q", sitehost.ErrInvalidInput, role)
	}

	table := quoteIdentifier(r.tableName)
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (principal_id, role, created_at)
		SELECT ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM %s WHERE role = ?)`, table, table)

	res, err := r.db.ExecContext(ctx, query, principal.String(), string(role), formatTime(nowUTC()), string(role))
	if err != nil {
		return false, fmt.Errorf("assign first role: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("assign first role: rows affected: %w", err)
	}

	return n == 1, nil
}

func (r *roleStore) RolesOf(ctx context.Context, principal uuid.UUID) ([]sitehost.Role, error) {
	query := fmt.Sprintf(`SELECT role FROM %s WHERE principal_id = ? ORDER BY role`, quoteIdentifier(r.tableName)) //nolint:gosec // G201: table name is validated

	rows, err := r.db.QueryContext(ctx, query, principal.String())
	if err != nil {
		return nil, fmt.Errorf("roles of: %w", err)
	}
	defer func() { _ = rows.Close() }()

	roles := []sitehost.Role{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("roles of: scan: %w", err)
		}
		roles = append(roles, sitehost.Role(role))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles of: rows: %w", err)
	}

	return roles, nil
}

func (r *roleStore) AnyWithRole(ctx context.Context, role sitehost.Role) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE role = ?)`, quoteIdentifier(r.tableName)) //nolint:gosec // G201: table name is validated

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, string(role)).Scan(&exists); err != nil {
		return false, fmt.Errorf("any with role: %w", err)
	}

	return exists, nil
}
