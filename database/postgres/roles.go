package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/sitehost"
)

type roleStore struct {
	pool      *pgxpool.Pool
	tableName string
}

func (r *roleStore) Assign(ctx context.Context, principal uuid.UUID, role sitehost.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("assign role: %w: unknown role %q", sitehost.ErrInvalidInput, role)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (principal_id, role)
		VALUES ($1, $2)
		ON CONFLICT (principal_id, role) DO NOTHING
	`, r.tableName)

	if _, err := r.pool.Exec(ctx, query, principal, string(role)); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}

// AssignFirst inserts the role only while nobody holds it. A transaction
// advisory lock keyed on the table serializes callers; NOT EXISTS alone
// would let two READ COMMITTED transactions both insert.
func (r *roleStore) AssignFirst(ctx context.Context, principal uuid.UUID, role sitehost.Role) (bool, error) {
	if !role.IsValid() {
		return false, fmt.Errorf("assign first role: %w: unknown role %q", sitehost.ErrInvalidInput, role)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("assign first role: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, r.tableName+":"+string(role)); err != nil {
		return false, fmt.Errorf("assign first role: lock: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (principal_id, role)
		SELECT $1::uuid, $2::text
		WHERE NOT EXISTS (SELECT 1 FROM %s WHERE role = $2::text)
	`, r.tableName, r.tableName)

	tag, err := tx.Exec(ctx, query, principal, string(role))
	if err != nil {
		return false, fmt.Errorf("assign first role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("assign first role: commit: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *roleStore) RolesOf(ctx context.Context, principal uuid.UUID) ([]sitehost.Role, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT role FROM %s WHERE principal_id = $1 ORDER BY role`, r.tableName), principal)
	if err != nil {
		return nil, fmt.Errorf("roles of: %w", err)
	}
	defer rows.Close()

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
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE role = $1)`, r.tableName)
	if err := r.pool.QueryRow(ctx, query, string(role)).Scan(&exists); err != nil {
		return false, fmt.Errorf("any with role: %w", err)
	}
	return exists, nil
}
