package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
)

type userRepo struct {
	db        *sql.DB
	tableName string
}

const userColumns = `id, email, username, password_hash, created_at`

func scanUser(row rowScanner) (sitehost.User, error) {
	var u sitehost.User
	var idStr, createdAt string

	if err := row.Scan(&idStr, &u.Email, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		return sitehost.User{}, err
	}

	var err error
	if u.ID, err = uuid.Parse(idStr); err != nil {
		return sitehost.User{}, fmt.Errorf("parse id: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return sitehost.User{}, fmt.Errorf("parse created_at: %w", err)
	}

	return u, nil
}

// Create inserts u. The email UNIQUE constraint decides conflicts; a
// conflicting insert returns no row.
func (r *userRepo) Create(ctx context.Context, u sitehost.User) (sitehost.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (email) DO NOTHING
		RETURNING %s`, quoteIdentifier(r.tableName), userColumns, userColumns)

	created, err := scanUser(r.db.QueryRowContext(ctx, query,
		u.ID.String(), u.Email, u.Username, u.PasswordHash, formatTime(nowUTC()),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sitehost.User{}, fmt.Errorf("create user %s: %w", u.Email, sitehost.ErrAlreadyRegistered)
		}
		return sitehost.User{}, fmt.Errorf("create user: %w", err)
	}

	return created, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (sitehost.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = ?`, userColumns, quoteIdentifier(r.tableName)) //nolint:gosec // G201: table name is validated

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sitehost.User{}, sitehost.ErrNotFound
		}
		return sitehost.User{}, fmt.Errorf("find user by email: %w", err)
	}

	return u, nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (sitehost.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, userColumns, quoteIdentifier(r.tableName)) //nolint:gosec // G201: table name is validated

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sitehost.User{}, sitehost.ErrNotFound
		}
		return sitehost.User{}, fmt.Errorf("find user by id: %w", err)
	}

	return u, nil
}
