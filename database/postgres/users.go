package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/sitehost"
)

const userColumns = `id, email, username, password_hash, created_at`

type userRepo struct {
	pool      *pgxpool.Pool
	tableName string
}

func scanUser(row pgx.Row) (sitehost.User, error) {
	var u sitehost.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (r *userRepo) Create(ctx context.Context, u sitehost.User) (sitehost.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, username, password_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
		RETURNING %s
	`, r.tableName, userColumns)

	created, err := scanUser(r.pool.QueryRow(ctx, query, u.ID, u.Email, u.Username, u.PasswordHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sitehost.User{}, fmt.Errorf("create user %s: %w", u.Email, sitehost.ErrAlreadyRegistered)
		}
		return sitehost.User{}, fmt.Errorf("create user: %w", err)
	}

	return created, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (sitehost.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE email = $1`, userColumns, r.tableName)

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sitehost.User{}, sitehost.ErrNotFound
		}
		return sitehost.User{}, fmt.Errorf("find user by email: %w", err)
	}

	return u, nil
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (sitehost.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, userColumns, r.tableName)

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sitehost.User{}, sitehost.ErrNotFound
		}
		return sitehost.User{}, fmt.Errorf("find user by id: %w", err)
	}

	return u, nil
}
