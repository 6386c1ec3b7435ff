package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/database/internal"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

const siteColumns = `id, identifier, owner_id, content_kind, storage_key, site_url, size_bytes, etag, created_at, updated_at`

// siteRegistry stores sites. tableName is already quoted.
type siteRegistry struct {
	pool      *pgxpool.Pool
	tableName string
}

func scanSite(row pgx.Row, extra ...any) (sitehost.Site, error) {
	var s sitehost.Site
	var kind string

	dest := []any{&s.ID, &s.Identifier, &s.OwnerID, &kind, &s.StorageKey, &s.URL, &s.SizeBytes, &s.ETag, &s.CreatedAt, &s.UpdatedAt}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return sitehost.Site{}, err
	}
	s.Kind = sitehost.ContentKind(kind)

	return s, nil
}

// Register inserts the site, or updates it in place when the identifier
// already belongs to the same owner. The WHERE on DO UPDATE suppresses the
// row for any other owner.
func (r *siteRegistry) Register(ctx context.Context, entry sitehost.SiteEntry) (sitehost.Site, bool, error) {
	if !sitehost.IsValidIdentifier(entry.Identifier) {
		return sitehost.Site{}, false, fmt.Errorf("register %q: %w: identifier is not normalized", entry.Identifier, sitehost.ErrInvalidInput)
	}
	if !entry.Kind.IsValid() {
		return sitehost.Site{}, false, fmt.Errorf("register %s: %w: content kind %q", entry.Identifier, sitehost.ErrInvalidInput, entry.Kind)
	}

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (identifier, owner_id, content_kind, storage_key, site_url, size_bytes, etag)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (identifier) DO UPDATE
		SET content_kind = EXCLUDED.content_kind,
			storage_key = EXCLUDED.storage_key,
			site_url = EXCLUDED.site_url,
			size_bytes = EXCLUDED.size_bytes,
			etag = EXCLUDED.etag,
			updated_at = NOW()
		WHERE %[1]s.owner_id = EXCLUDED.owner_id
		RETURNING %[2]s, (xmax = 0) AS inserted
	`, r.tableName, siteColumns)

	var inserted bool
	site, err := scanSite(r.pool.QueryRow(ctx, query,
		entry.Identifier, entry.OwnerID, string(entry.Kind), entry.StorageKey, entry.URL, entry.SizeBytes, entry.ETag,
	), &inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sitehost.Site{}, false, fmt.Errorf("register %s: %w", entry.Identifier, sitehost.ErrDuplicateIdentifier)
		}
		return sitehost.Site{}, false, fmt.Errorf("register %s: %w", entry.Identifier, err)
	}

	return site, inserted, nil
}

func (r *siteRegistry) FindByIdentifier(ctx context.Context, identifier string) (sitehost.Site, error) {
	if !sitehost.IsValidIdentifier(identifier) {
		return sitehost.Site{}, sitehost.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE identifier = $1`, siteColumns, r.tableName)

	site, err := scanSite(r.pool.QueryRow(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sitehost.Site{}, sitehost.ErrNotFound
		}
		return sitehost.Site{}, fmt.Errorf("find by identifier: %w", err)
	}

	return site, nil
}

func (r *siteRegistry) FindByID(ctx context.Context, id uuid.UUID) (sitehost.Site, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, siteColumns, r.tableName)

	site, err := scanSite(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sitehost.Site{}, sitehost.ErrNotFound
		}
		return sitehost.Site{}, fmt.Errorf("find by id: %w", err)
	}

	return site, nil
}

func (r *siteRegistry) ListByOwner(ctx context.Context, owner uuid.UUID, q sitehost.ListQuery) (sitehost.ListResult, error) {
	return r.list(ctx, q, owner, "list by owner")
}

func (r *siteRegistry) ListAll(ctx context.Context, q sitehost.ListQuery) (sitehost.ListResult, error) {
	return r.list(ctx, q, uuid.Nil, "list all")
}

// list pages sites newest first. A nil owner lists every site.
func (r *siteRegistry) list(ctx context.Context, q sitehost.ListQuery, owner uuid.UUID, opName string) (sitehost.ListResult, error) {
	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return sitehost.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}

	limit := internal.NormalizeLimit(q.Limit, defaultListLimit, maxListLimit)

	args := []any{internal.EscapeLikePattern(q.Prefix)}
	conditions := `identifier LIKE $1 || '%' ESCAPE '\'`

	if owner != uuid.Nil {
		args = append(args, owner)
		conditions += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}

	if !cursor.IsZero() {
		args = append(args, cursor.CreatedAt, cursor.ID)
		conditions += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit+1)
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, siteColumns, r.tableName, conditions, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return sitehost.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}
	defer rows.Close()

	items := make([]sitehost.Site, 0, limit)
	for rows.Next() {
		site, scanErr := scanSite(rows)
		if scanErr != nil {
			return sitehost.ListResult{}, fmt.Errorf("%s: scan: %w", opName, scanErr)
		}
		items = append(items, site)
	}

	if err := rows.Err(); err != nil {
		return sitehost.ListResult{}, fmt.Errorf("%s: rows: %w", opName, err)
	}

	var nextCursor string
	if len(items) > limit {
		lastItem := items[limit-1]
		nextCursor = internal.EncodeCursor(lastItem.CreatedAt, lastItem.ID)
		items = items[:limit]
	}

	return sitehost.ListResult{Items: items, NextCursor: nextCursor}, nil
}

func (r *siteRegistry) ListStorageKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT storage_key FROM %s`, r.tableName))
	if err != nil {
		return nil, fmt.Errorf("list storage keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("list storage keys: scan: %w", err)
		}
		keys[key] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list storage keys: rows: %w", err)
	}

	return keys, nil
}

func (r *siteRegistry) Remove(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tableName), id)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("remove: %w", sitehost.ErrNotFound)
	}

	return nil
}
