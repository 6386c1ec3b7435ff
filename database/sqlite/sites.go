package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/database/internal"
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

const siteColumns = `id, identifier, owner_id, content_kind, storage_key, site_url, size_bytes, etag, created_at, updated_at`

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

type siteRegistry struct {
	db        *sql.DB
	tableName string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (sitehost.Site, error) {
	var s sitehost.Site
	var idStr, ownerStr, kind, createdAt, updatedAt string

	if err := row.Scan(&idStr, &s.Identifier, &ownerStr, &kind, &s.StorageKey, &s.URL, &s.SizeBytes, &s.ETag, &createdAt, &updatedAt); err != nil {
		return sitehost.Site{}, err
	}

	var err error
	if s.ID, err = uuid.Parse(idStr); err != nil {
		return sitehost.Site{}, fmt.Errorf("parse id: %w", err)
	}
	if s.OwnerID, err = uuid.Parse(ownerStr); err != nil {
		return sitehost.Site{}, fmt.Errorf("parse owner_id: %w", err)
	}
	s.Kind = sitehost.ContentKind(kind)
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return sitehost.Site{}, fmt.Errorf("parse created_at: %w", err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return sitehost.Site{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return s, nil
}

// Register inserts the site, or updates it in place when the identifier
// already belongs to the same owner. A conflicting owner makes the
// DO UPDATE's WHERE false, so no row comes back.
func (r *siteRegistry) Register(ctx context.Context, entry sitehost.SiteEntry) (sitehost.Site, bool, error) {
	if !sitehost.IsValidIdentifier(entry.Identifier) {
		return sitehost.Site{}, false, fmt.Errorf("register %q: %w: identifier is not normalized", entry.Identifier, sitehost.ErrInvalidInput)
	}
	if !entry.Kind.IsValid() {
		return sitehost.Site{}, false, fmt.Errorf("register %s: %w: content kind %q", entry.Identifier, sitehost.ErrInvalidInput, entry.Kind)
	}

	newID := uuid.New()
	now := formatTime(nowUTC())

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %[1]s (%[2]s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identifier) DO UPDATE
		SET content_kind = excluded.content_kind,
			storage_key = excluded.storage_key,
			site_url = excluded.site_url,
			size_bytes = excluded.size_bytes,
			etag = excluded.etag,
			updated_at = excluded.updated_at
		WHERE %[1]s.owner_id = excluded.owner_id
		RETURNING %[2]s`, quoteIdentifier(r.tableName), siteColumns)

	row := r.db.QueryRowContext(ctx, query,
		newID.String(), entry.Identifier, entry.OwnerID.String(), string(entry.Kind),
		entry.StorageKey, entry.URL, entry.SizeBytes, entry.ETag, now, now,
	)

	site, err := scanSite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sitehost.Site{}, false, fmt.Errorf("register %s: %w", entry.Identifier, sitehost.ErrDuplicateIdentifier)
		}
		return sitehost.Site{}, false, fmt.Errorf("register %s: %w", entry.Identifier, err)
	}

	return site, site.ID == newID, nil
}

func (r *siteRegistry) FindByIdentifier(ctx context.Context, identifier string) (sitehost.Site, error) {
	if !sitehost.IsValidIdentifier(identifier) {
		return sitehost.Site{}, sitehost.ErrNotFound
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE identifier = ?`, siteColumns, quoteIdentifier(r.tableName))

	site, err := scanSite(r.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sitehost.Site{}, sitehost.ErrNotFound
		}
		return sitehost.Site{}, fmt.Errorf("find by identifier: %w", err)
	}

	return site, nil
}

func (r *siteRegistry) FindByID(ctx context.Context, id uuid.UUID) (sitehost.Site, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE id = ?`, siteColumns, quoteIdentifier(r.tableName))

	site, err := scanSite(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sitehost.Site{}, sitehost.ErrNotFound
		}
		return sitehost.Site{}, fmt.Errorf("find by id: %w", err)
	}

	return site, nil
}

func (r *siteRegistry) ListByOwner(ctx context.Context, owner uuid.UUID, q sitehost.ListQuery) (sitehost.ListResult, error) {
	return r.list(ctx, q, "owner_id = ?", []any{owner.String()}, "list by owner")
}

func (r *siteRegistry) ListAll(ctx context.Context, q sitehost.ListQuery) (sitehost.ListResult, error) {
	return r.list(ctx, q, "1 = 1", nil, "list all")
}

func (r *siteRegistry) list(ctx context.Context, q sitehost.ListQuery, whereCondition string, whereArgs []any, opName string) (sitehost.ListResult, error) {
	cursor, err := internal.DecodeCursor(q.Cursor)
	if err != nil {
		return sitehost.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}

	limit := internal.NormalizeLimit(q.Limit, defaultListLimit, maxListLimit)
	escapedPrefix := internal.EscapeLikePattern(q.Prefix)

	args := append([]any{}, whereArgs...)
	args = append(args, escapedPrefix)

	cursorCondition := ""
	if !cursor.IsZero() {
		cursorCondition = "AND (created_at, id) < (?, ?)"
		args = append(args, formatTime(cursor.CreatedAt), cursor.ID.String())
	}
	args = append(args, limit+1)

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s
		FROM %s
		WHERE %s AND identifier LIKE ? || '%%' ESCAPE '\' %s
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, siteColumns, quoteIdentifier(r.tableName), whereCondition, cursorCondition)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return sitehost.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}
	defer func() { _ = rows.Close() }()

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
		// Cursor points to the last item of the current page
		lastItem := items[limit-1]
		nextCursor = internal.EncodeCursor(lastItem.CreatedAt, lastItem.ID)
		items = items[:limit]
	}

	return sitehost.ListResult{Items: items, NextCursor: nextCursor}, nil
}

func (r *siteRegistry) ListStorageKeys(ctx context.Context) (map[string]struct{}, error) {
	query := fmt.Sprintf(`SELECT storage_key FROM %s`, quoteIdentifier(r.tableName)) //nolint:gosec // G201: table name is validated

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list storage keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdentifier(r.tableName)) //nolint:gosec // G201: table name is validated

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("remove: %w", sitehost.ErrNotFound)
	}

	return nil
}
