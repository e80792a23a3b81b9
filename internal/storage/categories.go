package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"ledger/internal/core"
)

const categoryColumns = `id, user_id, name, type, system`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.System); err != nil {
		return core.Category{}, err
	}
	c.Type = core.CategoryType(typ)
	return c, nil
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := q.exec(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), c.System)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// CreateCategoryIfMissing inserts the category unless one with the same
// (user, name, type) already exists, and reports whether it inserted.
func (q *Queries) CreateCategoryIfMissing(ctx context.Context, c core.Category) (bool, error) {
	res, err := q.exec(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, name, type) DO NOTHING`,
		c.ID, c.UserID, c.Name, string(c.Type), c.System)
	if err != nil {
		return false, fmt.Errorf("create category %q: %w", c.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create category %q: %w", c.Name, err)
	}
	return n > 0, nil
}

func (q *Queries) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	c, err := scanCategory(q.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories
		WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, notFound(err))
	}
	return c, nil
}

func (q *Queries) FindCategory(ctx context.Context, userID, name string, typ core.CategoryType) (core.Category, error) {
	c, err := scanCategory(q.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ? AND name = ? AND type = ?`, userID, name, string(typ)))
	if err != nil {
		return core.Category{}, fmt.Errorf("find category %q: %w", name, notFound(err))
	}
	return c, nil
}

func (q *Queries) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := q.query(ctx, `SELECT `+categoryColumns+` FROM categories
		WHERE user_id = ? ORDER BY system, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return collect(rows, scanCategory, "category")
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error), what string) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", what, err)
	}
	return out, nil
}

// collectReadable is collect for cross-user sweeps: a row that fails to
// decode is logged and left out, and the remaining rows are returned.
func collectReadable[T any](ctx context.Context, rows *sql.Rows, scan func(rowScanner) (T, error), what string) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable row", "kind", what, "error", err)
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", what, err)
	}
	return out, nil
}
