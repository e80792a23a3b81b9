package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/storage"
)

// CategoryResolver finds the reserved per-user categories ("Transfer",
// "Interest"), creating them on first use.
type CategoryResolver struct {
	cache *cache.LRUCache[core.Category]
}

func NewCategoryResolver(c *cache.LRUCache[core.Category]) *CategoryResolver {
	return &CategoryResolver{cache: c}
}

func categoryKey(userID, name string, typ core.CategoryType) string {
	return userID + "\x00" + string(typ) + "\x00" + name
}

// Resolve returns the system category, inserting it through q if missing.
// A category created by q is not cached: the surrounding transaction may
// still roll back and take the row with it.
func (r *CategoryResolver) Resolve(ctx context.Context, q *storage.Queries, userID, name string, typ core.CategoryType) (core.Category, error) {
	key := categoryKey(userID, name, typ)
	if r.cache != nil {
		if c, ok := r.cache.Get(key); ok {
			return c, nil
		}
	}

	created, err := q.CreateCategoryIfMissing(ctx, core.Category{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   name,
		Type:   typ,
		System: true,
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("resolve category %q: %w", name, err)
	}

	c, err := q.FindCategory(ctx, userID, name, typ)
	if err != nil {
		return core.Category{}, fmt.Errorf("resolve category %q: %w", name, err)
	}
	if !created && r.cache != nil {
		r.cache.Set(key, c)
	}
	return c, nil
}

// Transfer returns the user's reserved transfer category.
func (r *CategoryResolver) Transfer(ctx context.Context, q *storage.Queries, userID string) (core.Category, error) {
	return r.Resolve(ctx, q, userID, core.TransferCategoryName, core.CategoryTransfer)
}

// Interest returns the user's reserved interest income category.
func (r *CategoryResolver) Interest(ctx context.Context, q *storage.Queries, userID string) (core.Category, error) {
	return r.Resolve(ctx, q, userID, core.InterestCategoryName, core.CategoryIncome)
}
