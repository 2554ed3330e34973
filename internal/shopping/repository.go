package shopping

import (
	"context"
	"fmt"

	"github.com/dukerupert/shoplist/internal/live"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/store"
)

// Repository is the stable API over the shopping store.
type Repository struct {
	store *store.ShoppingStore
}

func NewRepository(s *store.ShoppingStore) *Repository {
	return &Repository{store: s}
}

func (r *Repository) Categories(ctx context.Context) ([]model.Category, error) {
	return r.store.ListCategories(ctx)
}

func (r *Repository) ItemsByCategory(ctx context.Context, categoryID int64) ([]model.Item, error) {
	return r.store.ListItemsByCategory(ctx, categoryID)
}

func (r *Repository) WatchCategories(ctx context.Context) (*live.Subscription[model.Category], error) {
	return r.store.WatchCategories(ctx)
}

func (r *Repository) WatchItemsByCategory(ctx context.Context, categoryID int64) (*live.Subscription[model.Item], error) {
	return r.store.WatchItemsByCategory(ctx, categoryID)
}

func (r *Repository) Item(ctx context.Context, id int64) (*model.Item, error) {
	return r.store.GetItem(ctx, id)
}

func (r *Repository) Category(ctx context.Context, id int64) (*model.Category, error) {
	return r.store.GetCategory(ctx, id)
}

func (r *Repository) InsertItem(ctx context.Context, item model.Item) (*model.Item, error) {
	return r.store.InsertItem(ctx, item)
}

func (r *Repository) InsertCategory(ctx context.Context, c model.Category) (*model.Category, error) {
	return r.store.InsertCategory(ctx, c)
}

func (r *Repository) UpdateItem(ctx context.Context, item model.Item) (*model.Item, error) {
	return r.store.UpdateItem(ctx, item)
}

func (r *Repository) UpdateCategory(ctx context.Context, c model.Category) (*model.Category, error) {
	return r.store.UpdateCategory(ctx, c)
}

func (r *Repository) ToggleCategorySelected(ctx context.Context, id int64) (*model.Category, error) {
	return r.store.ToggleCategorySelected(ctx, id)
}

func (r *Repository) ToggleItemChecked(ctx context.Context, id int64) (*model.Item, error) {
	return r.store.ToggleItemChecked(ctx, id)
}

func (r *Repository) DeleteItem(ctx context.Context, id int64) error {
	return r.store.DeleteItem(ctx, id)
}

// DeleteCategory removes a category together with its items. Items go first,
// and both deletes share one transaction, so no observer sees orphaned items or
// a half-deleted category. Deleting an already removed category is a no-op.
func (r *Repository) DeleteCategory(ctx context.Context, categoryID int64) error {
	err := r.store.Cascade(ctx, func(tx *store.ShoppingStore) error {
		if _, err := tx.DeleteItemsByCategory(ctx, categoryID); err != nil {
			return err
		}
		return tx.DeleteCategory(ctx, categoryID)
	})
	if err != nil {
		return fmt.Errorf("delete category %d: %w", categoryID, err)
	}
	return nil
}
