package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/shoplist/internal/live"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/validate"
)

// Tables reported to the live hub.
const (
	TableCategories = "categories"
	TableItems      = "shopping_items"
)

// ErrUnknownCategory is returned when an item references a category that does not exist.
var ErrUnknownCategory = errors.New("unknown category")

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ShoppingStore reads and writes categories and items. Every successful write
// notifies the live hub so open views re-emit.
type ShoppingStore struct {
	db        *sql.DB
	q         dbtx
	hub       *live.Hub
	validator *validate.Validator

	// touched collects changed tables while running inside Cascade.
	touched map[string]struct{}
}

func NewShoppingStore(db *sql.DB, hub *live.Hub) *ShoppingStore {
	return &ShoppingStore{db: db, q: db, hub: hub, validator: validate.New()}
}

func (s *ShoppingStore) notify(tables ...string) {
	if s.touched != nil {
		for _, t := range tables {
			s.touched[t] = struct{}{}
		}
		return
	}
	s.hub.Notify(tables...)
}

// Cascade runs fn inside a single transaction. fn receives a store bound to the
// transaction; views are notified only after a successful commit.
func (s *ShoppingStore) Cascade(ctx context.Context, fn func(tx *ShoppingStore) error) error {
	if s.touched != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txStore := &ShoppingStore{
		db:        s.db,
		q:         tx,
		hub:       s.hub,
		validator: s.validator,
		touched:   make(map[string]struct{}),
	}
	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	for t := range txStore.touched {
		s.hub.Notify(t)
	}
	return nil
}

// --- Category methods ---

func scanCategory(scanner interface{ Scan(...any) error }) (*model.Category, error) {
	var c model.Category
	var selected int
	if err := scanner.Scan(&c.ID, &c.Name, &selected); err != nil {
		return nil, err
	}
	c.Selected = selected != 0
	return &c, nil
}

const categoryCols = `id, name, is_selected`

func (s *ShoppingStore) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *ShoppingStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+categoryCols+` FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// InsertCategory stores c, assigning a fresh id when c.ID is zero. A category
// with an existing id is replaced in place; its items are kept.
func (s *ShoppingStore) InsertCategory(ctx context.Context, c model.Category) (*model.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := s.validator.Struct(c); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`INSERT INTO categories (id, name, is_selected) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, is_selected = excluded.is_selected
		 RETURNING `+categoryCols,
		nullID(c.ID), c.Name, c.Selected,
	)
	stored, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("upsert category: %w", err)
	}

	s.notify(TableCategories)
	return stored, nil
}

// UpdateCategory replaces the category with c.ID. It returns nil, nil when no
// such category exists.
func (s *ShoppingStore) UpdateCategory(ctx context.Context, c model.Category) (*model.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := s.validator.Struct(c); err != nil {
		return nil, err
	}

	result, err := s.q.ExecContext(ctx,
		`UPDATE categories SET name = ?, is_selected = ? WHERE id = ?`,
		c.Name, c.Selected, c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, nil
	}

	s.notify(TableCategories)
	return s.GetCategory(ctx, c.ID)
}

// ToggleCategorySelected flips the share selection flag of a category.
func (s *ShoppingStore) ToggleCategorySelected(ctx context.Context, id int64) (*model.Category, error) {
	result, err := s.q.ExecContext(ctx, `UPDATE categories SET is_selected = 1 - is_selected WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("toggle category selected: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, nil
	}

	s.notify(TableCategories)
	return s.GetCategory(ctx, id)
}

// DeleteCategory removes the category row. Deleting a missing category is a no-op.
func (s *ShoppingStore) DeleteCategory(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		// Items cascade at the schema level as well.
		s.notify(TableCategories, TableItems)
	}
	return nil
}

func (s *ShoppingStore) categoryExists(ctx context.Context, id int64) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return count > 0, nil
}

// --- Item methods ---

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var checked int
	if err := scanner.Scan(&item.ID, &item.Name, &checked, &item.CategoryID, &item.Quantity); err != nil {
		return nil, err
	}
	item.Checked = checked != 0
	return &item, nil
}

const itemCols = `id, name, is_checked, category_id, quantity`

func (s *ShoppingStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+itemCols+` FROM shopping_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *ShoppingStore) ListItemsByCategory(ctx context.Context, categoryID int64) ([]model.Item, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+itemCols+` FROM shopping_items WHERE category_id = ? ORDER BY id ASC`,
		categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// normalizeItem trims the name and applies the default quantity before validation.
func (s *ShoppingStore) normalizeItem(ctx context.Context, item *model.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Quantity == 0 {
		item.Quantity = model.DefaultQuantity
	}
	if err := s.validator.Struct(*item); err != nil {
		return err
	}

	ok, err := s.categoryExists(ctx, item.CategoryID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("category %d: %w", item.CategoryID, ErrUnknownCategory)
	}
	return nil
}

// InsertItem stores item, assigning a fresh id when item.ID is zero. An item
// with an existing id is replaced in place.
func (s *ShoppingStore) InsertItem(ctx context.Context, item model.Item) (*model.Item, error) {
	if err := s.normalizeItem(ctx, &item); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`INSERT INTO shopping_items (id, name, is_checked, category_id, quantity) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   is_checked = excluded.is_checked,
		   category_id = excluded.category_id,
		   quantity = excluded.quantity
		 RETURNING `+itemCols,
		nullID(item.ID), item.Name, item.Checked, item.CategoryID, item.Quantity,
	)
	stored, err := scanItem(row)
	if err != nil {
		return nil, fmt.Errorf("upsert item: %w", err)
	}

	s.notify(TableItems)
	return stored, nil
}

// UpdateItem replaces the item with item.ID. It returns nil, nil when no such
// item exists.
func (s *ShoppingStore) UpdateItem(ctx context.Context, item model.Item) (*model.Item, error) {
	if err := s.normalizeItem(ctx, &item); err != nil {
		return nil, err
	}

	result, err := s.q.ExecContext(ctx,
		`UPDATE shopping_items SET name = ?, is_checked = ?, category_id = ?, quantity = ? WHERE id = ?`,
		item.Name, item.Checked, item.CategoryID, item.Quantity, item.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, nil
	}

	s.notify(TableItems)
	return s.GetItem(ctx, item.ID)
}

func (s *ShoppingStore) ToggleItemChecked(ctx context.Context, id int64) (*model.Item, error) {
	result, err := s.q.ExecContext(ctx, `UPDATE shopping_items SET is_checked = 1 - is_checked WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("toggle checked: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, nil
	}

	s.notify(TableItems)
	return s.GetItem(ctx, id)
}

// DeleteItem removes an item. Deleting a missing item is a no-op.
func (s *ShoppingStore) DeleteItem(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM shopping_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		s.notify(TableItems)
	}
	return nil
}

// DeleteItemsByCategory removes every item in a category and returns how many were removed.
func (s *ShoppingStore) DeleteItemsByCategory(ctx context.Context, categoryID int64) (int64, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM shopping_items WHERE category_id = ?`, categoryID)
	if err != nil {
		return 0, fmt.Errorf("delete items by category: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if count > 0 {
		s.notify(TableItems)
	}
	return count, nil
}

// --- Live views ---

// WatchCategories returns a continuously-updated view of all categories.
func (s *ShoppingStore) WatchCategories(ctx context.Context) (*live.Subscription[model.Category], error) {
	sub, err := live.Subscribe[model.Category](ctx, s.hub, s.ListCategories, TableCategories)
	if err != nil {
		return nil, fmt.Errorf("watch categories: %w", err)
	}
	return sub, nil
}

// WatchItemsByCategory returns a continuously-updated view of one category's items.
func (s *ShoppingStore) WatchItemsByCategory(ctx context.Context, categoryID int64) (*live.Subscription[model.Item], error) {
	query := func(ctx context.Context) ([]model.Item, error) {
		return s.ListItemsByCategory(ctx, categoryID)
	}
	sub, err := live.Subscribe[model.Item](ctx, s.hub, query, TableItems)
	if err != nil {
		return nil, fmt.Errorf("watch items: %w", err)
	}
	return sub, nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
