package shopping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukerupert/shoplist/internal/live"
	"github.com/dukerupert/shoplist/internal/model"
)

// DeselectCategory passed to SelectCategory clears the current selection.
const DeselectCategory int64 = -1

// ErrSessionClosed is returned by commands issued after Close.
var ErrSessionClosed = errors.New("session closed")

// Snapshot is an immutable view of the session state handed to the view layer.
type Snapshot struct {
	Categories         []model.Category `json:"categories"`
	SelectedCategoryID *int64           `json:"selected_category_id"`
	Items              []model.Item     `json:"items"`
}

// ChangeFunc is called with a fresh snapshot whenever session state changes. It
// runs while the session is locked and must not call back into the Session.
type ChangeFunc func(Snapshot)

// Session holds the currently viewed category and keeps the list of all
// categories and the items of the viewed category up to date.
type Session struct {
	repo     *Repository
	onChange ChangeFunc
	logger   *slog.Logger

	mu         sync.Mutex
	categories []model.Category
	catSub     *live.Subscription[model.Category]
	selected   *int64
	items      []model.Item
	itemSub    *live.Subscription[model.Item]
	gen        uint64
	closed     bool
}

// NewSession subscribes to all categories. onChange may be nil.
func NewSession(ctx context.Context, repo *Repository, onChange ChangeFunc, logger *slog.Logger) (*Session, error) {
	sub, err := repo.WatchCategories(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{
		repo:       repo,
		onChange:   onChange,
		logger:     logger,
		categories: sub.Current(),
		catSub:     sub,
		items:      []model.Item{},
	}
	go s.forwardCategories(sub)
	return s, nil
}

// Close cancels all live views held by the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	if s.itemSub != nil {
		s.itemSub.Cancel()
		s.itemSub = nil
	}
	s.catSub.Cancel()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{Categories: s.categories, Items: s.items}
	if s.selected != nil {
		id := *s.selected
		snap.SelectedCategoryID = &id
	}
	return snap
}

func (s *Session) publishLocked() {
	if s.onChange != nil {
		s.onChange(s.snapshotLocked())
	}
}

// SelectedCategoryID returns the viewed category, if any.
func (s *Session) SelectedCategoryID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return 0, false
	}
	return *s.selected, true
}

// SelectCategory changes the viewed category. Selecting the category that is
// already viewed, or DeselectCategory, clears the selection.
func (s *Session) SelectCategory(ctx context.Context, categoryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	if categoryID == DeselectCategory || (s.selected != nil && *s.selected == categoryID) {
		s.switchLocked(nil, nil)
		return nil
	}

	sub, err := s.repo.WatchItemsByCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("select category %d: %w", categoryID, err)
	}
	s.switchLocked(&categoryID, sub)
	return nil
}

// switchLocked replaces the item view. The previous subscription is cancelled
// and its forwarder is fenced off by the generation counter.
func (s *Session) switchLocked(categoryID *int64, sub *live.Subscription[model.Item]) {
	if s.itemSub != nil {
		s.itemSub.Cancel()
	}
	s.gen++
	s.selected = categoryID
	s.itemSub = sub

	if sub == nil {
		s.items = []model.Item{}
	} else {
		s.items = sub.Current()
		go s.forwardItems(s.gen, sub)
	}
	s.publishLocked()
}

func (s *Session) forwardItems(gen uint64, sub *live.Subscription[model.Item]) {
	for snap := range sub.Updates() {
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.items = snap
		s.publishLocked()
		s.mu.Unlock()
	}
}

func (s *Session) forwardCategories(sub *live.Subscription[model.Category]) {
	for snap := range sub.Updates() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.categories = snap
		s.publishLocked()
		s.mu.Unlock()
	}
}

// --- Commands ---

func (s *Session) AddItem(ctx context.Context, name string, categoryID int64, quantity int) (*model.Item, error) {
	return s.repo.InsertItem(ctx, model.Item{Name: name, CategoryID: categoryID, Quantity: quantity})
}

func (s *Session) AddCategory(ctx context.Context, name string) (*model.Category, error) {
	return s.repo.InsertCategory(ctx, model.Category{Name: name})
}

func (s *Session) UpdateItem(ctx context.Context, item model.Item) (*model.Item, error) {
	return s.repo.UpdateItem(ctx, item)
}

func (s *Session) UpdateCategory(ctx context.Context, c model.Category) (*model.Category, error) {
	return s.repo.UpdateCategory(ctx, c)
}

func (s *Session) DeleteItem(ctx context.Context, id int64) error {
	return s.repo.DeleteItem(ctx, id)
}

func (s *Session) ToggleItemChecked(ctx context.Context, id int64) (*model.Item, error) {
	return s.repo.ToggleItemChecked(ctx, id)
}

// ToggleCategorySelection flips whether a category is included when sharing.
func (s *Session) ToggleCategorySelection(ctx context.Context, id int64) (*model.Category, error) {
	return s.repo.ToggleCategorySelected(ctx, id)
}

// DeleteCategory removes a category and its items. If it was the viewed
// category the selection is cleared.
func (s *Session) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.selected != nil && *s.selected == id {
		s.switchLocked(nil, nil)
	}
	return nil
}

// ShareSelectedCategories renders every category marked for sharing with its
// items as plain text. It reads the data once and holds no subscription.
func (s *Session) ShareSelectedCategories(ctx context.Context) (string, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return "", fmt.Errorf("share: %w", err)
	}

	var b strings.Builder
	for _, c := range categories {
		if !c.Selected {
			continue
		}
		items, err := s.repo.ItemsByCategory(ctx, c.ID)
		if err != nil {
			return "", fmt.Errorf("share category %d: %w", c.ID, err)
		}
		writeShareSection(&b, c, items)
	}

	s.logger.Debug("shared categories", "bytes", b.Len())
	return b.String(), nil
}

func writeShareSection(b *strings.Builder, c model.Category, items []model.Item) {
	fmt.Fprintf(b, "Category: %s\n", c.Name)
	for _, item := range items {
		fmt.Fprintf(b, "- %s (Quantity: %d)\n", item.Name, item.Quantity)
	}
	b.WriteString("\n")
}
