package model

// Category groups shopping items. Selected marks the category for sharing and
// is independent of which category is currently being viewed.
type Category struct {
	ID       int64  `json:"id" yaml:"id" validate:"gte=0"`
	Name     string `json:"name" yaml:"name" validate:"required,max=200"`
	Selected bool   `json:"is_selected" yaml:"is_selected"`
}

// Item is a single entry on the shopping list.
type Item struct {
	ID         int64  `json:"id" yaml:"id" validate:"gte=0"`
	Name       string `json:"name" yaml:"name" validate:"required,max=200"`
	Checked    bool   `json:"is_checked" yaml:"is_checked"`
	CategoryID int64  `json:"category_id" yaml:"category_id" validate:"required,gt=0"`
	Quantity   int    `json:"quantity" yaml:"quantity" validate:"gte=1"`
}

// DefaultQuantity is used when an item is added without a quantity.
const DefaultQuantity = 1
