// Package taxonomy defines the category vocabulary every pipeline stage shares.
package taxonomy

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrEmpty is returned when an analysis run starts without any categories.
// The pipeline treats this as fatal: every stage keys its output by category.
var ErrEmpty = errors.New("taxonomy: no categories defined")

// UncategorizedName is the reserved fallback category. Every taxonomy carries it.
const UncategorizedName = "Uncategorized"

// Category is a spending (or income) category. IsEssential drives both the
// gray-charge flag and which categories the goal forecaster may cut.
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	IsEssential bool      `json:"is_essential"`
}

// Taxonomy is an immutable category set with ID and name lookups.
type Taxonomy struct {
	categories []Category
	byID       map[uuid.UUID]Category
	byName     map[string]Category
}

// New builds a taxonomy from a category list. The fallback category is appended
// when missing so categorization always has somewhere to land.
func New(categories []Category) (*Taxonomy, error) {
	if len(categories) == 0 {
		return nil, ErrEmpty
	}

	t := &Taxonomy{
		categories: make([]Category, 0, len(categories)+1),
		byID:       make(map[uuid.UUID]Category, len(categories)+1),
		byName:     make(map[string]Category, len(categories)+1),
	}
	for _, c := range categories {
		t.add(c)
	}
	if _, ok := t.byName[strings.ToLower(UncategorizedName)]; !ok {
		t.add(Category{ID: categoryID(UncategorizedName), Name: UncategorizedName, Icon: "❓", Color: "#9E9E9E"})
	}
	return t, nil
}

func (t *Taxonomy) add(c Category) {
	t.categories = append(t.categories, c)
	t.byID[c.ID] = c
	t.byName[strings.ToLower(c.Name)] = c
}

// Categories returns the categories in seed order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// ByID looks a category up by ID.
func (t *Taxonomy) ByID(id uuid.UUID) (Category, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// ByName looks a category up case-insensitively by name.
func (t *Taxonomy) ByName(name string) (Category, bool) {
	c, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Uncategorized returns the fallback category.
func (t *Taxonomy) Uncategorized() Category {
	c := t.byName[strings.ToLower(UncategorizedName)]
	return c
}

// Names returns all category names, in seed order. Handed to the AI
// categorizer so it can only answer within the vocabulary.
func (t *Taxonomy) Names() []string {
	names := make([]string, 0, len(t.categories))
	for _, c := range t.categories {
		names = append(names, c.Name)
	}
	return names
}

// categoryID derives a stable ID from the category name so that seeded
// taxonomies are identical across runs and processes.
func categoryID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("category:"+strings.ToLower(name)))
}

// Default returns the seed taxonomy used for demo sessions and fresh databases.
func Default() *Taxonomy {
	seed := []Category{
		{Name: "Groceries", Icon: "🛒", Color: "#4CAF50", IsEssential: true},
		{Name: "Dining", Icon: "🍽️", Color: "#FF9800"},
		{Name: "Delivery", Icon: "🛵", Color: "#FF5722"},
		{Name: "Transportation", Icon: "🚗", Color: "#2196F3", IsEssential: true},
		{Name: "Shopping", Icon: "🛍️", Color: "#E91E63"},
		{Name: "Entertainment", Icon: "🎬", Color: "#9C27B0"},
		{Name: "Healthcare", Icon: "🏥", Color: "#00BCD4", IsEssential: true},
		{Name: "Housing", Icon: "🏠", Color: "#795548", IsEssential: true},
		{Name: "Utilities", Icon: "💡", Color: "#607D8B", IsEssential: true},
		{Name: "Subscriptions", Icon: "🔁", Color: "#673AB7"},
		{Name: "Income", Icon: "💰", Color: "#8BC34A", IsEssential: true},
		{Name: UncategorizedName, Icon: "❓", Color: "#9E9E9E"},
	}
	for i := range seed {
		seed[i].ID = categoryID(seed[i].Name)
	}
	t, _ := New(seed)
	return t
}
