package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hejijunhao/mailsort/internal/model"
)

// Catalog is the fixed, ordered set of categories a classifier predicts over.
// It is read-only after construction.
type Catalog struct {
	categories []model.Category
	index      map[string]int
}

// New builds a Catalog. Names must be non-empty and unique.
func New(categories []model.Category) (*Catalog, error) {
	if len(categories) == 0 {
		return nil, errors.New("catalog: no categories")
	}
	c := &Catalog{
		categories: make([]model.Category, len(categories)),
		index:      make(map[string]int, len(categories)),
	}
	for i, cat := range categories {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, fmt.Errorf("catalog: category %d has an empty name", i)
		}
		if _, dup := c.index[cat.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate category %q", cat.Name)
		}
		c.index[cat.Name] = i
		c.categories[i] = cat
	}
	return c, nil
}

// Categories returns a copy of the categories in order.
func (c *Catalog) Categories() []model.Category {
	out := make([]model.Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Names returns the category names in order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

// Descriptions maps each category name to its description.
func (c *Catalog) Descriptions() map[string]string {
	m := make(map[string]string, len(c.categories))
	for _, cat := range c.categories {
		m[cat.Name] = cat.Desc
	}
	return m
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	return len(c.categories)
}

// Index returns the position of name, or -1.
func (c *Catalog) Index(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// Validate checks that classes, as reported by a classifier artifact, match
// the catalog exactly and in the same order.
func (c *Catalog) Validate(classes []string) error {
	if len(classes) != len(c.categories) {
		return fmt.Errorf("catalog: classifier has %d classes %v, catalog has %d %v",
			len(classes), classes, len(c.categories), c.Names())
	}
	for i, cls := range classes {
		if cls != c.categories[i].Name {
			return fmt.Errorf("catalog: class %d is %q, catalog expects %q (classifier order %v, catalog order %v)",
				i, cls, c.categories[i].Name, classes, c.Names())
		}
	}
	return nil
}
