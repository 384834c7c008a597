package catalog

import "github.com/hejijunhao/mailsort/internal/model"

// DefaultCategories returns the built-in category list. The order is the
// order of the classifier's probability output and must not change without
// retraining.
func DefaultCategories() []model.Category {
	return []model.Category{
		{Name: "Urgent", Desc: "Time-sensitive, critical matters requiring immediate attention"},
		{Name: "Financial", Desc: "Budget, invoice, payment, and money-related communications"},
		{Name: "HR", Desc: "Human resources, employee, hiring, and benefits related"},
		{Name: "General", Desc: "General business communications and queries"},
	}
}

// Default returns a Catalog over DefaultCategories.
func Default() *Catalog {
	c, err := New(DefaultCategories())
	if err != nil {
		panic(err)
	}
	return c
}
