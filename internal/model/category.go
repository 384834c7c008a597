package model

// Category is one label a message can be assigned to.
type Category struct {
	Name string `json:"name"`
	Desc string `json:"description"` // shown to API consumers
}
