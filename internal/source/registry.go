package source

import (
	"fmt"
	"sort"
)

// Constructor creates a Source whose emails are tagged with name.
type Constructor func(name string) Source

var registry = map[string]Constructor{}

// Register adds a source constructor under the given format name.
func Register(format string, ctor Constructor) {
	registry[format] = ctor
}

// Get returns the source constructor for the given format name.
func Get(format string) (Constructor, error) {
	ctor, ok := registry[format]
	if !ok {
		return nil, fmt.Errorf("unknown source format: %s", format)
	}
	return ctor, nil
}

// Formats returns the names of all registered formats, sorted.
func Formats() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
