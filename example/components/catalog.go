package components

import (
	"sort"
	"strings"
	"sync"
)

// Catalog is an in-memory list of names the search component filters. It is
// shared by every session.
type Catalog struct {
	mu    sync.RWMutex
	items []string
}

// NewCatalog creates a catalog with sample data.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.Add(
		"Apple", "Apricot", "Avocado", "Banana", "Blackberry", "Blueberry",
		"Cherry", "Coconut", "Cranberry", "Date", "Dragonfruit", "Durian",
		"Fig", "Gooseberry", "Grape", "Grapefruit", "Guava", "Kiwi", "Kumquat",
		"Lemon", "Lime", "Lychee", "Mango", "Melon", "Mulberry", "Nectarine",
		"Orange", "Papaya", "Passionfruit", "Peach", "Pear", "Persimmon",
		"Pineapple", "Plum", "Pomegranate", "Quince", "Raspberry", "Strawberry",
		"Tangerine", "Watermelon",
	)
	return c
}

// Add inserts names, keeping the catalog sorted.
func (c *Catalog) Add(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, names...)
	sort.Strings(c.items)
}

// Len returns the number of names.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Search returns up to limit names containing query, case-insensitively.
// Names starting with query come first. An empty query matches everything.
func (c *Catalog) Search(query string, limit int) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var prefix, inner []string
	for _, item := range c.items {
		lower := strings.ToLower(item)
		switch {
		case strings.HasPrefix(lower, q):
			prefix = append(prefix, item)
		case strings.Contains(lower, q):
			inner = append(inner, item)
		}
	}
	out := append(prefix, inner...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
