package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Sentinel errors for state operations.
var (
	ErrBracketOpen   = errors.New("state: bracket already open")
	ErrBracketClosed = errors.New("state: bracket already closed")
	ErrFrozen        = errors.New("state: dependencies are frozen")
	ErrEncode        = errors.New("state: encode failed")
)

// Dependencies maps field names to the ids of the components that reload
// when the field changes.
//
// Entries are written while routes are registered. Freeze ends the write
// phase; after that the map is only read, from any number of goroutines.
type Dependencies struct {
	mu     sync.RWMutex
	fields map[string]map[string]struct{}
	frozen bool
}

// NewDependencies returns an empty, writable dependency map.
func NewDependencies() *Dependencies {
	return &Dependencies{fields: make(map[string]map[string]struct{})}
}

// Register records that componentID reloads when f changes.
func (d *Dependencies) Register(f Field, componentID string) error {
	if f.IsZero() {
		return fmt.Errorf("state: register %q: zero field handle", componentID)
	}
	if componentID == "" {
		return fmt.Errorf("state: register %s: empty component id", f)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frozen {
		return fmt.Errorf("register %s -> %q: %w", f, componentID, ErrFrozen)
	}
	ids, ok := d.fields[f.name]
	if !ok {
		ids = make(map[string]struct{})
		d.fields[f.name] = ids
	}
	ids[componentID] = struct{}{}
	return nil
}

// Freeze ends the write phase. It is safe to call more than once.
func (d *Dependencies) Freeze() {
	d.mu.Lock()
	d.frozen = true
	d.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (d *Dependencies) Frozen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frozen
}

// Dependents returns the component ids registered for field, sorted.
// Unknown fields have no dependents.
func (d *Dependencies) Dependents(field string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.fields[field]
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// resolve returns the deduplicated dependents of the given fields, in field
// order then id order.
func (d *Dependencies) resolve(fields []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, f := range fields {
		for _, id := range d.Dependents(f) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
