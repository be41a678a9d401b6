package state

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Notifier receives the ids of components whose dependencies changed.
type Notifier interface {
	Notify(componentID string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(componentID string)

// Notify calls f(componentID).
func (f NotifierFunc) Notify(componentID string) {
	f(componentID)
}

// Changes describes the outcome of a committed bracket.
type Changes struct {
	Fields     []string // serialized names of changed fields, sorted
	Components []string // notified component ids, in notification order
}

// Container holds one session's state value.
//
// The committed value is never mutated in place: a bracket works on a copy
// whose tracked fields are deep-copied through msgpack, and Commit swaps the
// copy in. Readers therefore always see a committed value.
type Container[S any] struct {
	schema *Schema[S]
	deps   *Dependencies
	notify Notifier

	bracket sync.Mutex // held from Open until Commit or Rollback
	mu      sync.RWMutex
	value   *S
}

// New returns a container for value. A nil value starts from the zero S;
// nil deps or notifier disable notifications.
func New[S any](schema *Schema[S], deps *Dependencies, n Notifier, value *S) *Container[S] {
	if value == nil {
		value = new(S)
	}
	if deps == nil {
		deps = NewDependencies()
	}
	return &Container[S]{schema: schema, deps: deps, notify: n, value: value}
}

// Schema returns the container's schema.
func (c *Container[S]) Schema() *Schema[S] {
	return c.schema
}

// Get returns a copy of the committed value.
func (c *Container[S]) Get() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.value
}

// Read calls fn with the committed value. fn must not modify it.
func (c *Container[S]) Read(fn func(s *S)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.value)
}

type txKey struct{ c any }

// Open starts a bracket. Brackets on one container run one at a time; Open
// blocks while another request holds the bracket. Opening a second bracket
// from inside a bracket (a context derived from Tx.Context) fails with
// ErrBracketOpen instead of deadlocking.
func (c *Container[S]) Open(ctx context.Context) (*Tx[S], error) {
	if ctx.Value(txKey{c}) != nil {
		return nil, ErrBracketOpen
	}
	c.bracket.Lock()

	c.mu.RLock()
	work, err := c.clone(c.value)
	c.mu.RUnlock()
	if err != nil {
		c.bracket.Unlock()
		return nil, err
	}
	base, err := c.encode(work)
	if err != nil {
		c.bracket.Unlock()
		return nil, err
	}

	return &Tx[S]{
		c:    c,
		ctx:  context.WithValue(ctx, txKey{c}, true),
		work: work,
		base: base,
	}, nil
}

// Update runs fn inside a bracket. The bracket commits when fn returns nil
// and rolls back when fn returns an error or panics.
func (c *Container[S]) Update(ctx context.Context, fn func(ctx context.Context, s *S) error) (Changes, error) {
	tx, err := c.Open(ctx)
	if err != nil {
		return Changes{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx.Context(), tx.Value()); err != nil {
		return Changes{}, err
	}
	committed = true
	return tx.Commit()
}

// Tx is an open bracket.
type Tx[S any] struct {
	c    *Container[S]
	ctx  context.Context
	work *S
	base map[string][]byte
	done bool
}

// Value returns the working copy to mutate. It must not be retained after
// Commit or Rollback.
func (tx *Tx[S]) Value() *S {
	return tx.work
}

// Context returns a context marked with this bracket.
func (tx *Tx[S]) Context() context.Context {
	return tx.ctx
}

// Commit diffs the working copy against the snapshot, publishes it and
// notifies the dependents of every changed field.
func (tx *Tx[S]) Commit() (Changes, error) {
	if tx.done {
		return Changes{}, ErrBracketClosed
	}
	tx.done = true
	defer tx.c.bracket.Unlock()

	cur, err := tx.c.encode(tx.work)
	if err != nil {
		return Changes{}, err
	}
	changes := Changes{Fields: diffFields(tx.base, cur)}

	tx.c.mu.Lock()
	tx.c.value = tx.work
	tx.c.mu.Unlock()

	changes.Components = tx.c.deps.resolve(changes.Fields)
	if tx.c.notify != nil {
		for _, id := range changes.Components {
			tx.c.notify.Notify(id)
		}
	}
	return changes, nil
}

// Rollback discards the working copy.
func (tx *Tx[S]) Rollback() error {
	if tx.done {
		return ErrBracketClosed
	}
	tx.done = true
	tx.c.bracket.Unlock()
	return nil
}

// encode returns the serialized form of every tracked field. Map keys are
// sorted so equal values always encode to equal bytes.
func (c *Container[S]) encode(v *S) (map[string][]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	var raw map[string]msgpack.RawMessage
	if err := msgpack.Unmarshal(buf.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	out := make(map[string][]byte, len(raw))
	for name, b := range raw {
		if c.schema.Has(name) {
			out[name] = b
		}
	}
	return out, nil
}

// clone returns a copy of v whose tracked fields share no memory with v.
// Untracked fields are copied shallowly.
func (c *Container[S]) clone(v *S) (*S, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	decoded := new(S)
	if err := msgpack.Unmarshal(raw, decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	out := new(S)
	*out = *v
	dst := reflect.ValueOf(out).Elem()
	src := reflect.ValueOf(decoded).Elem()
	for _, index := range c.schema.info.fields {
		dst.FieldByIndex(index).Set(src.FieldByIndex(index))
	}
	return out, nil
}

// diffFields returns the names present in only one of a and b, or whose
// encodings differ, sorted.
func diffFields(a, b map[string][]byte) []string {
	var changed []string
	for name, av := range a {
		bv, ok := b[name]
		if !ok || !bytes.Equal(av, bv) {
			changed = append(changed, name)
		}
	}
	for name := range b {
		if _, ok := a[name]; !ok {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}
