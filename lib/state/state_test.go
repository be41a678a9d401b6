package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type counterState struct {
	Count int            `msgpack:"count"`
	Items []string       `msgpack:"items"`
	Tags  map[string]int `msgpack:"tags,omitempty"`
	Note  string         `msgpack:"-"`
}

type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) Notify(id string) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

func (r *recorder) drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.ids
	r.ids = nil
	return out
}

func newCounter(t *testing.T, deps map[string][]string) (*Container[counterState], *recorder) {
	t.Helper()
	schema := NewSchema[counterState]()
	d := NewDependencies()
	for field, ids := range deps {
		for _, id := range ids {
			if err := d.Register(schema.Field(field), id); err != nil {
				t.Fatalf("Register(%s, %s) error = %v", field, id, err)
			}
		}
	}
	d.Freeze()
	rec := &recorder{}
	return New(schema, d, rec, nil), rec
}

func TestSchemaFields(t *testing.T) {
	type Embedded struct {
		Page int `msgpack:"page"`
	}
	type withEmbedded struct {
		Embedded
		Query  string
		hidden int
	}
	s := NewSchema[withEmbedded]()

	want := []string{"Query", "page"}
	if diff := cmp.Diff(want, s.Fields()); diff != "" {
		t.Errorf("Fields() mismatch (-want +got):\n%s", diff)
	}
	if s.Has("hidden") {
		t.Error("Has(hidden) = true, want false")
	}
}

func TestSchemaFieldUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Field(unknown) did not panic")
		}
	}()
	NewSchema[counterState]().Field("Note")
}

func TestSchemaOwns(t *testing.T) {
	a := NewSchema[counterState]()
	b := NewSchema[counterState]()
	if !a.Owns(a.Field("count")) {
		t.Error("a.Owns(a.count) = false, want true")
	}
	if b.Owns(a.Field("count")) {
		t.Error("b.Owns(a.count) = true, want false")
	}
}

func TestCountScenario(t *testing.T) {
	c, rec := newCounter(t, map[string][]string{"count": {"A"}})
	ctx := context.Background()

	tx, err := c.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	tx.Value().Count = 1
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if diff := cmp.Diff([]string{"A"}, rec.drain()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}

	tx, err = c.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	tx.Value().Count = 1
	changes, err := tx.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if got := rec.drain(); len(got) != 0 {
		t.Errorf("notifications after no-op commit = %v, want none", got)
	}
	if len(changes.Fields) != 0 {
		t.Errorf("changes.Fields = %v, want none", changes.Fields)
	}
	if got := c.Get().Count; got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
}

func TestCommitDetectsInPlaceMutation(t *testing.T) {
	c, rec := newCounter(t, map[string][]string{"items": {"list"}, "tags": {"cloud"}})
	ctx := context.Background()

	if _, err := c.Update(ctx, func(_ context.Context, s *counterState) error {
		s.Items = append(s.Items, "a")
		return nil
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if diff := cmp.Diff([]string{"list"}, rec.drain()); diff != "" {
		t.Errorf("append: notifications mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.Update(ctx, func(_ context.Context, s *counterState) error {
		s.Items[0] = "b"
		return nil
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if diff := cmp.Diff([]string{"list"}, rec.drain()); diff != "" {
		t.Errorf("index write: notifications mismatch (-want +got):\n%s", diff)
	}
	if got := c.Get().Items; !cmp.Equal(got, []string{"b"}) {
		t.Errorf("Items = %v, want [b]", got)
	}

	// tags is omitempty: the key appears for the first time.
	if _, err := c.Update(ctx, func(_ context.Context, s *counterState) error {
		s.Tags = map[string]int{"go": 1}
		return nil
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if diff := cmp.Diff([]string{"cloud"}, rec.drain()); diff != "" {
		t.Errorf("new key: notifications mismatch (-want +got):\n%s", diff)
	}

	if _, err := c.Update(ctx, func(_ context.Context, s *counterState) error {
		s.Tags["go"]++
		return nil
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if diff := cmp.Diff([]string{"cloud"}, rec.drain()); diff != "" {
		t.Errorf("map write: notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitIgnoresUntrackedFields(t *testing.T) {
	c, rec := newCounter(t, map[string][]string{"count": {"A"}})

	changes, err := c.Update(context.Background(), func(_ context.Context, s *counterState) error {
		s.Note = "scratch"
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(changes.Fields) != 0 || len(rec.drain()) != 0 {
		t.Errorf("untracked change produced %+v", changes)
	}
	if got := c.Get().Note; got != "scratch" {
		t.Errorf("Note = %q, want %q", got, "scratch")
	}
}

func TestCommitUnionOfDependents(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*counterState)
		want   []string
	}{
		{
			name:   "single field",
			mutate: func(s *counterState) { s.Count++ },
			want:   []string{"A", "B"},
		},
		{
			name:   "shared dependent deduplicated",
			mutate: func(s *counterState) { s.Count++; s.Items = []string{"x"} },
			want:   []string{"A", "B", "C"},
		},
		{
			name:   "field without dependents",
			mutate: func(s *counterState) { s.Tags = map[string]int{"a": 1} },
			want:   nil,
		},
		{
			name:   "no change",
			mutate: func(s *counterState) {},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newCounter(t, map[string][]string{
				"count": {"B", "A"},
				"items": {"C", "A"},
			})
			changes, err := c.Update(context.Background(), func(_ context.Context, s *counterState) error {
				tt.mutate(s)
				return nil
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			got := rec.drain()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("notifications mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, changes.Components); diff != "" {
				t.Errorf("changes.Components mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNestedBracket(t *testing.T) {
	c, _ := newCounter(t, nil)

	_, err := c.Update(context.Background(), func(ctx context.Context, s *counterState) error {
		_, err := c.Open(ctx)
		return err
	})
	if !errors.Is(err, ErrBracketOpen) {
		t.Errorf("nested Open() error = %v, want %v", err, ErrBracketOpen)
	}

	// The outer bracket must have been released.
	tx, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() after nested failure error = %v", err)
	}
	_ = tx.Rollback()
}

func TestBracketClosedTwice(t *testing.T) {
	c, _ := newCounter(t, nil)

	tx, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if _, err := tx.Commit(); !errors.Is(err, ErrBracketClosed) {
		t.Errorf("second Commit() error = %v, want %v", err, ErrBracketClosed)
	}
	if err := tx.Rollback(); !errors.Is(err, ErrBracketClosed) {
		t.Errorf("Rollback() after Commit error = %v, want %v", err, ErrBracketClosed)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	c, rec := newCounter(t, map[string][]string{"count": {"A"}})
	boom := errors.New("boom")

	_, err := c.Update(context.Background(), func(_ context.Context, s *counterState) error {
		s.Count = 42
		s.Items = append(s.Items, "lost")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want %v", err, boom)
	}
	got := c.Get()
	if got.Count != 0 || len(got.Items) != 0 {
		t.Errorf("state after rollback = %+v, want zero", got)
	}
	if ids := rec.drain(); len(ids) != 0 {
		t.Errorf("notifications after rollback = %v, want none", ids)
	}
}

func TestUpdateRollsBackOnPanic(t *testing.T) {
	c, _ := newCounter(t, nil)

	func() {
		defer func() { _ = recover() }()
		_, _ = c.Update(context.Background(), func(_ context.Context, s *counterState) error {
			s.Count = 7
			panic("view bug")
		})
	}()

	if got := c.Get().Count; got != 0 {
		t.Errorf("Count after panic = %d, want 0", got)
	}
	tx, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() after panic error = %v", err)
	}
	_ = tx.Rollback()
}

func TestBracketsSerialize(t *testing.T) {
	c, _ := newCounter(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Update(context.Background(), func(_ context.Context, s *counterState) error {
				s.Count++
				return nil
			})
		}()
	}
	wg.Wait()

	if got := c.Get().Count; got != 50 {
		t.Errorf("Count = %d, want 50", got)
	}
}

func TestDependenciesFrozen(t *testing.T) {
	s := NewSchema[counterState]()
	d := NewDependencies()
	if err := d.Register(s.Field("count"), "A"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	d.Freeze()

	if !d.Frozen() {
		t.Error("Frozen() = false, want true")
	}
	if err := d.Register(s.Field("count"), "B"); !errors.Is(err, ErrFrozen) {
		t.Errorf("Register() after Freeze error = %v, want %v", err, ErrFrozen)
	}
	if diff := cmp.Diff([]string{"A"}, d.Dependents("count")); diff != "" {
		t.Errorf("Dependents() mismatch (-want +got):\n%s", diff)
	}
}

func TestDependenciesRegisterZeroField(t *testing.T) {
	d := NewDependencies()
	if err := d.Register(Field{}, "A"); err == nil {
		t.Error("Register(zero field) error = nil, want error")
	}
}
