package hxlive

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// Store maps session ids to sessions.
//
// Sessions expire after ttl without activity; every Get refreshes the
// deadline. Create and Delete are serialized by one mutex so two concurrent
// creates can never hand out the same id. Get only takes the cache's own lock.
type Store struct {
	mu      sync.Mutex
	cache   *ttlcache.Cache[string, *Session]
	factory func(id string) *Session
	stop    sync.Once
}

// NewStore returns a store whose sessions are built by factory. The expiry
// loop starts immediately; Close stops it.
func NewStore(ttl time.Duration, factory func(id string) *Session) *Store {
	cache := ttlcache.New[string, *Session](
		ttlcache.WithTTL[string, *Session](ttl),
	)
	cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		item.Value().close()
	})
	go cache.Start()

	return &Store{cache: cache, factory: factory}
}

// OnEviction registers fn to run whenever a session leaves the store, by
// expiry or Delete.
func (st *Store) OnEviction(fn func(s *Session, expired bool)) {
	st.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		fn(item.Value(), reason == ttlcache.EvictionReasonExpired)
	})
}

// Create builds and stores a session under a fresh random id.
func (st *Store) Create() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	for {
		id := uuid.NewString()
		if st.cache.Has(id) {
			continue
		}
		s := st.factory(id)
		st.cache.Set(id, s, ttlcache.DefaultTTL)
		return s
	}
}

// Get returns the session for id. Unknown and expired ids return nil, false.
func (st *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	item := st.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Delete removes the session and closes it.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cache.Delete(id)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	return st.cache.Len()
}

// Close stops the expiry loop. It is safe to call more than once.
func (st *Store) Close() {
	st.stop.Do(st.cache.Stop)
}
