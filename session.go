package hxlive

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Event is one notification delivered over the SSE channel.
type Event struct {
	Seq       uint64 // per-session, starts at 1
	Component string // container id of the component to reload
}

// Session is the server side of one browser cookie.
//
// A session owns the state container, the queue of component ids waiting to
// be pushed to the browser, the store of rendered component instances and a
// bounded buffer of recently sent events for replay after a reconnect.
type Session struct {
	id      string
	csrf    string
	created time.Time
	state   any
	metrics *metrics

	mu        sync.Mutex
	path      string
	queue     []string
	wake      chan struct{}
	sent      *eventRing
	seq       uint64
	conns     int
	grace     *time.Timer
	nextCID   uint64
	closed    bool
	done      chan struct{}
	instances *lru.Cache[string, *instance]
}

func newSession(id string, bufSize, cacheSize int, m *metrics) *Session {
	instances, err := lru.New[string, *instance](cacheSize)
	if err != nil {
		panic("hxlive: invalid component cache size: " + err.Error())
	}
	return &Session{
		id:        id,
		csrf:      newCSRFToken(),
		created:   time.Now(),
		metrics:   m,
		wake:      make(chan struct{}, 1),
		sent:      newEventRing(bufSize),
		done:      make(chan struct{}),
		instances: instances,
	}
}

func newCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("hxlive: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// ID returns the session id, which is also the cookie value.
func (s *Session) ID() string { return s.id }

// CSRFToken returns the token every non-GET request must carry.
func (s *Session) CSRFToken() string { return s.csrf }

// Created returns the creation time.
func (s *Session) Created() time.Time { return s.created }

// Path returns the path of the last page the session loaded.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *Session) setPath(p string) {
	s.mu.Lock()
	s.path = p
	s.mu.Unlock()
}

// Notify enqueues a component id for delivery. It implements state.Notifier.
func (s *Session) Notify(componentID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, componentID)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.notifications.Inc()
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Reload asks the browser to reload the component with the given container
// id.
func (s *Session) Reload(componentID string) {
	s.Notify(componentID)
}

// Pending returns the queued ids that have not been delivered yet.
func (s *Session) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queue...)
}

// tryNext dequeues the oldest id and records it in the replay buffer.
func (s *Session) tryNext() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	id := s.queue[0]
	s.queue[0] = ""
	s.queue = s.queue[1:]
	s.seq++
	ev := Event{Seq: s.seq, Component: id}
	s.sent.push(ev)
	return ev, true
}

// Next blocks until an id is queued and returns it as an event. It returns
// ctx.Err() when ctx is done and ErrNoSession when the session is deleted.
func (s *Session) Next(ctx context.Context) (Event, error) {
	for {
		if ev, ok := s.tryNext(); ok {
			return ev, nil
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-s.done:
			return Event{}, ErrNoSession
		case <-s.wake:
		}
	}
}

// Missed returns the buffered events sent after seq last, oldest first.
func (s *Session) Missed(last uint64) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent.after(last)
}

// nextComponentID returns a fresh per-session container id.
func (s *Session) nextComponentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCID++
	return "cid_" + strconv.FormatUint(s.nextCID, 10)
}

func (s *Session) addInstance(inst *instance) {
	s.instances.Add(inst.id, inst)
}

func (s *Session) instance(id string) (*instance, bool) {
	return s.instances.Get(id)
}

// Instances returns the number of component instances the session holds.
func (s *Session) Instances() int {
	return s.instances.Len()
}

// connect registers an open SSE stream and cancels a pending teardown.
func (s *Session) connect() {
	s.mu.Lock()
	s.conns++
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	s.mu.Unlock()
}

// disconnect unregisters an SSE stream. When it was the last one, teardown
// runs after grace unless a stream reconnects first.
func (s *Session) disconnect(grace time.Duration, teardown func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns--
	if s.conns > 0 || s.closed {
		return
	}
	if s.grace != nil {
		s.grace.Stop()
	}
	s.grace = time.AfterFunc(grace, func() {
		s.mu.Lock()
		idle := s.conns == 0
		s.mu.Unlock()
		if idle {
			teardown()
		}
	})
}

// Connections returns the number of open SSE streams.
func (s *Session) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// Done is closed when the session is deleted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	s.queue = nil
	close(s.done)
	s.instances.Purge()
}

// eventRing keeps the last n delivered events.
type eventRing struct {
	buf   []Event
	start int
	size  int
}

func newEventRing(n int) *eventRing {
	if n < 1 {
		n = 1
	}
	return &eventRing{buf: make([]Event, n)}
}

func (r *eventRing) push(ev Event) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = ev
		r.size++
		return
	}
	r.buf[r.start] = ev
	r.start = (r.start + 1) % len(r.buf)
}

func (r *eventRing) after(seq uint64) []Event {
	var out []Event
	for i := 0; i < r.size; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
