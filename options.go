package hxlive

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/pthm/hxlive/lib/state"
)

// Defaults used by New.
const (
	DefaultPrefix         = "/__hxlive__"
	DefaultCookieName     = "sid"
	DefaultCookieMaxAge   = 7 * 24 * time.Hour
	DefaultDeleteTimeout  = 10 * time.Second
	DefaultSSEBufferSize  = 10
	DefaultSSETick        = 15 * time.Second
	DefaultHTMXSource     = "https://unpkg.com/htmx.org@2.0.4"
	DefaultComponentCache = 512
	DefaultCSRFInputID    = "csrf"
)

// Option configures an App.
type Option func(*config)

type config struct {
	state         *stateFactory
	prefix        string
	cookieName    string
	cookieMaxAge  time.Duration
	deleteTimeout time.Duration
	sseBufferSize int
	sseTick       time.Duration
	key           []byte
	htmxSource    string
	cacheSize     int
	logger        logrus.FieldLogger
	registerer    prometheus.Registerer
	csrfInputID   string
}

func defaultConfig() config {
	return config{
		prefix:        DefaultPrefix,
		cookieName:    DefaultCookieName,
		cookieMaxAge:  DefaultCookieMaxAge,
		deleteTimeout: DefaultDeleteTimeout,
		sseBufferSize: DefaultSSEBufferSize,
		sseTick:       DefaultSSETick,
		htmxSource:    DefaultHTMXSource,
		cacheSize:     DefaultComponentCache,
		csrfInputID:   DefaultCSRFInputID,
	}
}

// stateFactory builds a session's state container without the App knowing S.
type stateFactory struct {
	owns func(state.Field) bool
	new  func(n state.Notifier, deps *state.Dependencies) any
}

// WithState gives every session a state container of type S. init returns
// the initial value; nil starts from the zero S.
//
//	var Schema = state.NewSchema[AppState]()
//	app := hxlive.New(hxlive.WithState(Schema, func() AppState { return AppState{} }))
func WithState[S any](schema *state.Schema[S], init func() S) Option {
	return func(c *config) {
		c.state = &stateFactory{
			owns: schema.Owns,
			new: func(n state.Notifier, deps *state.Dependencies) any {
				var v S
				if init != nil {
					v = init()
				}
				return state.New(schema, deps, n, &v)
			},
		}
	}
}

// WithPrefix sets the path under which reload and SSE endpoints are served.
func WithPrefix(prefix string) Option {
	return func(c *config) { c.prefix = prefix }
}

// WithCookie sets the session cookie name and max age. The max age is also
// the idle lifetime of sessions that never open an SSE stream.
func WithCookie(name string, maxAge time.Duration) Option {
	return func(c *config) {
		c.cookieName = name
		c.cookieMaxAge = maxAge
	}
}

// WithDeleteTimeout sets how long a session survives after its last SSE
// stream disconnects.
func WithDeleteTimeout(d time.Duration) Option {
	return func(c *config) { c.deleteTimeout = d }
}

// WithSSEBufferSize sets how many sent events each session keeps for replay.
func WithSSEBufferSize(n int) Option {
	return func(c *config) { c.sseBufferSize = n }
}

// WithSSETick sets the heartbeat interval of SSE streams. New panics if d
// is not positive.
func WithSSETick(d time.Duration) Option {
	return func(c *config) { c.sseTick = d }
}

// WithKey sets the key used to sign component props. Without it a random
// key is generated, so reload URLs do not survive a restart.
func WithKey(key []byte) Option {
	return func(c *config) { c.key = key }
}

// WithHTMXSource sets the URL of the htmx script included in pages.
func WithHTMXSource(src string) Option {
	return func(c *config) { c.htmxSource = src }
}

// WithComponentCacheSize bounds the number of component instances kept per
// session. New panics if n is less than one.
func WithComponentCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithLogger sets the logger. The default logs warnings to stderr.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics registers the App's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

// WithCSRFInputID sets the id and name of the hidden CSRF input.
func WithCSRFInputID(id string) Option {
	return func(c *config) { c.csrfInputID = id }
}
