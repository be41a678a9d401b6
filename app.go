package hxlive

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pthm/hxlive/lib/state"
)

// App owns the component registry, the session store and the HTTP routes.
//
// Components and pages are registered at startup. Handler freezes the
// registry; registering afterwards panics.
type App struct {
	cfg     config
	mux     *http.ServeMux
	store   *Store
	deps    *state.Dependencies
	encoder *Encoder
	metrics *metrics
	log     logrus.FieldLogger

	mu      sync.Mutex
	classes map[string]string // component name -> route path
	paths   map[string]string // route path -> component name
	ids     map[string]string // explicit container id -> component name
	pages   []string
	frozen  bool

	// OnError is called when a request fails. Customize this to handle errors
	// appropriately for your application; StatusCode gives the default code.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// New creates an App.
func New(opts ...Option) *App {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.prefix = "/" + strings.Trim(cfg.prefix, "/")
	if cfg.cacheSize < 1 {
		panic(fmt.Sprintf("hxlive: component cache size must be positive, got %d", cfg.cacheSize))
	}
	if cfg.sseTick <= 0 {
		panic(fmt.Sprintf("hxlive: SSE tick must be positive, got %v", cfg.sseTick))
	}
	if cfg.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		cfg.logger = l
	}
	if len(cfg.key) == 0 {
		cfg.key = make([]byte, 32)
		if _, err := rand.Read(cfg.key); err != nil {
			panic(fmt.Sprintf("hxlive: failed to generate key: %v", err))
		}
	}

	enc, err := NewEncoder(cfg.key)
	if err != nil {
		panic(fmt.Sprintf("hxlive: failed to create encoder: %v", err))
	}

	app := &App{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		deps:    state.NewDependencies(),
		encoder: enc,
		metrics: newMetrics(cfg.registerer),
		log:     cfg.logger,
		classes: make(map[string]string),
		paths:   make(map[string]string),
		ids:     make(map[string]string),
	}
	app.store = NewStore(cfg.cookieMaxAge, app.newSession)
	app.store.OnEviction(func(s *Session, expired bool) {
		app.metrics.sessions.Dec()
		app.log.WithFields(logrus.Fields{"session": s.ID(), "expired": expired}).Debug("session deleted")
	})

	app.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		code := StatusCode(err)
		if code == http.StatusGone {
			w.Header().Set("HX-Refresh", "true")
		}
		http.Error(w, http.StatusText(code), code)
	}

	app.mux.Handle("GET "+app.cfg.prefix+"/sse", app.loadSession(false, http.HandlerFunc(app.serveSSE)))
	app.mux.HandleFunc("GET "+app.cfg.prefix+"/hxlive.js", serveScript)
	return app
}

func (app *App) newSession(id string) *Session {
	s := newSession(id, app.cfg.sseBufferSize, app.cfg.cacheSize, app.metrics)
	if app.cfg.state != nil {
		s.state = app.cfg.state.new(s, app.deps)
	}
	app.metrics.sessions.Inc()
	return s
}

// Prefix returns the path prefix of reload and SSE endpoints.
func (app *App) Prefix() string {
	return app.cfg.prefix
}

// Pages returns the registered page paths, sorted.
func (app *App) Pages() []string {
	app.mu.Lock()
	defer app.mu.Unlock()
	pages := append([]string(nil), app.pages...)
	sort.Strings(pages)
	return pages
}

// Store returns the session store.
func (app *App) Store() *Store {
	return app.store
}

// Encoder returns the props encoder.
func (app *App) Encoder() *Encoder {
	return app.encoder
}

// Logger returns the App's logger.
func (app *App) Logger() logrus.FieldLogger {
	return app.log
}

// Handler freezes the registry and returns the HTTP handler for pages and
// component routes.
func (app *App) Handler() http.Handler {
	app.mu.Lock()
	if !app.frozen {
		app.frozen = true
		app.deps.Freeze()
	}
	app.mu.Unlock()
	return app.mux
}

// Close stops the session store.
func (app *App) Close() {
	app.store.Close()
}

// register adds a component route. It panics on misuse since registration
// happens at startup.
func (app *App) register(name, path string, h http.Handler) string {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.frozen {
		panic(fmt.Sprintf("hxlive: component %q registered after Handler was called", name))
	}
	if name == "" || strings.ContainsAny(name, "/?#") {
		panic(fmt.Sprintf("hxlive: invalid component name %q", name))
	}
	if _, exists := app.classes[name]; exists {
		panic(fmt.Sprintf("hxlive: component %q already registered", name))
	}
	if path == "" {
		path = name
	}
	path = strings.Trim(path, "/")
	if path == "" || path == "sse" || path == "hxlive.js" || strings.ContainsAny(path, "?#{}") {
		panic(fmt.Sprintf("hxlive: invalid path %q for component %q", path, name))
	}
	if other, exists := app.paths[path]; exists {
		panic(fmt.Sprintf("hxlive: path collision for %q between %q and %q", path, other, name))
	}
	app.classes[name] = path
	app.paths[path] = name

	route := app.cfg.prefix + "/" + path
	chain := app.loadSession(false, app.parseForm(app.checkCSRF(h)))
	app.mux.Handle("GET "+route, chain)
	app.mux.Handle("POST "+route, chain)
	return route
}

func (app *App) claimID(id, name string) {
	app.mu.Lock()
	defer app.mu.Unlock()
	if other, exists := app.ids[id]; exists {
		panic(fmt.Sprintf("hxlive: id %q used by both %q and %q", id, other, name))
	}
	app.ids[id] = name
}

func (app *App) registerPage(path string, h http.Handler) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.frozen {
		panic(fmt.Sprintf("hxlive: page %q registered after Handler was called", path))
	}
	if !strings.HasPrefix(path, "/") {
		panic(fmt.Sprintf("hxlive: page path %q must start with /", path))
	}
	if strings.HasPrefix(path, app.cfg.prefix+"/") {
		panic(fmt.Sprintf("hxlive: page path %q collides with prefix %q", path, app.cfg.prefix))
	}
	for _, p := range app.pages {
		if p == path {
			panic(fmt.Sprintf("hxlive: page %q already registered", path))
		}
	}
	app.pages = append(app.pages, path)

	pattern := path
	if path == "/" {
		pattern = "/{$}"
	}
	app.mux.Handle("GET "+pattern, app.loadSession(true, h))
}

// fail reports err through OnError and logs it.
func (app *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	entry := app.log.WithFields(logrus.Fields{"path": r.URL.Path, "code": code})
	if u := CurrentURL(r); u != "" {
		entry = entry.WithField("page", u)
	}
	if s, ok := sessionFrom(r.Context()); ok {
		entry = entry.WithField("session", s.ID())
	}
	if code >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Debug("request rejected")
	}
	app.OnError(w, r, err)
}

type ctxKey int

const (
	sessionKey ctxKey = iota
	formKey
	requestKey
	builderKey
)

func sessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok
}

// SessionFrom returns the session loaded for the request.
func SessionFrom(r *http.Request) (*Session, bool) {
	return sessionFrom(r.Context())
}

// loadSession resolves the session cookie. Pages create a session when the
// cookie is missing or stale; component and SSE routes fail with
// ErrNoSession instead, which tells the browser to reload the page.
func (app *App) loadSession(create bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *Session
		if c, err := r.Cookie(app.cfg.cookieName); err == nil {
			sess, _ = app.store.Get(c.Value)
		}
		if sess == nil {
			if !create {
				app.fail(w, r, ErrNoSession)
				return
			}
			sess = app.store.Create()
			app.log.WithField("session", sess.ID()).Debug("session created")
		}
		if create {
			http.SetCookie(w, &http.Cookie{
				Name:     app.cfg.cookieName,
				Value:    sess.ID(),
				Path:     "/",
				MaxAge:   int(app.cfg.cookieMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}
