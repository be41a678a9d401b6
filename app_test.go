package hxlive

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pthm/hxlive/lib/node"
	"github.com/pthm/hxlive/lib/state"
)

type appState struct {
	Count int    `msgpack:"count"`
	Query string `msgpack:"query"`
}

var appSchema = state.NewSchema[appState]()

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	app := New(append([]Option{WithState(appSchema, nil), WithKey(testKey)}, opts...)...)
	t.Cleanup(app.Close)
	return app
}

type counterProps struct {
	Label string
}

// counterApp registers a counter that sets Count to 1 when its button is
// clicked, and a page rendering it.
func counterApp(t *testing.T, runs *atomic.Int32, opts ...Option) *App {
	t.Helper()
	app := newTestApp(t, opts...)
	counter := Register(app, "counter", func(b *Builder, p counterProps) error {
		runs.Add(1)
		s, err := Get[appState](b)
		if err != nil {
			return err
		}
		b.El(node.P, node.ID("value"), node.Textf("%s=%d", p.Label, s.Count))
		inc := b.El(node.Button, node.ID("inc"), node.Text("+1"))
		if _, ok := b.Triggered(inc); ok {
			return Update(b, func(s *appState) error {
				s.Count = 1
				return nil
			})
		}
		return nil
	}, WithID("counter"), WithReloadOn(appSchema.Field("count")))

	app.Page("/", func(b *Builder) error {
		counter.Render(b, counterProps{Label: "n"})
		return nil
	}, WithTitle("Counter"))
	return app
}

func TestPageDocument(t *testing.T) {
	var runs atomic.Int32
	app := counterApp(t, &runs)
	c := NewTestClient(app)

	page, err := c.Page("/")
	if err != nil {
		t.Fatal(err)
	}
	if !page.IsOK() {
		t.Fatalf("status = %d, want 200", page.StatusCode)
	}
	if !strings.HasPrefix(page.HTML, "<!DOCTYPE html><html lang=\"en\"><head>") {
		t.Errorf("document starts with %q", page.HTML[:min(60, len(page.HTML))])
	}

	csrf := c.CSRF()
	if csrf == "" {
		t.Fatal("no session after page load")
	}
	if !page.HTMLContainsAll(
		`<title>Counter</title>`,
		`src="`+DefaultPrefix+`/hxlive.js"`,
		`data-sse="`+DefaultPrefix+`/sse"`,
		`<input type="hidden" id="csrf" name="csrf" value="`+csrf+`">`,
		`<div id="toasts" class="toast-container"></div>`,
	) {
		t.Errorf("page is missing document parts:\n%s", page.HTML)
	}

	loaders := page.Loaders()
	u, ok := loaders["counter"]
	if !ok {
		t.Fatalf("Loaders() = %v, want a counter loader", loaders)
	}
	if !strings.HasPrefix(u, DefaultPrefix+"/counter?") || !strings.Contains(u, "__cid__=counter") {
		t.Errorf("loader url = %q", u)
	}
	if !page.HTMLContainsAll(`hx-trigger="load, counter"`, `hx-include="#csrf, #counter"`, `hx-swap="innerHTML transition:true"`) {
		t.Errorf("loader descriptor incomplete:\n%s", page.HTML)
	}
	if runs.Load() != 0 {
		t.Errorf("view ran %d times during page load, want 0", runs.Load())
	}

	// The cookie is reused.
	if _, err := c.Page("/"); err != nil {
		t.Fatal(err)
	}
	if c.CSRF() != csrf || app.Store().Len() != 1 {
		t.Errorf("second page load created a new session")
	}
}

func TestCountScenario(t *testing.T) {
	var runs atomic.Int32
	app := counterApp(t, &runs)
	c := NewTestClient(app)

	page, _ := c.Page("/")
	u := page.Loaders()["counter"]

	res, err := c.Reload(u, nil)
	if err != nil || !res.IsOK() {
		t.Fatalf("initial load: %v, status %d", err, res.StatusCode)
	}
	if !res.HTMLContains(`<p id="value">n=0</p>`) {
		t.Errorf("initial load HTML = %s", res.HTML)
	}

	sess := c.Session()
	res, _ = c.Trigger(u, "inc", "click", nil)
	if !res.IsOK() {
		t.Fatalf("trigger status = %d", res.StatusCode)
	}
	if diff := cmp.Diff([]string{"counter"}, sess.Pending()); diff != "" {
		t.Errorf("queue after first commit (-want +got):\n%s", diff)
	}
	if ev, ok := sess.tryNext(); !ok || ev.Component != "counter" {
		t.Fatalf("tryNext() = %+v, %v", ev, ok)
	}

	res, _ = c.Trigger(u, "inc", "click", nil)
	if !res.IsOK() {
		t.Fatalf("trigger status = %d", res.StatusCode)
	}
	if p := sess.Pending(); len(p) != 0 {
		t.Errorf("queue after unchanged commit = %v, want empty", p)
	}

	res, _ = c.Reload(u, nil)
	if !res.HTMLContains(`n=1`) {
		t.Errorf("reload after commit HTML = %s", res.HTML)
	}
}

func TestCSRFMismatch(t *testing.T) {
	var runs atomic.Int32
	app := counterApp(t, &runs)
	c := NewTestClient(app)
	page, _ := c.Page("/")
	u := page.Loaders()["counter"]

	tests := []struct {
		name string
		req  *TestRequestBuilder
	}{
		{"wrong token", NewTestRequest(http.MethodPost, u).WithFormValue("csrf", "forged")},
		{"missing token", NewTestRequest(http.MethodPost, u).WithoutCSRF()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := tt.req.Execute(c)
			if !res.HasStatus(http.StatusForbidden) {
				t.Errorf("status = %d, want 403", res.StatusCode)
			}
		})
	}
	if runs.Load() != 0 {
		t.Errorf("view ran %d times, want 0", runs.Load())
	}

	// GET reloads do not need the token.
	res, _ := NewTestRequest(http.MethodGet, u).Execute(c)
	if !res.IsOK() {
		t.Errorf("GET status = %d, want 200", res.StatusCode)
	}
}

type searchProps struct {
	Placeholder string
	Hydrated    bool `msgpack:"-"`
}

func (p *searchProps) Hydrate(ctx context.Context) error {
	if p.Placeholder == "fail" {
		return errors.New("backend down")
	}
	p.Hydrated = true
	return nil
}

func searchApp(t *testing.T, got *searchProps) *App {
	t.Helper()
	app := newTestApp(t)
	search := Register(app, "search", func(b *Builder, p searchProps) error {
		*got = p
		b.El(node.Input, node.ID("q"), node.Name("q"), node.Placeholder(p.Placeholder))
		q := b.Request().Form().String("q")
		b.El(node.P, node.ID("echo"), node.Text(q))
		if q != "" {
			b.Flash(FlashInfo, "searched "+q)
			b.Trigger("searched", map[string]any{"q": q})
		}
		return nil
	}, WithClass("search"))

	app.Page("/search", func(b *Builder) error {
		search.Render(b, searchProps{Placeholder: "Search"})
		search.Render(b, searchProps{Placeholder: "fail"})
		return nil
	})
	return app
}

func TestStickyReload(t *testing.T) {
	var got searchProps
	app := searchApp(t, &got)
	c := NewTestClient(app)
	page, _ := c.Page("/search")
	loaders := page.Loaders()
	if len(loaders) != 2 || loaders["cid_1"] == "" || loaders["cid_2"] == "" {
		t.Fatalf("Loaders() = %v, want cid_1 and cid_2", loaders)
	}
	if !page.HTMLContains(`class="hxlive-loader search"`) {
		t.Error("loader class missing")
	}

	res, _ := c.Reload(loaders["cid_1"], url.Values{"q": {"hello"}})
	if !res.IsOK() {
		t.Fatalf("status = %d, want 200: %s", res.StatusCode, res.HTML)
	}
	if !res.HTMLContainsAll(`name="q"`, `value="hello"`, `<p id="echo">hello</p>`) {
		t.Errorf("HTML = %s", res.HTML)
	}
	if !res.HasFlash(FlashInfo, "searched hello") {
		t.Errorf("flashes = %v", res.Flashes)
	}
	if !res.HasEvent("searched") {
		t.Errorf("events = %v", res.TriggeredEvents)
	}
	if got.Hydrated {
		t.Error("props held by the session were hydrated again")
	}
}

func TestReloadRebuildsFromProps(t *testing.T) {
	var got searchProps
	app := searchApp(t, &got)
	c := NewTestClient(app)
	page, _ := c.Page("/search")
	loaders := page.Loaders()

	c.Session().instances.Purge()

	res, _ := c.Reload(loaders["cid_1"], nil)
	if !res.IsOK() {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if got.Placeholder != "Search" || !got.Hydrated {
		t.Errorf("rebuilt props = %+v, want hydrated Search", got)
	}
	if c.Session().Instances() != 1 {
		t.Errorf("Instances() = %d, want the rebuilt instance stored", c.Session().Instances())
	}

	res, _ = c.Reload(loaders["cid_2"], nil)
	if !res.HasStatus(http.StatusInternalServerError) {
		t.Errorf("hydration failure status = %d, want 500", res.StatusCode)
	}
}

func TestReloadErrors(t *testing.T) {
	var got searchProps
	app := searchApp(t, &got)
	c := NewTestClient(app)
	page, _ := c.Page("/search")
	valid := page.Loaders()["cid_1"]
	route := DefaultPrefix + "/search"

	parsed, _ := url.Parse(valid)
	q := parsed.Query()
	q.Set("p", q.Get("p")[:len(q.Get("p"))-2]+"xx")
	tampered := route + "?" + q.Encode()

	tests := []struct {
		name    string
		url     string
		purge   bool
		want    int
		refresh bool
	}{
		{"unknown instance without props", route + "?__cid__=cid_99", false, http.StatusGone, true},
		{"no component id", route, false, http.StatusGone, true},
		{"tampered props", tampered, true, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.purge {
				c.Session().instances.Purge()
			}
			res, _ := c.Reload(tt.url, nil)
			if !res.HasStatus(tt.want) {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.want)
			}
			if got := res.HasHeader("HX-Refresh", "true"); got != tt.refresh {
				t.Errorf("HX-Refresh set = %v, want %v", got, tt.refresh)
			}
		})
	}

	t.Run("no session", func(t *testing.T) {
		fresh := NewTestClient(app)
		res, _ := NewTestRequest(http.MethodPost, valid).WithoutCSRF().Execute(fresh)
		if !res.HasStatus(http.StatusGone) {
			t.Errorf("status = %d, want 410", res.StatusCode)
		}
	})
}

func TestViewMisuse(t *testing.T) {
	app := newTestApp(t)
	broken := Register(app, "broken", func(b *Builder, _ struct{}) error {
		b.With(b.El(node.Br), func() {
			b.Text("never")
		})
		return nil
	})
	failing := Register(app, "failing", func(b *Builder, _ struct{}) error {
		return ErrNotFound
	})
	app.Page("/", func(b *Builder) error {
		broken.Render(b, struct{}{})
		failing.Render(b, struct{}{})
		return nil
	})

	c := NewTestClient(app)
	page, _ := c.Page("/")
	loaders := page.Loaders()

	res, _ := c.Reload(loaders["cid_1"], nil)
	if !res.HasStatus(http.StatusInternalServerError) {
		t.Errorf("misuse status = %d, want 500", res.StatusCode)
	}
	res, _ = c.Reload(loaders["cid_2"], nil)
	if !res.HasStatus(http.StatusNotFound) {
		t.Errorf("view error status = %d, want 404", res.StatusCode)
	}
}

func TestPageViewError(t *testing.T) {
	app := newTestApp(t)
	app.Page("/", func(b *Builder) error {
		b.El(node.Input, node.Value("no name"))
		return nil
	})
	c := NewTestClient(app)
	res, _ := c.Page("/")
	if !res.HasStatus(http.StatusInternalServerError) {
		t.Errorf("status = %d, want 500", res.StatusCode)
	}
}

func TestOnErrorOverride(t *testing.T) {
	var runs atomic.Int32
	app := counterApp(t, &runs)
	var seen error
	app.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		seen = err
		w.WriteHeader(http.StatusTeapot)
	}
	c := NewTestClient(app)
	c.Page("/")

	res, _ := NewTestRequest(http.MethodPost, DefaultPrefix+"/counter?__cid__=counter").WithoutCSRF().Execute(c)
	if !res.HasStatus(http.StatusTeapot) || !IsCSRF(seen) {
		t.Errorf("status = %d, err = %v", res.StatusCode, seen)
	}
}

func TestRegisterPanics(t *testing.T) {
	otherSchema := state.NewSchema[struct {
		Other int `msgpack:"other"`
	}]()
	noop := func(b *Builder, _ struct{}) error { return nil }

	tests := []struct {
		name string
		fn   func()
	}{
		{"duplicate name", func() {
			app := newTestApp(t)
			Register(app, "a", noop)
			Register(app, "a", noop)
		}},
		{"path collision", func() {
			app := newTestApp(t)
			Register(app, "a", noop, WithPath("x"))
			Register(app, "b", noop, WithPath("x"))
		}},
		{"duplicate explicit id", func() {
			app := newTestApp(t)
			Register(app, "a", noop, WithID("x"))
			Register(app, "b", noop, WithID("x"))
		}},
		{"reload on without id", func() {
			app := newTestApp(t)
			Register(app, "a", noop, WithReloadOn(appSchema.Field("count")))
		}},
		{"reload on without state", func() {
			app := New(WithKey(testKey))
			defer app.Close()
			Register(app, "a", noop, WithID("a"), WithReloadOn(appSchema.Field("count")))
		}},
		{"field of another schema", func() {
			app := newTestApp(t)
			Register(app, "a", noop, WithID("a"), WithReloadOn(otherSchema.Field("other")))
		}},
		{"after handler", func() {
			app := newTestApp(t)
			app.Handler()
			Register(app, "a", noop)
		}},
		{"invalid swap", func() {
			app := newTestApp(t)
			Register(app, "a", noop, WithSwap("outerHTML"))
		}},
		{"reserved path", func() {
			app := newTestApp(t)
			Register(app, "sse", noop)
		}},
		{"page under prefix", func() {
			app := newTestApp(t)
			app.Page(DefaultPrefix+"/x", func(b *Builder) error { return nil })
		}},
		{"zero component cache", func() {
			New(WithKey(testKey), WithComponentCacheSize(0))
		}},
		{"zero sse tick", func() {
			New(WithKey(testKey), WithSSETick(0))
		}},
		{"negative sse tick", func() {
			New(WithKey(testKey), WithSSETick(-time.Second))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("did not panic")
				}
				if msg, ok := r.(string); !ok || !strings.HasPrefix(msg, "hxlive: ") {
					t.Errorf("panic = %v, want an hxlive: message", r)
				}
			}()
			tt.fn()
		})
	}
}

func TestSwapModes(t *testing.T) {
	app := newTestApp(t)
	noop := func(b *Builder, _ struct{}) error { return nil }
	appendLog := Register(app, "log", noop, WithSwap(SwapAppend), WithPreload(func(b *Builder) {
		b.El(node.Span, node.Indicator(), node.Text("loading"))
	}))
	prepend := Register(app, "feed", noop, WithSwap(SwapPrepend), WithEncryptedProps())

	res, err := TestRender(app, func(b *Builder) error {
		appendLog.Render(b, struct{}{})
		prepend.Render(b, struct{}{})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.HTMLContainsAll(
		`hx-swap="beforeend transition:true"`,
		`hx-swap="afterbegin transition:true"`,
		`<span class="htmx-indicator">loading</span>`,
	) {
		t.Errorf("HTML = %s", res.HTML)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	var runs atomic.Int32
	app := counterApp(t, &runs, WithMetrics(reg))
	c := NewTestClient(app)
	page, _ := c.Page("/")
	u := page.Loaders()["counter"]

	c.Trigger(u, "inc", "click", nil)
	NewTestRequest(http.MethodPost, u).WithoutCSRF().Execute(c)

	if got := testutil.ToFloat64(app.metrics.sessions); got != 1 {
		t.Errorf("sessions_active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(app.metrics.reloads.WithLabelValues("counter", "200")); got != 1 {
		t.Errorf("reloads_total{200} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(app.metrics.notifications); got != 1 {
		t.Errorf("state_notifications_total = %v, want 1", got)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("GatherAndCount() = %d, %v", n, err)
	}
}
