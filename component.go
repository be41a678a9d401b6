package hxlive

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pthm/hxlive/lib/node"
	"github.com/pthm/hxlive/lib/state"
)

// LoaderClass marks component container elements. The client script finds
// the container of an element with closest("." + LoaderClass).
const LoaderClass = "hxlive-loader"

// Query parameters of reload URLs.
const (
	paramComponentID = "__cid__"
	paramProps       = "p"
	fieldTriggerID   = "__tid__"
	fieldEvent       = "__evt__"
)

// ComponentOption configures a component at registration.
type ComponentOption func(*componentConfig)

type componentConfig struct {
	id        string
	path      string
	class     string
	preload   func(b *Builder)
	swap      SwapMode
	reloadOn  []state.Field
	sensitive bool
}

// WithID gives every instance of the component the same container id. It is
// required for WithReloadOn, since state changes are routed by id.
func WithID(id string) ComponentOption {
	return func(c *componentConfig) { c.id = id }
}

// WithPath overrides the route path, which defaults to the component name.
func WithPath(path string) ComponentOption {
	return func(c *componentConfig) { c.path = path }
}

// WithClass adds CSS classes to the container element.
func WithClass(class string) ComponentOption {
	return func(c *componentConfig) { c.class = class }
}

// WithPreload renders placeholder content into the container. It shows
// until the first load of the component replaces it.
func WithPreload(fn func(b *Builder)) ComponentOption {
	return func(c *componentConfig) { c.preload = fn }
}

// WithSwap sets how reloads are placed into the container.
func WithSwap(mode SwapMode) ComponentOption {
	return func(c *componentConfig) { c.swap = mode }
}

// WithReloadOn reloads the component whenever a commit changes one of the
// fields. The fields must belong to the schema passed to WithState.
func WithReloadOn(fields ...state.Field) ComponentOption {
	return func(c *componentConfig) { c.reloadOn = append(c.reloadOn, fields...) }
}

// WithEncryptedProps encrypts props in reload URLs instead of only signing
// them. Use it for props the client must not read.
func WithEncryptedProps() ComponentOption {
	return func(c *componentConfig) { c.sensitive = true }
}

// instance is a rendered component: the view bound to its props.
type instance struct {
	id    string
	class string
	run   func(b *Builder) error
}

// Def is a registered component class.
type Def[P any] struct {
	app   *App
	name  string
	route string
	cfg   componentConfig
	view  View[P]
}

// Register declares a component. It panics on invalid options and when
// called after App.Handler, so misconfiguration surfaces at startup.
//
//	var Counter = hxlive.Register(app, "counter", counterView,
//	    hxlive.WithID("counter"),
//	    hxlive.WithReloadOn(StateFields.Count),
//	)
func Register[P any](app *App, name string, view View[P], opts ...ComponentOption) *Def[P] {
	cfg := componentConfig{swap: SwapReplace}
	for _, opt := range opts {
		opt(&cfg)
	}
	if view == nil {
		panic(fmt.Sprintf("hxlive: component %q has no view", name))
	}
	if !cfg.swap.valid() {
		panic(fmt.Sprintf("hxlive: component %q has invalid swap mode %q", name, cfg.swap))
	}
	if len(cfg.reloadOn) > 0 {
		if cfg.id == "" {
			panic(fmt.Sprintf("hxlive: component %q uses WithReloadOn without WithID", name))
		}
		if app.cfg.state == nil {
			panic(fmt.Sprintf("hxlive: component %q uses WithReloadOn but the app has no state", name))
		}
		for _, f := range cfg.reloadOn {
			if !app.cfg.state.owns(f) {
				panic(fmt.Sprintf("hxlive: component %q depends on field %s of another schema", name, f))
			}
		}
	}

	d := &Def[P]{app: app, name: name, cfg: cfg, view: view}
	d.route = app.register(name, cfg.path, http.HandlerFunc(d.serveHTTP))
	if cfg.id != "" {
		app.claimID(cfg.id, name)
	}
	for _, f := range cfg.reloadOn {
		if err := app.deps.Register(f, cfg.id); err != nil {
			panic(fmt.Sprintf("hxlive: component %q: %v", name, err))
		}
	}
	return d
}

// Name returns the component name.
func (d *Def[P]) Name() string {
	return d.name
}

// Route returns the reload endpoint path.
func (d *Def[P]) Route() string {
	return d.route
}

// Render places an instance of the component under the Builder's current
// parent and returns its container element. The view itself runs when the
// browser loads the container.
func (d *Def[P]) Render(b *Builder, props P) *node.Node {
	if b.session == nil {
		b.fail(ErrUninitializedContext)
		return node.TextNode("")
	}
	id := d.cfg.id
	if id == "" {
		id = b.session.nextComponentID()
	}
	encoded, err := d.app.encoder.Encode(d.name, props, d.cfg.sensitive)
	if err != nil {
		b.fail(fmt.Errorf("hxlive: encode props of %q: %w", d.name, err))
		return node.TextNode("")
	}
	b.session.addInstance(d.bind(id, props))

	loader := b.El(node.Div,
		node.ID(id),
		node.Class(LoaderClass, d.cfg.class),
		node.HX(d.descriptor(id, encoded)),
	)
	if d.cfg.preload != nil {
		b.With(loader, func() { d.cfg.preload(b) })
	}
	return loader
}

// URL returns the reload URL of an instance with the given container id.
func (d *Def[P]) URL(id string, props P) (string, error) {
	encoded, err := d.app.encoder.Encode(d.name, props, d.cfg.sensitive)
	if err != nil {
		return "", err
	}
	return d.url(id, encoded), nil
}

func (d *Def[P]) url(id, encoded string) string {
	q := url.Values{paramComponentID: {id}, paramProps: {encoded}}
	return d.route + "?" + q.Encode()
}

func (d *Def[P]) descriptor(id, encoded string) node.Descriptor {
	return node.Descriptor{
		Method:   http.MethodPost,
		URL:      d.url(id, encoded),
		Include:  "#" + d.app.cfg.csrfInputID + ", #" + id,
		Trigger:  "load, " + id,
		Swap:     d.cfg.swap.attr(),
		Encoding: "multipart/form-data",
	}
}

func (d *Def[P]) bind(id string, props P) *instance {
	return &instance{
		id:    id,
		class: d.name,
		run:   func(b *Builder) error { return d.view(b, props) },
	}
}

// resolve finds the instance a reload refers to: the one the session holds,
// or a fresh one rebuilt from the signed props.
func (d *Def[P]) resolve(ctx context.Context, sess *Session, id, encoded string) (*instance, error) {
	if id == "" {
		return nil, ErrStaleComponent
	}
	if d.cfg.id != "" && id != d.cfg.id {
		return nil, ErrStaleComponent
	}
	if inst, ok := sess.instance(id); ok && inst.class == d.name {
		return inst, nil
	}
	if encoded == "" {
		return nil, ErrStaleComponent
	}

	var props P
	if err := d.app.encoder.Decode(d.name, encoded, d.cfg.sensitive, &props); err != nil {
		return nil, wrapEncodingError(err)
	}
	if h, ok := any(&props).(Hydrater); ok {
		if err := h.Hydrate(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHydrationFailed, err)
		}
	}
	inst := d.bind(id, props)
	sess.addInstance(inst)
	return inst, nil
}

func (d *Def[P]) serveHTTP(w http.ResponseWriter, r *http.Request) {
	d.app.serveComponent(w, r, d.name, d.resolve)
}
