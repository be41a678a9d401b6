package hxlive

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/pthm/hxlive/lib/node"
	"github.com/pthm/hxlive/lib/state"
)

// Builder is the request-scoped rendering context.
//
// A Builder is created for every page and component request and passed to
// views. It tracks the session, the stack of parent nodes that new nodes
// attach to, the component currently rendering and the response side effects
// the view asked for. Builders are not safe for concurrent use.
//
// Errors from node construction do not need to be checked at every call:
// the first one is recorded and reported by Err, and the request fails with
// it once the view returns.
type Builder struct {
	ctx       context.Context
	app       *App
	session   *Session
	req       *Request
	stack     []*node.Node
	roots     []*node.Node
	component string
	effects   effects
	err       error
}

type effects struct {
	flashes     []Flash
	headers     map[string]string
	trigger     string
	triggerData map[string]any
	redirect    string
	status      int
}

func newBuilder(ctx context.Context, app *App, sess *Session, req *Request) *Builder {
	b := &Builder{app: app, session: sess, req: req}
	b.ctx = context.WithValue(ctx, builderKey, b)
	return b
}

// FromContext returns the Builder rendering the current request. templ
// components embedded with Builder.Templ receive a context that carries it.
func FromContext(ctx context.Context) (*Builder, error) {
	if ctx == nil {
		return nil, ErrUninitializedContext
	}
	b, ok := ctx.Value(builderKey).(*Builder)
	if !ok || b == nil {
		return nil, ErrUninitializedContext
	}
	return b, nil
}

// Context returns the Builder's context.
func (b *Builder) Context() context.Context {
	return b.ctx
}

// Session returns the session the Builder renders for.
func (b *Builder) Session() *Session {
	return b.session
}

// Request returns the request being served. It is never nil.
func (b *Builder) Request() *Request {
	if b.req == nil {
		b.req = &Request{form: &Form{Values: url.Values{}}}
	}
	return b.req
}

// ComponentID returns the container id of the component whose view is
// running, or "" outside component views.
func (b *Builder) ComponentID() string {
	return b.component
}

// Err returns the first error recorded while building.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

// El constructs an element of the given kind under the current parent.
//
// On failure the error is recorded and a detached node is returned so view
// code can carry on; the request fails when the view returns.
func (b *Builder) El(kind *node.Kind, opts ...node.Opt) *node.Node {
	if b.session == nil {
		b.fail(ErrUninitializedContext)
		return node.TextNode("")
	}
	parent := b.Parent()
	n, err := node.New(kind, parent, b.env(), opts...)
	if err != nil {
		b.fail(err)
		return node.TextNode("")
	}
	if parent == nil {
		b.roots = append(b.roots, n)
	}
	return n
}

// Text adds an escaped text run under the current parent.
func (b *Builder) Text(s string) *node.Node {
	return b.attach(node.TextNode(s))
}

// Textf is Text with formatting.
func (b *Builder) Textf(format string, args ...any) *node.Node {
	return b.attach(node.TextNode(fmt.Sprintf(format, args...)))
}

// Raw adds s verbatim under the current parent. s must be safe markup.
func (b *Builder) Raw(s string) *node.Node {
	return b.attach(node.RawNode(s))
}

// Templ embeds a templ component under the current parent. It is rendered
// with the Builder's context, so it can call FromContext.
func (b *Builder) Templ(c templ.Component) *node.Node {
	return b.attach(node.Embed(c))
}

func (b *Builder) attach(n *node.Node) *node.Node {
	if b.session == nil {
		b.fail(ErrUninitializedContext)
		return n
	}
	if parent := b.Parent(); parent != nil {
		if err := parent.Append(n); err != nil {
			b.fail(err)
		}
		return n
	}
	b.roots = append(b.roots, n)
	return n
}

// Enter makes n the parent of nodes constructed until the matching Exit.
func (b *Builder) Enter(n *node.Node) error {
	if err := n.CanEnter(); err != nil {
		b.fail(err)
		return err
	}
	b.stack = append(b.stack, n)
	return nil
}

// Exit leaves the scope opened by the last Enter.
func (b *Builder) Exit() {
	if len(b.stack) == 0 {
		b.fail(fmt.Errorf("%w: Exit without Enter", ErrMisuse))
		return
	}
	b.stack[len(b.stack)-1] = nil
	b.stack = b.stack[:len(b.stack)-1]
}

// Parent returns the current parent node, nil at the top level.
func (b *Builder) Parent() *node.Node {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// With runs fn with n as the current parent and returns n. The scope is left
// even if fn panics. fn does not run if n cannot have children.
//
//	b.With(b.El(node.Ul), func() {
//	    for _, item := range items {
//	        b.El(node.Li, node.Text(item))
//	    }
//	})
func (b *Builder) With(n *node.Node, fn func()) *node.Node {
	if err := b.Enter(n); err != nil {
		return n
	}
	defer b.Exit()
	fn()
	return n
}

// Triggered reports the DOM event name if the element n caused the current
// reload. n must have an id.
func (b *Builder) Triggered(n *node.Node) (string, bool) {
	id := n.ID()
	if id == "" {
		b.fail(fmt.Errorf("%w: Triggered needs an element with an id", ErrMisuse))
		return "", false
	}
	req := b.Request()
	if req.tid == "" || req.tid != id {
		return "", false
	}
	return req.evt, true
}

// Reload asks the browser to reload the components with the given container
// ids. Without ids the current component is reloaded.
func (b *Builder) Reload(ids ...string) {
	if b.session == nil {
		b.fail(ErrUninitializedContext)
		return
	}
	if len(ids) == 0 {
		if b.component == "" {
			b.fail(fmt.Errorf("%w: Reload outside a component view", ErrMisuse))
			return
		}
		ids = []string{b.component}
	}
	for _, id := range ids {
		b.session.Reload(id)
	}
}

// Flash adds a toast notification to the response.
func (b *Builder) Flash(level, message string) {
	b.effects.flashes = append(b.effects.flashes, Flash{Level: level, Message: message})
}

// Trigger emits an event via the HX-Trigger header. Data, when given, is
// delivered as the event detail.
func (b *Builder) Trigger(event string, data ...map[string]any) {
	b.effects.trigger = event
	if len(data) > 0 {
		b.effects.triggerData = data[0]
	}
}

// Redirect makes the browser navigate to url via HX-Redirect.
func (b *Builder) Redirect(url string) {
	b.effects.redirect = url
}

// Header sets a response header.
func (b *Builder) Header(key, value string) {
	if b.effects.headers == nil {
		b.effects.headers = make(map[string]string)
	}
	b.effects.headers[key] = value
}

// Status sets the response status code.
func (b *Builder) Status(code int) {
	b.effects.status = code
}

// render writes the root nodes to w.
func (b *Builder) render(w io.Writer) error {
	for _, n := range b.roots {
		if err := n.Render(b.ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// flush resets the tree slots at the end of a render pass.
func (b *Builder) flush() {
	clear(b.stack)
	b.stack = b.stack[:0]
	b.roots = nil
	b.component = ""
}

func (b *Builder) env() node.Env {
	return formEnv{b.Request()}
}

// formEnv exposes the submitted form to node construction. Requests that
// submitted nothing leave controls at their built-in values.
type formEnv struct{ r *Request }

func (e formEnv) Form() url.Values {
	if !e.r.submitted || e.r.form == nil {
		return nil
	}
	return e.r.form.Values
}

// StateOf returns the session's state container of type S.
func StateOf[S any](sess *Session) (*state.Container[S], error) {
	if sess == nil {
		return nil, ErrUninitializedContext
	}
	c, ok := sess.state.(*state.Container[S])
	if !ok {
		return nil, ErrNoState
	}
	return c, nil
}

// Get returns a copy of the session state.
func Get[S any](b *Builder) (S, error) {
	c, err := StateOf[S](b.session)
	if err != nil {
		var zero S
		b.fail(err)
		return zero, err
	}
	return c.Get(), nil
}

// Update mutates the session state inside a bracket. Components that declared
// a dependency on a changed field are reloaded once fn returns. If fn fails
// or panics the state is left as it was.
//
//	err := hxlive.Update(b, func(s *AppState) error {
//	    s.Count++
//	    return nil
//	})
func Update[S any](b *Builder, fn func(s *S) error) error {
	c, err := StateOf[S](b.session)
	if err != nil {
		b.fail(err)
		return err
	}
	outer := b.ctx
	defer func() { b.ctx = outer }()

	_, err = c.Update(b.ctx, func(ctx context.Context, s *S) error {
		b.ctx = ctx
		return fn(s)
	})
	if IsMisuse(err) {
		b.fail(err)
	}
	return err
}
