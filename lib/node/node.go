// Package node builds trees of HTML elements and renders them.
//
// A Node is created with New from a Kind (the tag's attribute schema) and a
// list of options. Nodes validate themselves at construction: unknown
// attributes, text content combined with children and nesting under
// self-closing tags all fail with ErrMisuse or ErrValidation.
//
// Attribute values and text content are always escaped. The only way to emit
// markup verbatim is the Unsafe option (and the script and style kinds, which
// are unsafe by default). Treat every Unsafe call as an injection boundary.
//
// Node implements templ.Component, so trees can be rendered inside templ
// templates and templ components can be embedded in trees with Embed.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// Sentinel errors for node construction.
var (
	ErrMisuse     = errors.New("node: misuse")
	ErrValidation = errors.New("node: validation failed")
)

// Env supplies request data read while a node is constructed.
//
// Form returns the fields submitted with the current request, or nil when
// the request carried no form. Input, select and textarea nodes take their
// value from it so forms stay filled in across reloads.
type Env interface {
	Form() url.Values
}

type attr struct {
	name  string
	value string
	bare  bool
}

// Node is an HTML element, a text run or an embedded templ component.
type Node struct {
	kind     *Kind
	parent   *Node
	attrs    []attr
	text     string
	hasText  bool
	unsafe   bool
	children []*Node
	embed    templ.Component

	values    []string // select: current selection
	pending   []*Node  // children passed as an option
	reloadOn  []string
	indicator bool
	err       error
}

// New constructs a node of the given kind.
//
// When parent is non-nil the node is appended to it. env may be nil, in which
// case form fields are not read.
func New(kind *Kind, parent *Node, env Env, opts ...Opt) (*Node, error) {
	if kind == nil {
		return nil, fmt.Errorf("%w: nil kind", ErrMisuse)
	}
	n := &Node{kind: kind, parent: parent, unsafe: kind.Unsafe}
	for _, name := range sortedKeys(kind.Events) {
		n.put(attr{name: name, value: kind.Events[name]})
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.err != nil {
		return nil, n.err
	}

	if err := n.bind(env); err != nil {
		return nil, err
	}
	n.wireEvents()
	if n.indicator {
		n.addClass(IndicatorClass)
	}

	pending := n.pending
	n.pending = nil
	for _, child := range pending {
		if err := n.Append(child); err != nil {
			return nil, err
		}
	}
	if parent != nil {
		if err := parent.Append(n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// TextNode returns an escaped text run.
func TextNode(s string) *Node {
	return &Node{text: s, hasText: true}
}

// RawNode returns a text run rendered verbatim. The caller is responsible for
// s being safe markup.
func RawNode(s string) *Node {
	return &Node{text: s, hasText: true, unsafe: true}
}

// Embed wraps a templ component so it can be placed in a tree.
func Embed(c templ.Component) *Node {
	return &Node{embed: c}
}

// CanEnter reports whether n can take children.
func (n *Node) CanEnter() error {
	switch {
	case n.kind == nil:
		return fmt.Errorf("%w: text and embedded nodes cannot have children", ErrMisuse)
	case n.kind.SelfClosing:
		return fmt.Errorf("%w: <%s> is self-closing and cannot have children", ErrMisuse, n.kind.Tag)
	case n.hasText:
		return fmt.Errorf("%w: <%s> has text content and cannot also have children", ErrMisuse, n.kind.Tag)
	}
	return nil
}

// Append adds child as the last child of n.
func (n *Node) Append(child *Node) error {
	if err := n.CanEnter(); err != nil {
		return err
	}
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// Kind returns the node's kind, nil for text runs and embedded components.
func (n *Node) Kind() *Kind { return n.kind }

// Tag returns the element name, or "" for text runs and embedded components.
func (n *Node) Tag() string {
	if n.kind == nil {
		return ""
	}
	return n.kind.Tag
}

// Parent returns the node n was attached to.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes.
func (n *Node) Children() []*Node { return n.children }

// Text returns the node's text content.
func (n *Node) Text() string { return n.text }

// ID returns the id attribute.
func (n *Node) ID() string {
	v, _ := n.Attr("id")
	return v
}

// Attr returns the value of the named attribute. Bare attributes have the
// value "".
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.name == name {
			return a.value, true
		}
	}
	return "", false
}

// AttrNames returns the names of the attributes n renders, in render order.
func (n *Node) AttrNames() []string {
	if len(n.attrs) == 0 {
		return nil
	}
	names := make([]string, len(n.attrs))
	for i, a := range n.attrs {
		names[i] = a.name
	}
	return names
}

// Value returns the current value of a form control: the selection of a
// select, the content of a textarea and the value attribute otherwise.
func (n *Node) Value() string {
	if n.kind != nil {
		switch n.kind.value {
		case valueSelect:
			if len(n.values) > 0 {
				return n.values[0]
			}
			return ""
		case valueTextarea:
			return n.text
		}
	}
	v, _ := n.Attr("value")
	return v
}

// Values returns every selected value of a select, or the single Value of
// other controls.
func (n *Node) Values() []string {
	if n.kind != nil && n.kind.value == valueSelect {
		return slices.Clone(n.values)
	}
	if v := n.Value(); v != "" {
		return []string{v}
	}
	return nil
}

// Render implements templ.Component.
func (n *Node) Render(ctx context.Context, w io.Writer) error {
	if n.embed != nil {
		return n.embed.Render(ctx, w)
	}
	if n.kind == nil {
		_, err := io.WriteString(w, n.content())
		return err
	}

	var open strings.Builder
	open.WriteString("<")
	open.WriteString(n.kind.Tag)
	for _, a := range n.attrs {
		open.WriteString(" ")
		open.WriteString(a.name)
		if !a.bare {
			open.WriteString(`="`)
			open.WriteString(templ.EscapeString(a.value))
			open.WriteString(`"`)
		}
	}
	open.WriteString(">")
	if _, err := io.WriteString(w, open.String()); err != nil {
		return err
	}
	if n.kind.SelfClosing {
		return nil
	}

	if n.hasText {
		if _, err := io.WriteString(w, n.content()); err != nil {
			return err
		}
	} else {
		for _, c := range n.children {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "</"+n.kind.Tag+">")
	return err
}

// String renders n to a string, ignoring errors from embedded components.
func (n *Node) String() string {
	var sb strings.Builder
	_ = n.Render(context.Background(), &sb)
	return sb.String()
}

func (n *Node) content() string {
	if n.unsafe {
		return n.text
	}
	return templ.EscapeString(n.text)
}

func (n *Node) fail(err error) {
	if n.err == nil {
		n.err = err
	}
}

// set validates and stores an attribute. nil and false remove it; true makes
// it bare.
func (n *Node) set(name string, v any) {
	if !n.kind.Allows(name) {
		n.fail(fmt.Errorf("%w: <%s> has no attribute %q", ErrValidation, n.kind.Tag, name))
		return
	}
	switch v := v.(type) {
	case nil:
		n.remove(name)
	case bool:
		if v {
			n.put(attr{name: name, bare: true})
		} else {
			n.remove(name)
		}
	default:
		s, err := toString(v)
		if err != nil {
			n.fail(fmt.Errorf("%w: <%s> attribute %q: %v", ErrValidation, n.kind.Tag, name, err))
			return
		}
		n.put(attr{name: name, value: s})
	}
}

func (n *Node) put(a attr) {
	for i := range n.attrs {
		if n.attrs[i].name == a.name {
			n.attrs[i] = a
			return
		}
	}
	n.attrs = append(n.attrs, a)
}

func (n *Node) remove(name string) {
	n.attrs = slices.DeleteFunc(n.attrs, func(a attr) bool { return a.name == name })
}

func (n *Node) addClass(class string) {
	if cur, ok := n.Attr("class"); ok && cur != "" {
		n.put(attr{name: "class", value: cur + " " + class})
		return
	}
	n.put(attr{name: "class", value: class})
}

func (n *Node) clearEvents() {
	n.attrs = slices.DeleteFunc(n.attrs, func(a attr) bool { return isEvent(a.name) })
}

// bind reads the submitted form into form controls.
func (n *Node) bind(env Env) error {
	var form url.Values
	if env != nil {
		form = env.Form()
	}
	name, _ := n.Attr("name")

	switch n.kind.value {
	case valueInput:
		typ, _ := n.Attr("type")
		value, hasValue := n.Attr("value")
		if value != "" && name == "" && textLike(typ) {
			return fmt.Errorf("%w: <input> with a value requires a name", ErrValidation)
		}
		if name == "" || form == nil {
			return nil
		}
		switch typ {
		case "checkbox", "radio":
			own := value
			if !hasValue {
				own = "on"
			}
			n.set("checked", slices.Contains(form[name], own))
		case "file":
		default:
			if vs, ok := form[name]; ok && len(vs) > 0 {
				n.put(attr{name: "value", value: vs[0]})
			}
		}

	case valueSelect:
		if len(n.values) > 0 && n.values[0] != "" && name == "" {
			return fmt.Errorf("%w: <select> with a value requires a name", ErrValidation)
		}
		if name != "" && form != nil {
			if vs, ok := form[name]; ok {
				n.values = slices.Clone(vs)
			}
		}

	case valueTextarea:
		if name != "" && form != nil {
			if vs, ok := form[name]; ok && len(vs) > 0 {
				n.text, n.hasText = vs[0], true
			}
		}

	case valueOption:
		sel := n.closest(Select)
		if sel == nil || len(sel.values) == 0 {
			return nil
		}
		own, ok := n.Attr("value")
		if !ok {
			own = n.text
		}
		n.set("selected", slices.Contains(sel.values, own))
	}
	return nil
}

// wireEvents applies form-ancestor clearing and ReloadOn.
func (n *Node) wireEvents() {
	if n.kind == Button {
		if _, ok := n.Attr("popovertarget"); ok {
			n.remove("onclick")
		}
	}
	if n.kind != Button && n.closest(Form) != nil {
		n.clearEvents()
	}
	if len(n.reloadOn) == 0 {
		return
	}
	n.clearEvents()
	for _, event := range n.reloadOn {
		script := ReloadScript
		switch event {
		case "oninput", "onkeydown", "onkeyup":
			script = ThrottledReloadScript
		}
		n.put(attr{name: event, value: script})
	}
}

func (n *Node) closest(kind *Kind) *Node {
	for p := n.parent; p != nil; p = p.parent {
		if p.kind == kind {
			return p
		}
	}
	return nil
}

func textLike(typ string) bool {
	switch typ {
	case "checkbox", "radio", "submit", "reset", "button", "image", "file":
		return false
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
