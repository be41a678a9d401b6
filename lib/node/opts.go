package node

import (
	"fmt"
	"strings"

	"github.com/a-h/templ"
	"github.com/spf13/cast"
)

// Opt configures a node under construction.
type Opt func(*Node)

var renames = map[string]string{
	"class_":   "class",
	"dir_":     "dir",
	"async_":   "async",
	"type_":    "type",
	"for_":     "for",
	"content_": "content",
}

// AttrName maps a Go-friendly attribute name to its HTML spelling: the
// reserved-word forms (class_, for_, type_, dir_, async_, content_) lose the
// trailing underscore and any other underscore becomes a hyphen, so
// aria_label is aria-label.
func AttrName(field string) string {
	if name, ok := renames[field]; ok {
		return name
	}
	return strings.ReplaceAll(field, "_", "-")
}

func toString(v any) (string, error) {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return cast.ToStringE(v)
}

// Set sets an attribute. The name goes through AttrName. A nil or false
// value removes the attribute; true renders it bare.
func Set(name string, value any) Opt {
	return func(n *Node) { n.set(AttrName(name), value) }
}

// Attrs sets every attribute of a templ attribute map, in sorted order.
func Attrs(attrs templ.Attributes) Opt {
	return func(n *Node) {
		for _, name := range sortedKeys(attrs) {
			n.set(AttrName(name), attrs[name])
		}
	}
}

// ID sets the id attribute.
func ID(id string) Opt { return Set("id", id) }

// Class sets the class attribute. Multiple classes are joined with spaces.
func Class(classes ...string) Opt {
	return func(n *Node) {
		var parts []string
		for _, c := range classes {
			if c = strings.TrimSpace(c); c != "" {
				parts = append(parts, c)
			}
		}
		if len(parts) == 0 {
			return
		}
		n.set("class", strings.Join(parts, " "))
	}
}

// Name sets the name attribute of a form control.
func Name(name string) Opt { return Set("name", name) }

// Type sets the type attribute.
func Type(typ string) Opt { return Set("type", typ) }

// Href sets the href attribute.
func Href(href string) Opt { return Set("href", href) }

// Placeholder sets the placeholder attribute.
func Placeholder(s string) Opt { return Set("placeholder", s) }

// Checked sets the checked attribute. A submitted form overrides it.
func Checked(on bool) Opt { return Set("checked", on) }

// Disabled sets the disabled attribute.
func Disabled(on bool) Opt { return Set("disabled", on) }

// Value sets the initial value of a form control. For a select it is the
// selected option value; for a textarea it is the content. A submitted form
// overrides it.
func Value(v any) Opt {
	return func(n *Node) {
		switch n.kind.value {
		case valueSelect:
			s, err := toString(v)
			if err != nil {
				n.fail(fmt.Errorf("%w: <select> value: %v", ErrValidation, err))
				return
			}
			n.values = []string{s}
		case valueTextarea:
			s, err := toString(v)
			if err != nil {
				n.fail(fmt.Errorf("%w: <textarea> value: %v", ErrValidation, err))
				return
			}
			n.text, n.hasText = s, true
		default:
			n.set("value", v)
		}
	}
}

// Text sets the text content. A node with text content cannot have children.
func Text(s string) Opt {
	return func(n *Node) {
		n.text, n.hasText = s, true
	}
}

// Textf sets formatted text content.
func Textf(format string, args ...any) Opt {
	return Text(fmt.Sprintf(format, args...))
}

// Unsafe renders the text content without escaping.
func Unsafe() Opt {
	return func(n *Node) { n.unsafe = true }
}

// Data expands values into data-* attributes, in sorted key order. Keys are
// used as given.
func Data(values map[string]any) Opt {
	return func(n *Node) {
		for _, k := range sortedKeys(values) {
			n.set("data-"+k, values[k])
		}
	}
}

// HX expands a request descriptor into hx-* attributes. Empty entries are
// skipped.
func HX(d Descriptor) Opt {
	return func(n *Node) {
		for _, p := range d.pairs() {
			n.set(p[0], p[1])
		}
	}
}

// ReloadOn clears every event handler and makes the listed DOM events reload
// the enclosing component. Events may be given with or without the "on"
// prefix. input, keydown and keyup are throttled.
func ReloadOn(events ...string) Opt {
	return func(n *Node) {
		for _, e := range events {
			name := strings.ToLower(e)
			if !strings.HasPrefix(name, "on") {
				name = "on" + name
			}
			if !isEvent(name) {
				n.fail(fmt.Errorf("%w: invalid event %q", ErrValidation, e))
				return
			}
			n.reloadOn = append(n.reloadOn, name)
		}
	}
}

// Indicator marks the node as an htmx request indicator.
func Indicator() Opt {
	return func(n *Node) { n.indicator = true }
}

// Children appends already built nodes.
func Children(children ...*Node) Opt {
	return func(n *Node) {
		n.pending = append(n.pending, children...)
	}
}
