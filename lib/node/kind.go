package node

import "strings"

// Client-side handlers installed by default and by ReloadOn. They call into
// the trampoline script served with every page.
const (
	ReloadScript          = "hxlive.reload(this, event)"
	ThrottledReloadScript = "hxlive.throttledReload(this, event)"
	PreventSubmitScript   = "hxlive.preventSubmit(event)"
)

// IndicatorClass marks an element htmx shows while a request is in flight.
const IndicatorClass = "htmx-indicator"

type valueMode int

const (
	valueAttr valueMode = iota // value is a plain attribute
	valueInput
	valueSelect
	valueTextarea
	valueOption
)

// Kind is the attribute schema of one HTML tag.
//
// Every kind accepts the global attributes, on* event handlers, data-*,
// aria-* and hx-* attributes. Attrs lists what the tag accepts on top.
type Kind struct {
	Tag         string
	SelfClosing bool
	// Unsafe kinds render their text content without escaping.
	Unsafe bool
	Attrs  []string
	// Events are the handlers a node of this kind starts with.
	Events map[string]string

	value valueMode
	attrs map[string]struct{}
}

var globalAttrs = set(
	"id", "class", "style", "title", "role", "accesskey", "autofocus",
	"contenteditable", "contextmenu", "dir", "draggable", "dropzone", "hidden",
	"inert", "lang", "spellcheck", "tabindex", "translate", "popover",
	"popovertarget", "popovertargetaction", "itemid", "itemprop", "itemref",
	"itemscope", "itemtype", "slot",
)

// Allows reports whether the kind accepts the attribute.
func (k *Kind) Allows(attr string) bool {
	if _, ok := globalAttrs[attr]; ok {
		return true
	}
	if _, ok := k.attrs[attr]; ok {
		return true
	}
	for _, prefix := range []string{"data-", "aria-", "hx-"} {
		if suffix, ok := strings.CutPrefix(attr, prefix); ok {
			return validSuffix(suffix)
		}
	}
	return isEvent(attr)
}

// validSuffix restricts the open-ended data-, aria- and hx- names to
// characters that cannot end the attribute name. The colon admits
// hx-on:event handlers.
func validSuffix(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == ':':
		default:
			return false
		}
	}
	return true
}

func isEvent(attr string) bool {
	if len(attr) < 3 || !strings.HasPrefix(attr, "on") {
		return false
	}
	for _, r := range attr[2:] {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

func newKind(k Kind) *Kind {
	k.attrs = set(k.Attrs...)
	return &k
}

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

const (
	referrer = "referrerpolicy"
	cors     = "crossorigin"
)

// Document structure.
var (
	HTML  = newKind(Kind{Tag: "html", Attrs: []string{"xmlns"}})
	Head  = newKind(Kind{Tag: "head"})
	Body  = newKind(Kind{Tag: "body"})
	Title = newKind(Kind{Tag: "title"})
	Meta  = newKind(Kind{Tag: "meta", SelfClosing: true,
		Attrs: []string{"name", "content", "charset", "http-equiv", "scheme", "property"}})
	Link = newKind(Kind{Tag: "link", SelfClosing: true,
		Attrs: []string{"href", "rel", "type", "media", "sizes", "as", "integrity", cors, referrer}})
	Script = newKind(Kind{Tag: "script", Unsafe: true,
		Attrs: []string{"src", "type", "async", "defer", "integrity", "nonce", cors, referrer}})
	Style = newKind(Kind{Tag: "style", Unsafe: true, Attrs: []string{"media", "type", "nonce"}})
)

// Sectioning and text.
var (
	Div        = newKind(Kind{Tag: "div"})
	Span       = newKind(Kind{Tag: "span"})
	P          = newKind(Kind{Tag: "p"})
	B          = newKind(Kind{Tag: "b"})
	I          = newKind(Kind{Tag: "i"})
	Em         = newKind(Kind{Tag: "em"})
	Strong     = newKind(Kind{Tag: "strong"})
	Small      = newKind(Kind{Tag: "small"})
	Pre        = newKind(Kind{Tag: "pre"})
	Code       = newKind(Kind{Tag: "code"})
	Blockquote = newKind(Kind{Tag: "blockquote", Attrs: []string{"cite"}})
	H1         = newKind(Kind{Tag: "h1"})
	H2         = newKind(Kind{Tag: "h2"})
	H3         = newKind(Kind{Tag: "h3"})
	H4         = newKind(Kind{Tag: "h4"})
	H5         = newKind(Kind{Tag: "h5"})
	H6         = newKind(Kind{Tag: "h6"})
	Header     = newKind(Kind{Tag: "header"})
	Footer     = newKind(Kind{Tag: "footer"})
	Nav        = newKind(Kind{Tag: "nav"})
	Main       = newKind(Kind{Tag: "main"})
	Section    = newKind(Kind{Tag: "section"})
	Article    = newKind(Kind{Tag: "article"})
	Aside      = newKind(Kind{Tag: "aside"})
	Details    = newKind(Kind{Tag: "details", Attrs: []string{"open", "name"}})
	Summary    = newKind(Kind{Tag: "summary"})
	Dialog     = newKind(Kind{Tag: "dialog", Attrs: []string{"open"}})
	Br         = newKind(Kind{Tag: "br", SelfClosing: true})
	Hr         = newKind(Kind{Tag: "hr", SelfClosing: true})
	A          = newKind(Kind{Tag: "a",
		Attrs: []string{"href", "rel", "target", "type", "download", "hreflang", "ping", cors, referrer}})
	Img = newKind(Kind{Tag: "img", SelfClosing: true,
		Attrs: []string{"src", "alt", "width", "height", "loading", "decoding", "srcset", "sizes", cors, referrer}})
	Canvas    = newKind(Kind{Tag: "canvas", Attrs: []string{"width", "height"}})
	EmbedElem = newKind(Kind{Tag: "embed", SelfClosing: true, Attrs: []string{"src", "type", "width", "height"}})
	Progress  = newKind(Kind{Tag: "progress", Attrs: []string{"max", "value"}})
)

// Lists and tables.
var (
	Ul       = newKind(Kind{Tag: "ul"})
	Ol       = newKind(Kind{Tag: "ol", Attrs: []string{"reversed", "start", "type"}})
	Li       = newKind(Kind{Tag: "li", Attrs: []string{"value"}})
	Dl       = newKind(Kind{Tag: "dl"})
	Dt       = newKind(Kind{Tag: "dt"})
	Dd       = newKind(Kind{Tag: "dd"})
	Table    = newKind(Kind{Tag: "table"})
	Caption  = newKind(Kind{Tag: "caption"})
	Colgroup = newKind(Kind{Tag: "colgroup", Attrs: []string{"span"}})
	Col      = newKind(Kind{Tag: "col", SelfClosing: true, Attrs: []string{"span"}})
	Thead    = newKind(Kind{Tag: "thead"})
	Tbody    = newKind(Kind{Tag: "tbody"})
	Tfoot    = newKind(Kind{Tag: "tfoot"})
	Tr       = newKind(Kind{Tag: "tr"})
	Th       = newKind(Kind{Tag: "th", Attrs: []string{"abbr", "colspan", "rowspan", "headers", "scope"}})
	Td       = newKind(Kind{Tag: "td", Attrs: []string{"colspan", "rowspan", "headers"}})
)

// Forms. Interactive kinds start with reload handlers; nodes built inside a
// Form lose them so the form submits as a whole.
var (
	Form = newKind(Kind{Tag: "form",
		Attrs:  []string{"action", "method", "enctype", "name", "target", "novalidate", "autocomplete", "accept-charset"},
		Events: map[string]string{"onsubmit": PreventSubmitScript}})
	Label  = newKind(Kind{Tag: "label", Attrs: []string{"for", "form"}})
	Input  = newKind(Kind{Tag: "input", SelfClosing: true, value: valueInput,
		Attrs: []string{
			"type", "accept", "alt", "autocomplete", "checked", "disabled", "form", "list",
			"max", "maxlength", "min", "minlength", "multiple", "name", "pattern",
			"placeholder", "readonly", "required", "size", "src", "step", "value",
		},
		Events: map[string]string{"onchange": ThrottledReloadScript}})
	Button = newKind(Kind{Tag: "button",
		Attrs:  []string{"disabled", "form", "name", "type", "value"},
		Events: map[string]string{"onclick": ReloadScript}})
	Select = newKind(Kind{Tag: "select", value: valueSelect,
		Attrs:  []string{"autocomplete", "disabled", "form", "multiple", "name", "required", "size"},
		Events: map[string]string{"onchange": ReloadScript}})
	Option = newKind(Kind{Tag: "option", value: valueOption,
		Attrs: []string{"disabled", "label", "selected", "value"}})
	Optgroup = newKind(Kind{Tag: "optgroup", Attrs: []string{"disabled", "label"}})
	Textarea = newKind(Kind{Tag: "textarea", value: valueTextarea,
		Attrs: []string{
			"autocomplete", "cols", "dirname", "disabled", "form", "maxlength", "minlength",
			"name", "placeholder", "readonly", "required", "rows", "wrap",
		},
		Events: map[string]string{"oninput": ReloadScript}})
	Datalist = newKind(Kind{Tag: "datalist"})
	Fieldset = newKind(Kind{Tag: "fieldset", Attrs: []string{"disabled", "form", "name"}})
	Legend   = newKind(Kind{Tag: "legend"})
)
