package node

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type formEnv url.Values

func (f formEnv) Form() url.Values { return url.Values(f) }

func mustNew(t *testing.T, kind *Kind, parent *Node, env Env, opts ...Opt) *Node {
	t.Helper()
	n, err := New(kind, parent, env, opts...)
	if err != nil {
		t.Fatalf("New(%s) error = %v", kind.Tag, err)
	}
	return n
}

func TestRenderAttributes(t *testing.T) {
	tests := []struct {
		name string
		kind *Kind
		opts []Opt
		want string
	}{
		{
			name: "bare boolean",
			kind: Details,
			opts: []Opt{Set("open", true)},
			want: `<details open></details>`,
		},
		{
			name: "false and nil omitted",
			kind: Details,
			opts: []Opt{Set("open", false), Set("title", nil)},
			want: `<details></details>`,
		},
		{
			name: "renamed fields",
			kind: Label,
			opts: []Opt{Set("class_", "lbl"), Set("for_", "q"), Set("aria_label", "Query")},
			want: `<label class="lbl" for="q" aria-label="Query"></label>`,
		},
		{
			name: "embed element",
			kind: EmbedElem,
			opts: []Opt{Set("src", "/clip.mp4"), Type("video/mp4")},
			want: `<embed src="/clip.mp4" type="video/mp4">`,
		},
		{
			name: "numbers",
			kind: Td,
			opts: []Opt{Set("colspan", 2)},
			want: `<td colspan="2"></td>`,
		},
		{
			name: "dataset sorted and unmapped",
			kind: Div,
			opts: []Opt{Data(map[string]any{"b_key": "2", "a": 1})},
			want: `<div data-a="1" data-b_key="2"></div>`,
		},
		{
			name: "descriptor skips empty entries",
			kind: Div,
			opts: []Opt{HX(Descriptor{URL: "/x?a=1&b=2", Trigger: "load", Swap: "innerHTML"})},
			want: `<div hx-post="/x?a=1&amp;b=2" hx-trigger="load" hx-swap="innerHTML"></div>`,
		},
		{
			name: "attribute values escaped",
			kind: Div,
			opts: []Opt{Set("title", `"><script>`)},
			want: `<div title="&#34;&gt;&lt;script&gt;"></div>`,
		},
		{
			name: "self closing",
			kind: Br,
			want: `<br>`,
		},
		{
			name: "text escaped",
			kind: P,
			opts: []Opt{Text("<b>hi</b>")},
			want: `<p>&lt;b&gt;hi&lt;/b&gt;</p>`,
		},
		{
			name: "unsafe text",
			kind: P,
			opts: []Opt{Text("<b>hi</b>"), Unsafe()},
			want: `<p><b>hi</b></p>`,
		},
		{
			name: "script unsafe by default",
			kind: Script,
			opts: []Opt{Text("if (a < b) {}")},
			want: `<script>if (a < b) {}</script>`,
		},
		{
			name: "indicator appends class",
			kind: Span,
			opts: []Opt{Class("spin"), Indicator()},
			want: `<span class="spin htmx-indicator"></span>`,
		},
		{
			name: "templ attributes",
			kind: A,
			opts: []Opt{Attrs(templ.Attributes{"href": "/a", "download": true})},
			want: `<a download href="/a"></a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := mustNew(t, tt.kind, nil, nil, tt.opts...)
			if got := n.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConstructionErrors(t *testing.T) {
	child := TextNode("x")
	tests := []struct {
		name string
		kind *Kind
		opts []Opt
		want error
	}{
		{"content and children", Div, []Opt{Text("a"), Children(child)}, ErrMisuse},
		{"children of self closing", Img, []Opt{Children(TextNode("x"))}, ErrMisuse},
		{"unknown attribute", Div, []Opt{Set("href", "/")}, ErrValidation},
		{"input value without name", Input, []Opt{Value("v")}, ErrValidation},
		{"select value without name", Select, []Opt{Value("v")}, ErrValidation},
		{"bad event", Button, []Opt{ReloadOn("click!")}, ErrValidation},
		{"data key with quote", Div, []Opt{Data(map[string]any{`x" onclick="alert(1)`: 1})}, ErrValidation},
		{"data key with space", Div, []Opt{Data(map[string]any{"a b": 1})}, ErrValidation},
		{"data key with equals", Div, []Opt{Data(map[string]any{"a=b": 1})}, ErrValidation},
		{"uppercase aria", Div, []Opt{Set("aria-Label", "x")}, ErrValidation},
		{"empty data suffix", Div, []Opt{Set("data-", "x")}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.kind, nil, nil, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInputWithValueAllowedForButtons(t *testing.T) {
	if _, err := New(Input, nil, nil, Type("submit"), Value("Go")); err != nil {
		t.Errorf("New(submit input) error = %v", err)
	}
}

func TestAppendToContentOrSelfClosing(t *testing.T) {
	p := mustNew(t, P, nil, nil, Text("hi"))
	if _, err := New(Span, p, nil); !errors.Is(err, ErrMisuse) {
		t.Errorf("New under text node error = %v, want %v", err, ErrMisuse)
	}
	in := mustNew(t, Input, nil, nil)
	if err := in.CanEnter(); !errors.Is(err, ErrMisuse) {
		t.Errorf("CanEnter(input) = %v, want %v", err, ErrMisuse)
	}
	if err := TextNode("x").Append(TextNode("y")); !errors.Is(err, ErrMisuse) {
		t.Errorf("Append to text run = %v, want %v", err, ErrMisuse)
	}
}

func TestStickyInput(t *testing.T) {
	env := formEnv{"q": {"hello"}}
	n := mustNew(t, Input, nil, env, Name("q"))
	if got := n.Value(); got != "hello" {
		t.Errorf("Value() = %q, want %q", got, "hello")
	}

	// A submitted value overrides the initial one.
	n = mustNew(t, Input, nil, env, Name("q"), Value("initial"))
	if got := n.Value(); got != "hello" {
		t.Errorf("Value() = %q, want %q", got, "hello")
	}

	// Without a submitted field the initial value stays.
	n = mustNew(t, Input, nil, formEnv{}, Name("other"), Value("initial"))
	if got := n.Value(); got != "initial" {
		t.Errorf("Value() = %q, want %q", got, "initial")
	}
}

func TestStickyCheckbox(t *testing.T) {
	tests := []struct {
		name string
		env  Env
		opts []Opt
		want bool
	}{
		{"checked by form", formEnv{"agree": {"on"}}, nil, true},
		{"unchecked on reload", formEnv{"other": {"x"}}, []Opt{Checked(true)}, false},
		{"initial without form", nil, []Opt{Checked(true)}, true},
		{"value match", formEnv{"agree": {"yes"}}, []Opt{Value("yes")}, true},
		{"value mismatch", formEnv{"agree": {"no"}}, []Opt{Value("yes")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Opt{Type("checkbox"), Name("agree")}, tt.opts...)
			n := mustNew(t, Input, nil, tt.env, opts...)
			_, got := n.Attr("checked")
			if got != tt.want {
				t.Errorf("checked = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStickySelect(t *testing.T) {
	env := formEnv{"color": {"green"}}
	sel := mustNew(t, Select, nil, env, Name("color"), Value("red"))
	red := mustNew(t, Option, sel, env, Value("red"), Text("Red"))
	green := mustNew(t, Option, sel, env, Value("green"), Text("Green"))
	blue := mustNew(t, Option, sel, env, Text("blue"))

	if got := sel.Value(); got != "green" {
		t.Errorf("select Value() = %q, want %q", got, "green")
	}
	for _, tc := range []struct {
		n    *Node
		want bool
	}{{red, false}, {green, true}, {blue, false}} {
		if _, got := tc.n.Attr("selected"); got != tc.want {
			t.Errorf("option %q selected = %v, want %v", tc.n.Text(), got, tc.want)
		}
	}

	want := `<select onchange="hxlive.reload(this, event)" name="color">` +
		`<option value="red">Red</option>` +
		`<option value="green" selected>Green</option>` +
		`<option>blue</option></select>`
	if diff := cmp.Diff(want, sel.String()); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
}

func TestStickyTextarea(t *testing.T) {
	n := mustNew(t, Textarea, nil, formEnv{"bio": {"<hi>"}}, Name("bio"), Value("default"))
	if got := n.Value(); got != "<hi>" {
		t.Errorf("Value() = %q, want %q", got, "<hi>")
	}
	if got := n.String(); !strings.Contains(got, "&lt;hi&gt;</textarea>") {
		t.Errorf("String() = %s, want escaped content", got)
	}
}

func TestDefaultEvents(t *testing.T) {
	tests := []struct {
		kind  *Kind
		event string
		want  string
	}{
		{Button, "onclick", ReloadScript},
		{Select, "onchange", ReloadScript},
		{Input, "onchange", ThrottledReloadScript},
		{Textarea, "oninput", ReloadScript},
		{Form, "onsubmit", PreventSubmitScript},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Tag, func(t *testing.T) {
			n := mustNew(t, tt.kind, nil, nil)
			if got, _ := n.Attr(tt.event); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.event, got, tt.want)
			}
		})
	}
}

func TestAttrNames(t *testing.T) {
	if got := mustNew(t, Li, nil, nil, Text("x")).AttrNames(); got != nil {
		t.Errorf("AttrNames() = %#v, want nil", got)
	}
	n := mustNew(t, Div, nil, nil, ID("a"), Set("hx-on:click", "go()"), Data(map[string]any{"k_2": 1}))
	if diff := cmp.Diff([]string{"id", "hx-on:click", "data-k_2"}, n.AttrNames()); diff != "" {
		t.Errorf("AttrNames() mismatch (-want +got):\n%s", diff)
	}
}

func TestReloadOn(t *testing.T) {
	n := mustNew(t, Input, nil, nil, Set("onblur", "x()"), ReloadOn("input", "onfocus"))

	want := map[string]string{
		"oninput": ThrottledReloadScript,
		"onfocus": ReloadScript,
	}
	got := map[string]string{}
	for _, name := range n.AttrNames() {
		if isEvent(name) {
			got[name], _ = n.Attr(name)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("handlers mismatch (-want +got):\n%s", diff)
	}
}

func TestFormAncestorClearsHandlers(t *testing.T) {
	form := mustNew(t, Form, nil, nil)
	wrap := mustNew(t, Div, form, nil)
	in := mustNew(t, Input, wrap, nil, Name("q"))
	btn := mustNew(t, Button, wrap, nil, Text("Send"))
	explicit := mustNew(t, Select, form, nil, Name("s"), ReloadOn("change"))

	if _, ok := in.Attr("onchange"); ok {
		t.Error("input inside form kept onchange")
	}
	if got, _ := btn.Attr("onclick"); got != ReloadScript {
		t.Errorf("button onclick = %q, want %q", got, ReloadScript)
	}
	if got, _ := explicit.Attr("onchange"); got != ReloadScript {
		t.Errorf("explicit ReloadOn inside form = %q, want %q", got, ReloadScript)
	}
}

func TestPopoverButtonHasNoReload(t *testing.T) {
	n := mustNew(t, Button, nil, nil, Set("popovertarget", "menu"))
	if _, ok := n.Attr("onclick"); ok {
		t.Error("popover button kept onclick")
	}
}

func TestEmbedTempl(t *testing.T) {
	div := mustNew(t, Div, nil, nil)
	c := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<em>templ</em>")
		return err
	})
	if err := div.Append(Embed(c)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := div.Append(TextNode(" & more")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got, want := div.String(), "<div><em>templ</em> &amp; more</div>"; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

type shape struct {
	Tag   string
	Attrs []string
	Kids  []shape
}

func nodeShape(n *Node) shape {
	s := shape{Tag: n.Tag(), Attrs: n.AttrNames()}
	sort.Strings(s.Attrs)
	for _, c := range n.Children() {
		if c.Tag() != "" {
			s.Kids = append(s.Kids, nodeShape(c))
		}
	}
	return s
}

func htmlShape(n *html.Node) shape {
	s := shape{Tag: n.Data}
	for _, a := range n.Attr {
		s.Attrs = append(s.Attrs, a.Key)
	}
	sort.Strings(s.Attrs)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			s.Kids = append(s.Kids, htmlShape(c))
		}
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	env := formEnv{"q": {"go & html"}}
	root := mustNew(t, Section, nil, env, ID("search"), Class("panel"), Data(map[string]any{"page": 2}))
	form := mustNew(t, Form, root, env, Set("autocomplete", "off"))
	mustNew(t, Input, form, env, Name("q"), Type("search"), Placeholder("Search"), Set("required", true))
	mustNew(t, Button, form, env, Type("submit"), Text("Go"))
	list := mustNew(t, Ul, root, env, HX(Descriptor{URL: "/more", Trigger: "revealed", Swap: "beforeend"}))
	for _, item := range []string{"a", "b"} {
		mustNew(t, Li, list, env, Text(item), Set("aria_selected", item == "a"))
	}
	mustNew(t, Img, root, env, Set("src", "/logo.png"), Set("alt", `"logo"`))

	ctxNode := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(root.String()), ctxNode)
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("ParseFragment() returned %d nodes, want 1", len(parsed))
	}

	if diff := cmp.Diff(nodeShape(root), htmlShape(parsed[0])); diff != "" {
		t.Errorf("round trip mismatch (-built +parsed):\n%s", diff)
	}
}
