package node

import (
	"encoding/json"
	"strings"

	"github.com/a-h/templ"
)

// Descriptor is an htmx request description. Node option HX expands it into
// hx-* attributes; empty fields produce no attribute.
type Descriptor struct {
	Method   string // get, post, put, patch or delete; post when empty
	URL      string
	Trigger  string
	Target   string
	Swap     string
	Select   string
	Include  string
	Vals     map[string]any
	Headers  map[string]string
	Encoding string
}

// pairs returns the attributes in a fixed order.
func (d Descriptor) pairs() [][2]string {
	method := strings.ToLower(d.Method)
	if method == "" {
		method = "post"
	}
	var out [][2]string
	add := func(name, value string) {
		if value != "" {
			out = append(out, [2]string{name, value})
		}
	}
	add("hx-"+method, d.URL)
	add("hx-include", d.Include)
	add("hx-trigger", d.Trigger)
	add("hx-swap", d.Swap)
	add("hx-select", d.Select)
	if len(d.Vals) > 0 {
		data, _ := json.Marshal(d.Vals)
		add("hx-vals", string(data))
	}
	add("hx-target", d.Target)
	if len(d.Headers) > 0 {
		data, _ := json.Marshal(d.Headers)
		add("hx-headers", string(data))
	}
	add("hx-encoding", d.Encoding)
	return out
}

// Attributes returns the descriptor as templ attributes, for use in templ
// templates:
//
//	<div { desc.Attributes()... }></div>
func (d Descriptor) Attributes() templ.Attributes {
	attrs := templ.Attributes{}
	for _, p := range d.pairs() {
		attrs[p[0]] = p[1]
	}
	return attrs
}
