// Package hxlive provides server-driven UI components for Go: views build
// HTML on the server, and the browser reloads individual components over
// HTMX when the user interacts with them or when session state changes.
//
// # Core Concepts
//
// An App owns sessions, component routes and pages. Components are
// registered at startup with a typed view:
//
//	app := hxlive.New(hxlive.WithState(StateSchema, nil))
//
//	var Counter = hxlive.Register(app, "counter", func(b *hxlive.Builder, p CounterProps) error {
//	    s, _ := hxlive.Get[AppState](b)
//	    b.El(node.P, node.Textf("%s: %d", p.Label, s.Count))
//	    b.El(node.Button, node.ID("inc"), node.Text("+1"))
//	    return nil
//	}, hxlive.WithID("counter"), hxlive.WithReloadOn(StateFields.Count))
//
// Views receive a Builder, the request-scoped rendering context. Nodes built
// with b.El attach to the current parent; b.With scopes a parent:
//
//	b.With(b.El(node.Ul), func() {
//	    for _, item := range items {
//	        b.El(node.Li, node.Text(item))
//	    }
//	})
//
// Def.Render places a component into the tree as a container element. The
// browser loads the container immediately and reloads it whenever an
// interactive element inside fires its event (buttons on click, selects on
// change and so on, see package node).
//
// # State and Reloads
//
// With WithState every session gets a state container. Update mutates it
// inside a bracket; on commit the serialized fields are compared and every
// component registered WithReloadOn a changed field is queued for reload.
// The session's queue is delivered to the page over Server-Sent Events, and
// the browser reloads the named containers.
//
//	hxlive.Update(b, func(s *AppState) error {
//	    s.Count++
//	    return nil
//	})
//
// Field handles come from the state schema, or from code generated by
// 'hxlive generate' for structs marked //hxlive:state.
//
// # Security Model
//
// Props are carried in reload URLs so an instance can be rebuilt after the
// session dropped it:
//   - Signed (default): HMAC-authenticated msgpack, visible but tamper-proof
//   - Encrypted: AES-GCM, opaque to clients (WithEncryptedProps)
//
// Every page embeds the session's CSRF token in a hidden input, and every
// non-GET reload must send it back.
//
// # Errors
//
// Node construction errors are sticky: the Builder records the first one
// and the request fails with it after the view returns. App.OnError maps
// errors to responses; StatusCode gives the default mapping (403 for CSRF,
// 410 for stale sessions and components, 500 for view misuse).
package hxlive
