// Package components holds the example's components and home page.
package components

import (
	"github.com/pthm/hxlive"
	"github.com/pthm/hxlive/lib/node"
)

// Components holds the registered component classes.
type Components struct {
	Counter *hxlive.Def[CounterProps]
	Search  *hxlive.Def[SearchProps]
	Todos   *hxlive.Def[struct{}]
	Stats   *hxlive.Def[struct{}]
}

// Register declares every component on app. Call it once at startup, before
// app.Handler.
func Register(app *hxlive.App, catalog *Catalog) *Components {
	loading := func(b *hxlive.Builder) {
		b.El(node.Span, node.Indicator(), node.Text("Loading…"))
	}
	return &Components{
		Counter: hxlive.Register(app, "counter", counterView,
			hxlive.WithID("counter"),
			hxlive.WithReloadOn(AppStateFields.Count),
		),
		Search: hxlive.Register(app, "search", searchView(catalog),
			hxlive.WithClass("search"),
			hxlive.WithPreload(loading),
		),
		Todos: hxlive.Register(app, "todos", todosView,
			hxlive.WithID("todos"),
			hxlive.WithReloadOn(AppStateFields.Todos, AppStateFields.Filter),
		),
		Stats: hxlive.Register(app, "stats", statsView,
			hxlive.WithID("stats"),
			hxlive.WithReloadOn(AppStateFields.Count, AppStateFields.Todos),
			hxlive.WithPreload(loading),
		),
	}
}

// Home is the view of the index page.
func (c *Components) Home(b *hxlive.Builder) error {
	section := func(title string, fn func()) {
		b.With(b.El(node.Section), func() {
			b.El(node.H2, node.Text(title))
			fn()
		})
	}

	b.With(b.El(node.Main, node.Class("container")), func() {
		b.El(node.H1, node.Text("hxlive"))
		section("Counter", func() { c.Counter.Render(b, CounterProps{Step: 1}) })
		section("Stats", func() { c.Stats.Render(b, struct{}{}) })
		section("Search", func() {
			c.Search.Render(b, SearchProps{Placeholder: "Search fruit", Limit: 8})
		})
		section("Todos", func() { c.Todos.Render(b, struct{}{}) })
	})
	return nil
}
