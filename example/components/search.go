package components

import (
	"strings"

	"github.com/pthm/hxlive"
	"github.com/pthm/hxlive/lib/node"
)

// SearchProps configures the live search.
type SearchProps struct {
	Placeholder string `msgpack:"placeholder"`
	Limit       int    `msgpack:"limit"`
}

func searchView(catalog *Catalog) hxlive.View[SearchProps] {
	return func(b *hxlive.Builder, p SearchProps) error {
		b.El(node.Input,
			node.ID("search-q"),
			node.Type("search"),
			node.Name("q"),
			node.Placeholder(p.Placeholder),
			node.Set("autocomplete", "off"),
			node.ReloadOn("input"),
		)

		query := strings.TrimSpace(b.Request().Form().String("q"))
		results := catalog.Search(query, p.Limit)
		if len(results) == 0 {
			b.El(node.P, node.Class("empty"), node.Textf("Nothing matches %q.", query))
			return nil
		}

		b.With(b.El(node.Ul, node.Class("results")), func() {
			for _, name := range results {
				b.El(node.Li, node.Text(name))
			}
		})
		return nil
	}
}
