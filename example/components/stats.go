package components

import (
	"github.com/pthm/hxlive"
	"github.com/pthm/hxlive/lib/node"
)

func statsView(b *hxlive.Builder, _ struct{}) error {
	s, err := hxlive.Get[AppState](b)
	if err != nil {
		return err
	}
	b.With(b.El(node.Dl, node.Class("stats")), func() {
		b.El(node.Dt, node.Text("Count"))
		b.El(node.Dd, node.Textf("%d", s.Count))
		b.El(node.Dt, node.Text("Todos done"))
		b.El(node.Dd, node.Textf("%d of %d", s.DoneCount(), len(s.Todos)))
	})
	return nil
}
