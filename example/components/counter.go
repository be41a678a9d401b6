package components

import (
	"github.com/pthm/hxlive"
	"github.com/pthm/hxlive/lib/node"
)

// CounterProps configures the counter.
type CounterProps struct {
	Step int `msgpack:"step"`
}

// counterView renders the session counter. The buttons are built detached
// so the click is applied before the count is rendered.
func counterView(b *hxlive.Builder, p CounterProps) error {
	if p.Step == 0 {
		p.Step = 1
	}
	dec, err := node.New(node.Button, nil, nil, node.ID("counter-dec"), node.Textf("-%d", p.Step))
	if err != nil {
		return err
	}
	inc, err := node.New(node.Button, nil, nil, node.ID("counter-inc"), node.Textf("+%d", p.Step))
	if err != nil {
		return err
	}

	delta := 0
	if _, ok := b.Triggered(dec); ok {
		delta = -p.Step
	}
	if _, ok := b.Triggered(inc); ok {
		delta = p.Step
	}
	if delta != 0 {
		if err := hxlive.Update(b, func(s *AppState) error {
			s.Count += delta
			return nil
		}); err != nil {
			return err
		}
	}

	s, err := hxlive.Get[AppState](b)
	if err != nil {
		return err
	}
	count, err := node.New(node.Span, nil, nil, node.Class("count"), node.Textf("%d", s.Count))
	if err != nil {
		return err
	}
	b.El(node.Div, node.Class("counter"), node.Children(dec, count, inc))
	return nil
}
