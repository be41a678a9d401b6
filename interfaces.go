package hxlive

import "context"

// Hydrater is implemented by props types (on the pointer receiver) that need
// to reconstruct rich objects from the serialized fields.
//
// Props travel signed in reload URLs. When a component instance is no longer
// held in the session, the reload endpoint decodes the props from the URL and
// calls Hydrate before running the view. Props rendered in the same process
// are used as given.
//
//	type Props struct {
//	    UserID string
//	    User   *User `msgpack:"-"`
//	}
//
//	func (p *Props) Hydrate(ctx context.Context) error {
//	    p.User, err = users.Get(ctx, p.UserID)
//	    return err
//	}
type Hydrater interface {
	Hydrate(ctx context.Context) error
}

// View renders a component. It builds the component's content with b and
// returns an error to fail the request.
type View[P any] func(b *Builder, props P) error

// PageView renders the body of a page.
type PageView func(b *Builder) error
