// Package hxliveecho mounts an hxlive App on the Echo framework.
//
//	app := hxlive.New(hxlive.WithState(Schema, nil))
//	// register components and pages...
//	e := echo.New()
//	hxliveecho.Mount(e, app)
//
// Or mount on a group with middleware. Page paths and the App prefix are
// absolute, so they must lie under the group's base path:
//
//	app := hxlive.New(hxlive.WithPrefix("/app/__hxlive__"))
//	app.Page("/app/", home)
//	g := e.Group("/app", authMiddleware)
//	hxliveecho.MountGroup(g, "/app", app)
package hxliveecho

import (
	"fmt"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/hxlive"
)

// Mount registers the App's pages, component routes, SSE stream and client
// script on e. It freezes the App's registry.
func Mount(e *echo.Echo, app *hxlive.App) {
	h := echo.WrapHandler(app.Handler())
	e.Any(app.Prefix()+"/*", h)
	for _, p := range app.Pages() {
		e.GET(p, h)
	}
}

// MountGroup registers the App on a group whose routes start with base, so
// that pages and reloads pass through the group's middleware.
func MountGroup(g *echo.Group, base string, app *hxlive.App) {
	base = strings.TrimSuffix(base, "/")
	rel := func(path string) string {
		r, ok := strings.CutPrefix(path, base)
		if !ok || (r != "" && !strings.HasPrefix(r, "/")) {
			panic(fmt.Sprintf("hxliveecho: path %q is outside group %q", path, base))
		}
		return r
	}

	h := echo.WrapHandler(app.Handler())
	g.Any(rel(app.Prefix())+"/*", h)
	for _, p := range app.Pages() {
		g.GET(rel(p), h)
	}
}

// Render writes a templ component, such as a node tree, to the Echo
// response.
//
//	func handler(c echo.Context) error {
//	    return hxliveecho.Render(c, myTemplate())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
