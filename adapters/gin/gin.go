// Package hxlivegin mounts an hxlive App on a gin engine.
//
//	r := gin.New()
//	r.Use(gin.Recovery())
//	hxlivegin.Mount(r, app)
package hxlivegin

import (
	"github.com/gin-gonic/gin"

	"github.com/pthm/hxlive"
)

// Mount registers the App's pages, component routes, SSE stream and client
// script on r. It freezes the App's registry. Engine middleware runs for
// every hxlive request.
func Mount(r *gin.Engine, app *hxlive.App) {
	h := gin.WrapH(app.Handler())
	r.Any(app.Prefix()+"/*path", h)
	for _, p := range app.Pages() {
		r.GET(p, h)
	}
}
