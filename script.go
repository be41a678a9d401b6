package hxlive

import (
	_ "embed"
	"net/http"
)

// Script is the client script every page loads. It defines the handlers
// node kinds install (hxlive.reload, hxlive.throttledReload and
// hxlive.preventSubmit) and connects the SSE stream.
//
//go:embed static/hxlive.js
var Script string

func serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(Script))
}
