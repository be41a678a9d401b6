package hxlive

import (
	"net/http"

	"github.com/a-h/templ"
)

// Render writes a templ component (a node tree is one) to the response.
//
// Sets Content-Type to text/html. Use this for handlers outside the App that
// still want to render hxlive nodes or templ templates:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    hxlive.Render(w, r, myTemplate())
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX returns true if the request originated from HTMX.
//
// HTMX sends HX-Request: true on all requests, including component reloads.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// IsBoosted returns true if the request is a boosted navigation (hx-boost).
func IsBoosted(r *http.Request) bool {
	return r.Header.Get("HX-Boosted") == "true"
}

// CurrentURL returns the URL the browser is on, from the HX-Current-URL
// header. It is empty for non-HTMX requests.
func CurrentURL(r *http.Request) string {
	return r.Header.Get("HX-Current-URL")
}
