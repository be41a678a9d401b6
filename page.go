package hxlive

import (
	"bytes"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pthm/hxlive/lib/node"
)

// PageOption configures a page.
type PageOption func(*pageConfig)

type pageConfig struct {
	title string
	lang  string
	head  func(b *Builder)
}

// WithTitle sets the document title.
func WithTitle(title string) PageOption {
	return func(c *pageConfig) { c.title = title }
}

// WithLang sets the lang attribute of the html element. The default is "en".
func WithLang(lang string) PageOption {
	return func(c *pageConfig) { c.lang = lang }
}

// WithHead adds elements to the document head: stylesheets, meta tags and
// scripts.
//
//	hxlive.WithHead(func(b *hxlive.Builder) {
//	    b.El(node.Link, node.Set("rel", "stylesheet"), node.Href("/static/app.css"))
//	})
func WithHead(fn func(b *Builder)) PageOption {
	return func(c *pageConfig) { c.head = fn }
}

// Page registers a full document at path. The document loads htmx and the
// client script, opens the SSE stream and carries the session's CSRF token;
// view builds the body content.
//
// Visiting a page creates a session when the request has none.
func (app *App) Page(path string, view PageView, opts ...PageOption) {
	cfg := pageConfig{lang: "en"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if view == nil {
		panic("hxlive: page " + path + " has no view")
	}
	app.registerPage(path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.servePage(w, r, cfg, view)
	}))
}

func (app *App) servePage(w http.ResponseWriter, r *http.Request, cfg pageConfig, view PageView) {
	sess, _ := sessionFrom(r.Context())
	sess.setPath(r.URL.Path)

	b := newBuilder(r.Context(), app, sess, requestFrom(r))
	var buf bytes.Buffer
	if err := b.renderPage(cfg, view, &buf); err != nil {
		app.fail(w, r, err)
		return
	}

	b.effects.writeHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(b.effects.statusCode())
	_, _ = buf.WriteTo(w)

	app.log.WithFields(logrus.Fields{"session": sess.ID(), "path": r.URL.Path}).Debug("page rendered")
}

func (b *Builder) renderPage(cfg pageConfig, view PageView, w io.Writer) error {
	defer b.flush()
	app := b.app

	html := b.El(node.HTML, node.Set("lang", cfg.lang))
	b.With(html, func() {
		b.With(b.El(node.Head), func() {
			b.El(node.Meta, node.Set("charset", "utf-8"))
			b.El(node.Meta, node.Name("viewport"), node.Set("content", "width=device-width, initial-scale=1"))
			if cfg.title != "" {
				b.El(node.Title, node.Text(cfg.title))
			}
			b.El(node.Script, node.Set("src", app.cfg.htmxSource))
			b.El(node.Script, node.Set("src", app.cfg.prefix+"/hxlive.js"), node.Set("defer", true))
			if cfg.head != nil {
				cfg.head(b)
			}
		})
		body := b.El(node.Body, node.Data(map[string]any{"sse": app.cfg.prefix + "/sse"}))
		b.With(body, func() {
			b.El(node.Input,
				node.Type("hidden"),
				node.ID(app.cfg.csrfInputID),
				node.Name(app.cfg.csrfInputID),
				node.Value(b.session.CSRFToken()),
				node.Set("onchange", nil),
			)
			if err := view(b); err != nil {
				b.fail(err)
				return
			}
			b.Templ(toastContainer(b.effects.flashes))
		})
	})

	if b.err != nil {
		return b.err
	}
	if len(b.stack) != 0 {
		return ErrMisuse
	}
	if _, err := io.WriteString(w, "<!DOCTYPE html>"); err != nil {
		return err
	}
	return b.render(w)
}
