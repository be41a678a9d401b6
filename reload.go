package hxlive

import (
	"bytes"
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

const maxMemory = 32 << 20

// parseForm reads the submitted fields. POST bodies may be urlencoded or
// multipart; GET requests use the query string minus the reload parameters.
func (app *App) parseForm(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		values := url.Values{}
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			for k, v := range r.URL.Query() {
				if k == paramComponentID || k == paramProps {
					continue
				}
				values[k] = v
			}
		default:
			var err error
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				err = r.ParseMultipartForm(maxMemory)
			} else {
				err = r.ParseForm()
			}
			if err != nil {
				app.fail(w, r, fmt.Errorf("%w: %v", ErrInvalidFormat, err))
				return
			}
			for k, v := range r.PostForm {
				values[k] = v
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), formKey, values)))
	})
}

// checkCSRF rejects non-GET requests whose csrf field does not match the
// session token, then splits the trigger fields off the form.
func (app *App) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := sessionFrom(r.Context())
		values, _ := r.Context().Value(formKey).(url.Values)
		if values == nil {
			values = url.Values{}
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			token := values.Get(app.cfg.csrfInputID)
			if sess == nil || subtle.ConstantTimeCompare([]byte(token), []byte(sess.CSRFToken())) != 1 {
				app.fail(w, r, ErrCSRF)
				return
			}
		}
		values.Del(app.cfg.csrfInputID)

		req := &Request{raw: r, submitted: len(values) > 0}
		req.tid = values.Get(fieldTriggerID)
		req.evt = values.Get(fieldEvent)
		values.Del(fieldTriggerID)
		values.Del(fieldEvent)
		req.form = &Form{Values: values}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestKey, req)))
	})
}

func requestFrom(r *http.Request) *Request {
	if req, ok := r.Context().Value(requestKey).(*Request); ok {
		return req
	}
	return &Request{raw: r, form: &Form{Values: url.Values{}}}
}

type resolver func(ctx context.Context, sess *Session, id, encoded string) (*instance, error)

// serveComponent runs one reload of a component and writes the fragment.
func (app *App) serveComponent(w http.ResponseWriter, r *http.Request, name string, resolve resolver) {
	sess, _ := sessionFrom(r.Context())
	q := r.URL.Query()

	inst, err := resolve(r.Context(), sess, q.Get(paramComponentID), q.Get(paramProps))
	if err != nil {
		app.metrics.reload(name, StatusCode(err))
		app.fail(w, r, err)
		return
	}

	b := newBuilder(r.Context(), app, sess, requestFrom(r))
	var buf bytes.Buffer
	if err := b.renderComponent(inst, &buf); err != nil {
		app.metrics.reload(name, StatusCode(err))
		app.fail(w, r, err)
		return
	}

	b.effects.writeHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	code := b.effects.statusCode()
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
	_, _ = io.WriteString(w, RenderFlashesOOB(b.effects.flashes))

	app.metrics.reload(name, code)
	app.log.WithFields(logrus.Fields{
		"session":   sess.ID(),
		"component": inst.id,
		"trigger":   b.req.tid,
		"event":     b.req.evt,
	}).Debug("component reloaded")
}

// renderComponent runs the instance's view and renders its nodes to w. The
// Builder's tree slots are flushed on every path.
func (b *Builder) renderComponent(inst *instance, w io.Writer) error {
	defer b.flush()
	b.component = inst.id

	if err := inst.run(b); err != nil {
		return err
	}
	if b.err != nil {
		return b.err
	}
	if len(b.stack) != 0 {
		return fmt.Errorf("%w: view returned with %d unclosed scopes", ErrMisuse, len(b.stack))
	}
	return b.render(w)
}
