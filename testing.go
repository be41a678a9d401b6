package hxlive

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// TestResult holds a response for assertions in tests.
//
// Provides convenience methods for asserting on HTML content, headers,
// status codes, events, flashes and redirects.
type TestResult struct {
	HTML            string
	StatusCode      int
	Headers         http.Header
	TriggeredEvents []string
	Flashes         []Flash
	RedirectURL     string
}

func newTestResult(rec *httptest.ResponseRecorder) *TestResult {
	result := &TestResult{
		HTML:       rec.Body.String(),
		StatusCode: rec.Code,
		Headers:    rec.Header(),
	}
	if trigger := rec.Header().Get("HX-Trigger"); trigger != "" {
		result.TriggeredEvents = parseTriggerHeader(trigger)
	}
	if redirect := rec.Header().Get("HX-Redirect"); redirect != "" {
		result.RedirectURL = redirect
	}
	result.Flashes = parseFlashesFromHTML(result.HTML)
	return result
}

// TestRender runs fn against a fresh session of app, outside any HTTP
// request, and returns the rendered nodes.
//
//	result, err := hxlive.TestRender(app, func(b *hxlive.Builder) error {
//	    b.El(node.P, node.Text("hello"))
//	    return nil
//	})
func TestRender(app *App, fn PageView) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), app, fn)
}

// TestRenderWithContext is TestRender with a custom context.
func TestRenderWithContext(ctx context.Context, app *App, fn PageView) (*TestResult, error) {
	sess := app.store.Create()
	b := newBuilder(ctx, app, sess, nil)
	defer b.flush()

	if err := fn(b); err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}
	var buf bytes.Buffer
	if err := b.render(&buf); err != nil {
		return nil, err
	}
	buf.WriteString(RenderFlashesOOB(b.effects.flashes))

	rec := httptest.NewRecorder()
	b.effects.writeHeaders(rec)
	rec.WriteHeader(b.effects.statusCode())
	_, _ = rec.Write(buf.Bytes())
	return newTestResult(rec), nil
}

// TestClient drives an App like a browser: it keeps the session cookie and
// sends the CSRF token with reloads.
//
//	c := hxlive.NewTestClient(app)
//	page, _ := c.Page("/")
//	url := page.Loaders()["counter"]
//	result, _ := c.Trigger(url, "inc", "click", nil)
type TestClient struct {
	app     *App
	handler http.Handler
	cookie  *http.Cookie
}

// NewTestClient returns a client for app. It calls app.Handler, so register
// every component and page first.
func NewTestClient(app *App) *TestClient {
	return &TestClient{app: app, handler: app.Handler()}
}

// Session returns the client's session, nil before the first page load.
func (c *TestClient) Session() *Session {
	if c.cookie == nil {
		return nil
	}
	s, _ := c.app.store.Get(c.cookie.Value)
	return s
}

// CSRF returns the token of the client's session.
func (c *TestClient) CSRF() string {
	if s := c.Session(); s != nil {
		return s.CSRFToken()
	}
	return ""
}

// Page loads a page, creating the session on first use.
func (c *TestClient) Page(path string) (*TestResult, error) {
	return NewTestRequest(http.MethodGet, path).Execute(c)
}

// Reload posts form to a component reload URL.
func (c *TestClient) Reload(reloadURL string, form url.Values) (*TestResult, error) {
	return NewTestRequest(http.MethodPost, reloadURL).WithForm(form).Execute(c)
}

// Trigger posts a reload as if the element with id triggerID fired event.
func (c *TestClient) Trigger(reloadURL, triggerID, event string, form url.Values) (*TestResult, error) {
	return NewTestRequest(http.MethodPost, reloadURL).
		WithForm(form).
		WithFormValue(fieldTriggerID, triggerID).
		WithFormValue(fieldEvent, event).
		Execute(c)
}

// TestRequestBuilder provides a fluent interface for building test requests.
//
//	result, err := hxlive.NewTestRequest("POST", reloadURL).
//	    WithFormValue("q", "hello").
//	    WithHeader("X-Custom", "header").
//	    Execute(client)
type TestRequestBuilder struct {
	method  string
	url     string
	form    url.Values
	headers map[string]string
	ctx     context.Context
	csrf    bool
}

// NewTestRequest creates a new test request builder.
func NewTestRequest(method, url string) *TestRequestBuilder {
	return &TestRequestBuilder{
		method:  method,
		url:     url,
		form:    make(map[string][]string),
		headers: make(map[string]string),
		ctx:     context.Background(),
		csrf:    true,
	}
}

// WithFormValue adds a form value to the request.
func (b *TestRequestBuilder) WithFormValue(key, value string) *TestRequestBuilder {
	b.form.Add(key, value)
	return b
}

// WithForm adds every value of form to the request.
func (b *TestRequestBuilder) WithForm(form url.Values) *TestRequestBuilder {
	for k, vs := range form {
		for _, v := range vs {
			b.form.Add(k, v)
		}
	}
	return b
}

// WithHeader adds a header to the request.
func (b *TestRequestBuilder) WithHeader(key, value string) *TestRequestBuilder {
	b.headers[key] = value
	return b
}

// WithContext sets the context for the request.
func (b *TestRequestBuilder) WithContext(ctx context.Context) *TestRequestBuilder {
	b.ctx = ctx
	return b
}

// WithoutCSRF leaves out the session's CSRF token.
func (b *TestRequestBuilder) WithoutCSRF() *TestRequestBuilder {
	b.csrf = false
	return b
}

// Execute sends the request through the client's handler.
func (b *TestRequestBuilder) Execute(c *TestClient) (*TestResult, error) {
	form := url.Values{}
	for k, vs := range b.form {
		form[k] = slices.Clone(vs)
	}
	if b.csrf && b.method != http.MethodGet && !form.Has(c.app.cfg.csrfInputID) {
		form.Set(c.app.cfg.csrfInputID, c.CSRF())
	}

	var req *http.Request
	if b.method == http.MethodGet {
		target := b.url
		if len(form) > 0 {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + form.Encode()
		}
		req = httptest.NewRequest(b.method, target, nil)
	} else {
		req = httptest.NewRequest(b.method, b.url, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req = req.WithContext(b.ctx)
	req.Header.Set("HX-Request", "true")
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == c.app.cfg.cookieName {
			c.cookie = &http.Cookie{Name: ck.Name, Value: ck.Value}
		}
	}
	return newTestResult(rec), nil
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the HTML contains any of the given substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}

// Loaders returns the reload URL of every component container in the HTML,
// keyed by container id.
func (r *TestResult) Loaders() map[string]string {
	out := make(map[string]string)
	doc, err := html.Parse(strings.NewReader(r.HTML))
	if err != nil {
		return out
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			var id, post string
			var loader bool
			for _, a := range n.Attr {
				switch a.Key {
				case "id":
					id = a.Val
				case "hx-post":
					post = a.Val
				case "class":
					loader = slices.Contains(strings.Fields(a.Val), LoaderClass)
				}
			}
			if loader && id != "" {
				out[id] = post
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// HasEvent checks if an event was triggered.
func (r *TestResult) HasEvent(event string) bool {
	for _, e := range r.TriggeredEvents {
		if strings.Contains(e, event) {
			return true
		}
	}
	return false
}

// HasFlash checks if a flash message was set with the given level and message.
func (r *TestResult) HasFlash(level, message string) bool {
	for _, f := range r.Flashes {
		if f.Level == level && f.Message == message {
			return true
		}
	}
	return false
}

// HasFlashLevel checks if any flash message was set with the given level.
func (r *TestResult) HasFlashLevel(level string) bool {
	for _, f := range r.Flashes {
		if f.Level == level {
			return true
		}
	}
	return false
}

// WasRedirected checks if the response was a redirect.
func (r *TestResult) WasRedirected() bool {
	return r.RedirectURL != ""
}

// RedirectedTo checks if the response was redirected to a specific URL.
func (r *TestResult) RedirectedTo(url string) bool {
	return r.RedirectURL == url
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

// HasHeader checks if a header is set with the given value.
func (r *TestResult) HasHeader(key, value string) bool {
	return r.Headers.Get(key) == value
}

// GetHeader returns the value of a header.
func (r *TestResult) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// parseTriggerHeader parses the HX-Trigger header value into event names.
// The header can be a simple event name, a comma-separated list or JSON.
func parseTriggerHeader(trigger string) []string {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return nil
	}

	if strings.HasPrefix(trigger, "{") {
		var events []string
		depth := 0
		inString := false
		stringStart := -1

		for i := 0; i < len(trigger); i++ {
			c := trigger[i]
			if inString && c == '\\' && i+1 < len(trigger) {
				i++
				continue
			}
			switch {
			case c == '"' && !inString:
				inString = true
				stringStart = i + 1
			case c == '"':
				inString = false
				// Top-level keys are strings at depth 1 followed by ':'.
				if depth == 1 {
					j := i + 1
					for j < len(trigger) && (trigger[j] == ' ' || trigger[j] == '\t') {
						j++
					}
					if j < len(trigger) && trigger[j] == ':' {
						events = append(events, trigger[stringStart:i])
					}
				}
				stringStart = -1
			case !inString && c == '{':
				depth++
			case !inString && c == '}':
				depth--
			}
		}
		return events
	}

	parts := strings.Split(trigger, ",")
	events := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			events = append(events, p)
		}
	}
	return events
}

// parseFlashesFromHTML extracts flash messages from toast markup.
func parseFlashesFromHTML(src string) []Flash {
	var flashes []Flash

	const prefix = `<div class="toast toast-`
	idx := 0
	for {
		start := strings.Index(src[idx:], prefix)
		if start == -1 {
			break
		}
		start += idx + len(prefix)

		levelEnd := strings.Index(src[start:], `"`)
		if levelEnd == -1 {
			break
		}
		level := src[start : start+levelEnd]

		tagEnd := strings.Index(src[start:], ">")
		if tagEnd == -1 {
			break
		}
		contentStart := start + tagEnd + 1

		contentEnd := strings.Index(src[contentStart:], "</div>")
		if contentEnd == -1 {
			break
		}
		flashes = append(flashes, Flash{
			Level:   level,
			Message: html.UnescapeString(src[contentStart : contentStart+contentEnd]),
		})
		idx = contentStart + contentEnd
	}
	return flashes
}
