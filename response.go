package hxlive

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

// Flash levels for toast notifications.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// ToastsID is the id of the element flashes are appended to.
const ToastsID = "toasts"

// Flash represents a one-time notification message.
//
// Flash messages are rendered as out-of-band (OOB) swaps that append to
// the #toasts container. Pages include the container; the trampoline
// script dismisses toasts after the delay in data-auto-dismiss.
//
//	b.Flash(hxlive.FlashSuccess, "Item saved!")
type Flash struct {
	Level   string // success, error, warning, info
	Message string
}

// RenderFlashesOOB renders flashes as OOB swap HTML.
func RenderFlashesOOB(flashes []Flash) string {
	if len(flashes) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(`<div id="` + ToastsID + `" hx-swap-oob="beforeend">`)
	for _, f := range flashes {
		writeToast(&sb, f)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func writeToast(sb *strings.Builder, f Flash) {
	sb.WriteString(`<div class="toast toast-`)
	sb.WriteString(html.EscapeString(f.Level))
	sb.WriteString(`" data-auto-dismiss="3000">`)
	sb.WriteString(html.EscapeString(f.Message))
	sb.WriteString(`</div>`)
}

// ToastContainer returns a templ component for the toast container. Pages
// registered with App.Page include it already; use it in layouts served
// some other way.
func ToastContainer() templ.Component {
	return toastContainer(nil)
}

func toastContainer(flashes []Flash) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(`<div id="` + ToastsID + `" class="toast-container">`)
		for _, f := range flashes {
			writeToast(&sb, f)
		}
		sb.WriteString(`</div>`)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}

// BuildTriggerHeader builds an HX-Trigger header value.
//
// A bare event name is sent as is. With data the header is a JSON object
// mapping the event to its detail:
//
//	"item-updated"                          -> item-updated
//	"filter:changed" + {"status": "active"} -> {"filter:changed":{"status":"active"}}
func BuildTriggerHeader(trigger string, triggerData map[string]any) string {
	if trigger == "" {
		return ""
	}
	if triggerData == nil {
		return trigger
	}
	data, _ := json.Marshal(map[string]any{trigger: triggerData})
	return string(data)
}

// writeHeaders applies the side effects that travel in headers. It must run
// before the body is written.
func (e *effects) writeHeaders(w http.ResponseWriter) {
	h := w.Header()
	for k, v := range e.headers {
		h.Set(k, v)
	}
	if t := BuildTriggerHeader(e.trigger, e.triggerData); t != "" {
		h.Set("HX-Trigger", t)
	}
	if e.redirect != "" {
		h.Set("HX-Redirect", e.redirect)
	}
}

func (e *effects) statusCode() int {
	if e.status == 0 {
		return http.StatusOK
	}
	return e.status
}
