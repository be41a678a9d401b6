package hxlive

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
)

// serveSSE streams the session's notification queue.
//
// Each event carries the sequence number as its id and the component
// container id as data. Events after lastEventID are replayed from the
// session buffer first. After the last stream of a session closes, the
// session is deleted unless a stream reconnects within the delete timeout.
func (app *App) serveSSE(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		app.fail(w, r, errors.New("hxlive: response writer does not support streaming"))
		return
	}

	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sess.connect()
	defer sess.disconnect(app.cfg.deleteTimeout, func() { app.store.Delete(sess.ID()) })

	log := app.log.WithField("session", sess.ID())
	log.Debug("sse connected")
	defer log.Debug("sse disconnected")

	write := func(ev Event) bool {
		err := sse.Encode(w, sse.Event{
			Id:   strconv.FormatUint(ev.Seq, 10),
			Data: ev.Component,
		})
		if err != nil {
			log.WithError(err).Debug("sse write failed")
			return false
		}
		flusher.Flush()
		app.metrics.sseEvents.Inc()
		return true
	}

	for _, ev := range sess.Missed(lastEventID(r)) {
		if !write(ev) {
			return
		}
	}

	ticker := time.NewTicker(app.cfg.sseTick)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		if ev, ok := sess.tryNext(); ok {
			if !write(ev) {
				return
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			return
		case <-sess.wake:
		case <-ticker.C:
			if err := sse.Encode(w, sse.Event{Event: "heartbeat", Data: ""}); err != nil {
				return
			}
			flusher.Flush()
			// Keep the session alive in the store while the stream is open.
			app.store.Get(sess.ID())
		}
	}
}

// lastEventID is the larger of the last_event query parameter and the
// Last-Event-ID header. A browser reconnecting on its own reuses the URL of
// the first connection and reports its newer position in the header.
func lastEventID(r *http.Request) uint64 {
	parse := func(v string) uint64 {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return max(parse(r.URL.Query().Get("last_event")), parse(r.Header.Get("Last-Event-ID")))
}
