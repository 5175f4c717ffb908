package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/gate"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// sseKeepaliveInterval is how often keepalive comments are sent to
// prevent connection timeouts.
const sseKeepaliveInterval = 15 * time.Second

// SSE event names emitted by live views.
const (
	liveEventState    = "state"    // every gate transition
	liveEventContent  = "content"  // protected payload, only while authorized
	liveEventRedirect = "redirect" // terminal; the stream ends after it
	liveEventError    = "error"
)

// contentFunc renders the protected payload of a live view.
type contentFunc func(ctx context.Context, sess *model.Session) (any, error)

type redirectEvent struct {
	Location string `json:"location"`
	Replace  bool   `json:"replace"`
}

// live serves a protected view as an event stream. The view's gate stays
// mounted for the life of the connection: clients see the loading state,
// then content once authorized, and a redirect the moment the gate turns
// Unauthorized (sign-out in another tab, expiry, role revocation on the
// next change). When topic is set, content is re-sent on every bus event
// matching it.
func (s *Server) live(role model.Role, content contentFunc, topic string) http.HandlerFunc {
	req := gate.RequireRole(role)
	target := redirectFor(role)
	return func(w http.ResponseWriter, r *http.Request) {
		// Ensure response supports flushing (required for SSE).
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}
		ctx := r.Context()

		g := s.newGate(tokenFrom(ctx), req)
		g.Mount(ctx)
		defer g.Unmount()
		decisions := g.Watch()

		var updates <-chan []byte
		if topic != "" && s.subscriber != nil {
			ch, cancel, err := s.subscriber.Subscribe(topic)
			if err != nil {
				s.logger.Warn("live view: subscribe failed", "topic", topic, "error", err)
			} else {
				defer cancel()
				updates = ch
			}
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		var seq uint64
		send := func(event string, data any) {
			payload, err := json.Marshal(data)
			if err != nil {
				s.logger.Warn("live view: marshal failed", "event", event, "error", err)
				return
			}
			seq++
			writeSSEEvent(w, seq, event, payload)
			flusher.Flush()
		}
		render := func(sess *model.Session) {
			v, err := content(ctx, sess)
			if err != nil {
				s.logger.Error("live view: render failed", "path", r.URL.Path, "error", err)
				send(liveEventError, map[string]string{"error": "failed to load content"})
				return
			}
			send(liveEventContent, v)
		}

		keepalive := time.NewTicker(sseKeepaliveInterval)
		defer keepalive.Stop()

		var admitted *model.Session
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-decisions:
				if !ok {
					return
				}
				send(liveEventState, d)
				switch d.State {
				case gate.Authorized:
					admitted = g.Snapshot().Session
					if admitted != nil {
						render(admitted)
					}
				case gate.Unauthorized:
					s.logger.Info("live view: access ended",
						"path", r.URL.Path,
						"required", req.String(),
						"reason", d.Reason,
					)
					send(liveEventRedirect, redirectEvent{Location: target, Replace: true})
					return
				default:
					admitted = nil
				}
			case _, ok := <-updates:
				if !ok {
					updates = nil
					continue
				}
				if admitted != nil {
					render(admitted)
				}
			case <-keepalive.C:
				// Send a comment line as keepalive.
				fmt.Fprintf(w, ":keepalive\n\n")
				flusher.Flush()
			}
		}
	}
}

// writeSSEEvent writes a single SSE event to the writer.
func writeSSEEvent(w http.ResponseWriter, id uint64, event string, data []byte) {
	fmt.Fprintf(w, "id:%d\n", id)
	fmt.Fprintf(w, "event:%s\n", event)
	fmt.Fprintf(w, "data:%s\n\n", data)
}
