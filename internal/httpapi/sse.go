package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/codeturn-ai/opencode/internal/event"
	"github.com/codeturn-ai/opencode/internal/logging"
)

// sseHeartbeatInterval is the interval for SSE heartbeat comments, keeping
// idle connections from being reaped by intermediate proxies.
const sseHeartbeatInterval = 30 * time.Second

// sseWriter wraps http.ResponseWriter for Server-Sent Events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprint(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// sessionEvents streams every published event onto one merged SSE
// connection, mirroring the single multi-producer channel the Engine
// publishes to; per-session filtering is left to the client since ordering
// is only guaranteed within a session, not across sessions.
func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	events := make(chan event.Event, 32)
	subscribe := event.SubscribeAll
	if s.bus != nil {
		subscribe = s.bus.SubscribeAll
	}
	unsub := subscribe(func(e event.Event) {
		select {
		case events <- e:
		default:
			logging.Warn().Str("eventType", string(e.Type)).Msg("httpapi SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent("message", e); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}

// sessionSync streams the state-sync worker's session listing over SSE:
// one "listing" event per scan, each carrying the full current set of
// {id, title, updated} rows rather than a diff. Returns 503 if no worker
// was attached via Server.SetStateSync.
func (s *Server) sessionSync(w http.ResponseWriter, r *http.Request) {
	if s.syncWorker == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "state sync not enabled")
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case listing := <-s.syncWorker.Updates():
			if err := sse.writeEvent("listing", listing); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
