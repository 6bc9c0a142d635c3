package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/synapse-gw/internal/events"
)

const keepAliveInterval = 15 * time.Second

type sseStream struct {
	w http.ResponseWriter
}

func (s sseStream) event(ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data)
	return err
}

func (s sseStream) comment(text string) error {
	_, err := fmt.Fprintf(s.w, ": %s\n\n", text)
	return err
}

// handleEvents streams query transitions as Server-Sent Events, replaying
// the backlog after Last-Event-ID first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	hub := s.deps.Events
	if hub == nil {
		s.writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := hub.Subscribe()
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	stream := sseStream{w: w}
	cursor := lastEventID(r)
	for _, ev := range hub.Replay(cursor) {
		if stream.event(ev) != nil {
			return
		}
		cursor = ev.Seq
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			// Already sent during replay.
			if ev.Seq <= cursor {
				continue
			}
			cursor = ev.Seq
			err = stream.event(ev)
		case <-ticker.C:
			err = stream.comment("keep-alive")
		}
		if err != nil {
			s.logger.Debug("event stream closed", "error", err)
			return
		}
		flusher.Flush()
	}
}

func lastEventID(r *http.Request) uint64 {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		v = r.URL.Query().Get("last_event_id")
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
