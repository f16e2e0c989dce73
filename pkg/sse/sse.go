// Package sse writes Server-Sent Events.
//
//	stream := sse.New(c.W, c.R)
//	if stream == nil {
//	    return
//	}
//	stream.Send("STOCK_UPDATED", payload)
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Stream represents an active SSE connection to one client.
type Stream struct {
	w       http.ResponseWriter
	r       *http.Request
	flusher http.Flusher
	closed  bool
}

// New sets the stream headers. Returns nil (after a 500) if w cannot flush.
func New(w http.ResponseWriter, r *http.Request) *Stream {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, r: r, flusher: flusher}
}

// Send writes a named event with a JSON-encoded data payload.
func (s *Stream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	return s.SendRaw(event, payload)
}

// SendRaw writes a named event whose data is already JSON.
func (s *Stream) SendRaw(event string, payload []byte) error {
	if s.IsClosed() {
		return nil
	}
	if event != "" {
		fmt.Fprintf(s.w, "event: %s\n", event)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.closed = true
		return err
	}
	s.flusher.Flush()
	return nil
}

// Comment writes an SSE comment, used as a keepalive.
func (s *Stream) Comment(msg string) {
	if s.IsClosed() {
		return
	}
	fmt.Fprintf(s.w, ": %s\n\n", msg)
	s.flusher.Flush()
}

// Pipe forwards frames from ch until it closes or the client goes away,
// sending a heartbeat comment every keepalive.
func (s *Stream) Pipe(ch <-chan []byte, keepalive time.Duration) {
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-s.r.Context().Done():
			s.closed = true
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if err := s.SendRaw("", frame); err != nil {
				return
			}
		case <-ticker.C:
			s.Comment("keepalive")
		}
	}
}

// IsClosed reports whether the client has disconnected.
func (s *Stream) IsClosed() bool {
	if s == nil {
		return true
	}
	select {
	case <-s.r.Context().Done():
		s.closed = true
	default:
	}
	return s.closed
}
