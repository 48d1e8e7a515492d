// Package sse writes Server-Sent Events to an HTTP response.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

var (
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("sse: writer closed")
	// ErrStreamingUnsupported is returned by Start when the response cannot
	// be flushed.
	ErrStreamingUnsupported = errors.New("sse: streaming not supported")
)

// Writer serializes events onto one response. It is safe for concurrent
// use: each event is written and flushed as a single frame.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	started bool
	closed  bool
}

// NewWriter wraps w. Call Start before writing events.
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{
		w:       w,
		flusher: flusher,
	}
}

// Start sends the stream headers. Calling it twice is a no-op.
func (s *Writer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.flusher == nil {
		return ErrStreamingUnsupported
	}

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()

	s.started = true
	return nil
}

// WriteEvent writes one event with JSON data:
//
//	id: {id}
//	event: {name}
//	data: {json}
//
// Empty id or name lines are omitted.
func (s *Writer) WriteEvent(id, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal SSE data: %w", err)
	}
	if strings.ContainsAny(id, "\r\n") || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("sse: newline in event id or name")
	}

	var frame bytes.Buffer
	if id != "" {
		frame.WriteString("id: " + id + "\n")
	}
	if name != "" {
		frame.WriteString("event: " + name + "\n")
	}
	frame.WriteString("data: ")
	frame.Write(payload)
	frame.WriteString("\n\n")
	return s.write(frame.Bytes())
}

// WriteComment writes a comment line, used as a keep-alive.
func (s *Writer) WriteComment(comment string) error {
	return s.write([]byte(": " + strings.ReplaceAll(comment, "\n", " ") + "\n\n"))
}

func (s *Writer) write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Close rejects further writes.
func (s *Writer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// IsClosed reports whether Close was called.
func (s *Writer) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
