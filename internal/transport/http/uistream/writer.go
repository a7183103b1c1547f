// Package uistream writes the UI message stream protocol consumed by the
// dashboard chat component: one JSON object per SSE data line, ended by [DONE].
package uistream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	HeaderName    = "x-vercel-ai-ui-message-stream"
	HeaderVersion = "v1"
	doneSentinel  = "[DONE]"
)

var ErrStreamingUnsupported = errors.New("response writer does not support flushing")

type frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Delta     string `json:"delta,omitempty"`
	ErrorText string `json:"errorText,omitempty"`
}

type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	textID  string
	started bool
}

func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// SetHeaders must run before the first frame.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(HeaderName, HeaderVersion)
}

// Start opens the message and its single text part.
func (s *Writer) Start(messageID string) error {
	if s.started {
		return nil
	}
	SetHeaders(s.w.Header())
	s.w.WriteHeader(http.StatusOK)
	s.started = true
	s.textID = messageID + "-text"
	if err := s.write(frame{Type: "start", MessageID: messageID}); err != nil {
		return err
	}
	if err := s.write(frame{Type: "start-step"}); err != nil {
		return err
	}
	return s.write(frame{Type: "text-start", ID: s.textID})
}

func (s *Writer) Delta(text string) error {
	if text == "" {
		return nil
	}
	return s.write(frame{Type: "text-delta", ID: s.textID, Delta: text})
}

func (s *Writer) Finish() error {
	for _, f := range []frame{
		{Type: "text-end", ID: s.textID},
		{Type: "finish-step"},
		{Type: "finish"},
	} {
		if err := s.write(f); err != nil {
			return err
		}
	}
	return s.done()
}

// Error reports a failure after the stream started; the client shows errorText.
func (s *Writer) Error(errorText string) error {
	if err := s.write(frame{Type: "error", ErrorText: errorText}); err != nil {
		return err
	}
	return s.done()
}

func (s *Writer) write(f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal stream frame failed: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Writer) done() error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", doneSentinel); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
