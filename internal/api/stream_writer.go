package api

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/gpunexus/gpuf/internal/engine"
)

// SSEStreamWriter emits "token" events while a generation runs and a final
// "done" or "error" event.
type SSEStreamWriter struct {
	w       io.Writer
	flusher func()
	begun   bool
	err     error
}

func NewSSEStreamWriter(c *echo.Context) (*SSEStreamWriter, error) {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	return &SSEStreamWriter{
		w:       res,
		flusher: flusher.Flush,
	}, nil
}

// Started reports whether any event was written.
func (s *SSEStreamWriter) Started() bool {
	return s.begun
}

// EmitToken is an inference.StreamFunc. Write failures are kept and
// reported by Err; later tokens are dropped.
func (s *SSEStreamWriter) EmitToken(piece string) {
	if s.err != nil {
		return
	}
	s.err = s.send("token", streamEvent{Text: piece})
}

func (s *SSEStreamWriter) Done(res engine.GenerationResult) error {
	return s.send("done", streamEvent{Result: &res})
}

func (s *SSEStreamWriter) Fail(err error) error {
	body := engineErrorBody(err)
	return s.send("error", streamEvent{Error: &body})
}

func (s *SSEStreamWriter) Err() error {
	return s.err
}

func (s *SSEStreamWriter) send(name string, ev streamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.begun = true
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher()
	return nil
}
