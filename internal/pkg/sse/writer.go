// Package sse writes streamed frames to the downstream client as
// NDJSON (one JSON object per line), flushing after every frame.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Writer emits frames on a gin response. Create one per request.
type Writer struct {
	c       *gin.Context
	flusher http.Flusher
}

// NewWriter prepares a stream writer, or fails when the underlying
// connection cannot flush incrementally.
func NewWriter(c *gin.Context) (*Writer, error) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &Writer{c: c, flusher: flusher}, nil
}

// SetStreamHeaders emits the response headers for a chunked stream.
// Must be called before the first frame. Extra headers (e.g.
// X-Session-Id) go through c.Header before this call as well.
func (w *Writer) SetStreamHeaders(contentType string) {
	w.c.Header("Content-Type", contentType)
	w.c.Header("Cache-Control", "no-cache")
	w.c.Header("Connection", "keep-alive")
	w.c.Header("X-Accel-Buffering", "no")
}

// WriteFrame marshals v onto one NDJSON line and flushes.
func (w *Writer) WriteFrame(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.c.Writer, "%s\n", data); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

// ClientGone reports whether the downstream client disconnected.
func (w *Writer) ClientGone() bool {
	return w.c.Request.Context().Err() != nil
}
