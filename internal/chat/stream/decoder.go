// Package stream decodes the chunked chat response body into typed
// events. Frames are newline-delimited JSON objects, optionally carrying
// an SSE "data: " marker; the decoder reassembles frames across network
// chunk boundaries and dispatches callbacks in strict arrival order.
package stream

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aihen-app/chat-gateway/internal/chat"
)

const dataMarker = "data: "

// Callbacks are the per-event-kind subscriptions. Every field is
// optional; events without a registered callback are decoded and
// discarded. OnChunk receives the running concatenation of content
// deltas, not the delta itself.
type Callbacks struct {
	OnChunk      func(accumulated string)
	OnToolResult func(result chat.ToolResult)
	OnError      func(message string)
	OnInfo       func(content string)
	OnSessionID  func(sessionID string)
}

// Decoder turns one response body into an ordered event sequence. A
// Decoder holds per-request state and must not be shared between
// concurrent requests.
type Decoder struct {
	dialect     Dialect
	cb          Callbacks
	pending     string
	full        strings.Builder
	sessionSeen bool
}

// NewDecoder creates a decoder for one in-flight request.
func NewDecoder(d Dialect, cb Callbacks) *Decoder {
	return &Decoder{dialect: d, cb: cb}
}

// MarkSessionKnown records that the caller already holds a session
// identifier. Any session-id signal decoded afterwards is informational
// only and will not fire OnSessionID.
func (d *Decoder) MarkSessionKnown() {
	d.sessionSeen = true
}

// EmitSessionID delivers a transport-level session id (e.g. the
// X-Session-Id response header) through the same one-shot gate as
// in-stream frames. Call before Run so ordering against OnChunk holds.
func (d *Decoder) EmitSessionID(id string) {
	if d.sessionSeen || id == "" {
		return
	}
	d.sessionSeen = true
	if d.cb.OnSessionID != nil {
		d.cb.OnSessionID(id)
	}
}

// Run consumes the body until EOF, dispatching callbacks per frame, and
// returns the final concatenated content. A read error from the body is
// returned as-is; malformed individual frames never abort the stream.
func (d *Decoder) Run(body io.Reader) (string, error) {
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			d.pending += string(buf[:n])
			for {
				i := strings.IndexByte(d.pending, '\n')
				if i < 0 {
					break
				}
				frame := d.pending[:i]
				d.pending = d.pending[i+1:]
				d.processFrame(frame)
			}
		}
		if err == io.EOF {
			// Trailing frame without a final newline.
			d.processFrame(d.pending)
			d.pending = ""
			return d.full.String(), nil
		}
		if err != nil {
			return d.full.String(), err
		}
	}
}

// Content returns the text accumulated so far. Valid mid-stream (from
// inside a callback) and after Run returns.
func (d *Decoder) Content() string {
	return d.full.String()
}

func (d *Decoder) processFrame(raw string) {
	frame := strings.TrimSpace(raw)
	if frame == "" {
		return
	}
	if strings.HasPrefix(frame, dataMarker) {
		frame = strings.TrimSpace(strings.TrimPrefix(frame, dataMarker))
		if frame == "" {
			return
		}
	}

	if !gjson.Valid(frame) || !gjson.Parse(frame).IsObject() {
		d.undecoded(frame)
		return
	}
	obj := gjson.Parse(frame)

	kind, ok := d.dialect.Events[obj.Get(d.dialect.TypeField).String()]
	if !ok {
		// Unknown discriminator value: tolerate forward drift.
		return
	}

	switch kind {
	case KindContent:
		d.appendContent(obj.Get(d.dialect.TextField))

	case KindToolResult:
		if d.cb.OnToolResult != nil {
			d.cb.OnToolResult(chat.ToolResult{
				ToolName: obj.Get(d.dialect.ToolNameField).String(),
				Result:   decodeToolPayload(obj.Get(d.dialect.ToolDataField)),
			})
		}

	case KindError:
		if d.cb.OnError != nil {
			d.cb.OnError(obj.Get(d.dialect.ErrorField).String())
		}

	case KindInfo:
		if d.cb.OnInfo != nil {
			d.cb.OnInfo(obj.Get(d.dialect.InfoField).String())
		}

	case KindSessionID:
		d.EmitSessionID(obj.Get(d.dialect.SessionIDField).String())

	case KindIgnore:
	}
}

func (d *Decoder) undecoded(frame string) {
	if d.dialect.Undecoded == FrameDropped {
		return
	}
	d.full.WriteString(frame)
	if d.cb.OnChunk != nil {
		d.cb.OnChunk(d.full.String())
	}
}

func (d *Decoder) appendContent(field gjson.Result) {
	if field.Type == gjson.String {
		d.full.WriteString(field.String())
	}
	if d.cb.OnChunk != nil {
		d.cb.OnChunk(d.full.String())
	}
}

// decodeToolPayload unwraps a possibly double-encoded tool result. A
// string payload gets one more decode attempt; if that fails the raw
// string is kept verbatim.
func decodeToolPayload(field gjson.Result) interface{} {
	if !field.Exists() {
		return nil
	}
	if field.Type == gjson.String {
		inner := field.String()
		var v interface{}
		if err := json.Unmarshal([]byte(inner), &v); err != nil {
			return inner
		}
		return v
	}
	var v interface{}
	if err := json.Unmarshal([]byte(field.Raw), &v); err != nil {
		return field.Raw
	}
	return v
}
