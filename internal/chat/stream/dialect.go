package stream

// EventKind classifies a decoded frame.
type EventKind int

const (
	KindContent EventKind = iota
	KindToolResult
	KindError
	KindInfo
	KindSessionID
	// KindIgnore covers marker frames (tool_call, done) that carry no
	// payload the client cares about.
	KindIgnore
)

// UndecodedFramePolicy controls what happens to a frame that is not
// valid JSON after marker stripping.
type UndecodedFramePolicy int

const (
	// FrameAsText appends the raw frame to the accumulated content.
	// Matches the first-generation NDJSON backend, which interleaved
	// plain-text keepalive lines with JSON frames.
	FrameAsText UndecodedFramePolicy = iota
	// FrameDropped discards the frame silently.
	FrameDropped
)

// Machine-readable error codes surfaced through the error/info channel.
// Anything else is opaque display text.
const (
	CodeMonthlyLimitReached = "monthly_limit_reached"
	CodeTokenLimitReached   = "token_limit_reached"
)

// IsLimitCode reports whether an error or info string is one of the
// usage-limit codes that should disable further input.
func IsLimitCode(s string) bool {
	return s == CodeMonthlyLimitReached || s == CodeTokenLimitReached
}

// Dialect is the configuration table mapping a wire vocabulary onto
// event kinds. A new backend dialect is a new table, not new decoder
// control flow.
type Dialect struct {
	Name string

	// TypeField is the discriminator field on each frame. Both shipped
	// dialects use "type"; it is configurable because the vocabularies
	// have already drifted once.
	TypeField string

	// Events maps the value of the discriminator field to an event
	// kind. Unlisted values are skipped.
	Events map[string]EventKind

	// Field names per event kind.
	TextField      string // content delta on KindContent frames
	ToolNameField  string // tool identifier on KindToolResult frames
	ToolDataField  string // payload on KindToolResult frames
	ErrorField     string // message or code on KindError frames
	InfoField      string // message on KindInfo frames
	SessionIDField string // identifier on KindSessionID frames

	Undecoded UndecodedFramePolicy
}

// LegacyNDJSON is the first-generation wire dialect: bare JSON objects,
// one per line, over application/x-ndjson.
func LegacyNDJSON() Dialect {
	return Dialect{
		Name:      "ndjson",
		TypeField: "type",
		Events: map[string]EventKind{
			"text":        KindContent,
			"tool_output": KindToolResult,
			"error":       KindError,
		},
		TextField:     "content",
		ToolNameField: "tool_name",
		ToolDataField: "data",
		ErrorField:    "content",
		Undecoded:     FrameAsText,
	}
}

// CurrentSSE is the current wire dialect: "data: "-prefixed JSON lines
// over text/event-stream.
func CurrentSSE() Dialect {
	return Dialect{
		Name:      "sse",
		TypeField: "type",
		Events: map[string]EventKind{
			"content":     KindContent,
			"tool_result": KindToolResult,
			"error":       KindError,
			"info":        KindInfo,
			"session_id":  KindSessionID,
			"tool_call":   KindIgnore,
			"done":        KindIgnore,
		},
		TextField:      "text",
		ToolNameField:  "tool",
		ToolDataField:  "result",
		ErrorField:     "error",
		InfoField:      "content",
		SessionIDField: "session_id",
		Undecoded:      FrameDropped,
	}
}

// DialectByName resolves a configured dialect name. Unknown names fall
// back to the current dialect.
func DialectByName(name string) Dialect {
	if name == "ndjson" {
		return LegacyNDJSON()
	}
	return CurrentSSE()
}
