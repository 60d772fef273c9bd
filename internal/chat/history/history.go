// Package history folds persisted conversation records into display
// turns. Two incompatible record schemas exist in stored data: the
// original flat event log (one record per stream event) and the current
// one-record-per-turn layout. Callers pick the folding function matching
// the endpoint they fetched from; the output Turn shape is identical to
// what the live stream decoder produces.
package history

import (
	"encoding/json"
	"time"

	"github.com/aihen-app/chat-gateway/internal/chat"
)

// Entry kinds in the flat log schema.
const (
	EntryUser       = "user"
	EntryText       = "text"
	EntryToolOutput = "tool_output"
)

// Entry is one record of the flat log schema. A "text" entry carries a
// snapshot of the assistant turn so far, not a delta; "tool_output"
// entries are separate records belonging to the nearest assistant turn.
type Entry struct {
	Type      string          `json:"type"`
	Content   string          `json:"content,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"` // unix millis
}

// Record is one record of the per-turn schema, with tool invocations
// embedded inline on assistant records.
type Record struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt int64      `json:"created_at,omitempty"` // unix millis
}

// ToolCall is an inline tool invocation on a per-turn record.
type ToolCall struct {
	Tool   string          `json:"tool"`
	Result json.RawMessage `json:"result,omitempty"`
}

// FoldLog reconstructs display turns from the flat log schema.
//
// Later "text" entries replace (not append to) the pending assistant
// content, because each is a fuller snapshot of the same turn. Tool
// outputs attach to the pending assistant turn in arrival order,
// creating one with empty content when none is pending. Records with an
// unrecognized kind are skipped so schema drift in stored data never
// fails a whole conversation load.
func FoldLog(entries []Entry) []chat.Turn {
	turns := make([]chat.Turn, 0, len(entries))
	var pending *chat.Turn

	flush := func() {
		if pending != nil {
			turns = append(turns, *pending)
			pending = nil
		}
	}

	for _, e := range entries {
		switch e.Type {
		case EntryUser:
			flush()
			turns = append(turns, chat.Turn{
				Role:      chat.RoleUser,
				Content:   e.Content,
				Timestamp: entryTime(e.Timestamp),
			})

		case EntryText:
			if pending == nil {
				pending = &chat.Turn{
					Role:      chat.RoleAssistant,
					Timestamp: entryTime(e.Timestamp),
				}
			}
			pending.Content = e.Content

		case EntryToolOutput:
			if pending == nil {
				pending = &chat.Turn{
					Role:      chat.RoleAssistant,
					Timestamp: entryTime(e.Timestamp),
				}
			}
			pending.ToolResults = append(pending.ToolResults, chat.ToolResult{
				ToolName: e.ToolName,
				Result:   decodePayload(e.Data),
			})

		default:
			// Unknown kind: skip and keep going.
		}
	}

	flush()
	return turns
}

// FromRecords reconstructs display turns from the per-turn schema. Each
// record maps to exactly one turn; no folding state is needed. Records
// with an unrecognized role are skipped.
func FromRecords(records []Record) []chat.Turn {
	turns := make([]chat.Turn, 0, len(records))
	for _, r := range records {
		role := chat.Role(r.Role)
		if role != chat.RoleUser && role != chat.RoleAssistant {
			continue
		}
		turn := chat.Turn{
			Role:      role,
			Content:   r.Content,
			Timestamp: entryTime(r.CreatedAt),
		}
		for _, tc := range r.ToolCalls {
			turn.ToolResults = append(turn.ToolResults, chat.ToolResult{
				ToolName: tc.Tool,
				Result:   decodePayload(tc.Result),
			})
		}
		turns = append(turns, turn)
	}
	return turns
}

func entryTime(millis int64) time.Time {
	if millis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}

// decodePayload unwraps a persisted tool payload. Payloads written by
// the legacy backend are double-encoded, so a string value that itself
// parses as JSON is unwrapped one more level; this keeps stored tool
// results identical to what decoding the live stream produces. A string
// that fails the inner parse is kept verbatim.
func decodePayload(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	if s, ok := v.(string); ok {
		var inner interface{}
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			return inner
		}
	}
	return v
}
