package chat

import "time"

// Role identifies which side of the conversation a turn belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolResult records the outcome of one tool invocation made by the
// assistant during a turn. Result is tool-specific and kept opaque:
// decoded JSON when the payload parses, the raw string otherwise.
type ToolResult struct {
	ToolName string      `json:"tool_name"`
	Result   interface{} `json:"result"`
}

// Turn is one displayable unit of conversation. A user turn's content is
// fixed at creation; an assistant turn's content grows while its stream
// is in flight and is frozen when the stream ends. ToolResults is kept
// in arrival order.
type Turn struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// Session is the summary metadata for a stored conversation. Title falls
// back to the first user message when none was stored explicitly.
type Session struct {
	ID        string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Usage is the quota snapshot returned by the usage service. IsLimited
// gates the chat input on the client.
type Usage struct {
	IsLimited     bool  `json:"is_limited"`
	MonthlyTokens int64 `json:"monthly_tokens,omitempty"`
	TokenLimit    int64 `json:"token_limit,omitempty"`
}
