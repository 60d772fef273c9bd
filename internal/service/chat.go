package service

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aihen-app/chat-gateway/internal/auth/middleware"
	"github.com/aihen-app/chat-gateway/internal/chat"
	"github.com/aihen-app/chat-gateway/internal/chat/stream"
	"github.com/aihen-app/chat-gateway/internal/conf"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
	"github.com/aihen-app/chat-gateway/internal/pkg/response"
	"github.com/aihen-app/chat-gateway/internal/pkg/sse"
	"github.com/aihen-app/chat-gateway/internal/upstream"
)

// User-facing messages for stream failures. Machine-readable codes
// travel alongside so the client can branch without string matching.
const (
	msgGenericError = "エラーが発生しました。もう一度お試しください。"
	msgMonthlyLimit = "今月の利用上限に達しました。来月までお待ちください。"
	msgTokenLimit   = "利用上限に達しました。ログインしてください。"
)

// ChatService exposes the streaming chat endpoint. It re-emits the
// decoded upstream stream to the browser as NDJSON, one frame per line.
type ChatService struct {
	chat    *upstream.ChatClient
	usage   *upstream.UsageClient
	dialect string
	log     *logger.Logger
}

// NewChatService builds the chat endpoint. usage may be nil when no
// usage service is configured.
func NewChatService(chatClient *upstream.ChatClient, usage *upstream.UsageClient, dialect string, log *logger.Logger) *ChatService {
	if dialect == "" {
		dialect = conf.DialectSSE
	}
	return &ChatService{chat: chatClient, usage: usage, dialect: dialect, log: log}
}

func (s *ChatService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", s.Chat)
}

type chatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

// chatFrame is one NDJSON line sent to the browser. Field usage
// depends on Type, matching the current wire vocabulary.
type chatFrame struct {
	Type      string      `json:"type"`
	Text      string      `json:"text,omitempty"`
	Tool      string      `json:"tool,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Content   string      `json:"content,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
}

// Chat handles POST /api/chat. The response is a chunked NDJSON stream;
// when a new session is assigned its id is surfaced both as the
// X-Session-Id header and as the first frame.
func (s *ChatService) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	userID := middleware.UserID(c)

	w, err := sse.NewWriter(c)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	sessionID := req.SessionID
	if sessionID == "" && s.dialect == conf.DialectSSE {
		// The current protocol expects the caller to name the session,
		// so mint one up front instead of waiting for the upstream.
		sessionID = uuid.NewString()
	}

	ctx := logger.WithUserID(c.Request.Context(), userID)
	if sessionID != "" {
		ctx = logger.WithSessionID(ctx, sessionID)
	}
	log := s.log.WithContext(ctx)

	// Headers and frames are deferred until the first upstream event so
	// a pre-stream failure can still produce a plain JSON error.
	started := false
	emit := func(f chatFrame) {
		if w.ClientGone() {
			return
		}
		if !started {
			if sessionID != "" {
				c.Header("X-Session-Id", sessionID)
			}
			w.SetStreamHeaders("application/x-ndjson")
			started = true
			if sessionID != "" && req.SessionID == "" {
				_ = w.WriteFrame(chatFrame{Type: "session_id", SessionID: sessionID})
			}
		}
		if err := w.WriteFrame(f); err != nil {
			log.Warn("failed to write stream frame", zap.Error(err))
		}
	}

	var prev int
	cb := stream.Callbacks{
		OnChunk: func(accumulated string) {
			delta := accumulated[prev:]
			prev = len(accumulated)
			if delta == "" {
				return
			}
			emit(chatFrame{Type: "content", Text: delta})
		},
		OnToolResult: func(tr chat.ToolResult) {
			emit(chatFrame{Type: "tool_result", Tool: tr.ToolName, Result: tr.Result})
		},
		OnError: func(code string) {
			emit(chatFrame{Type: "error", Error: code, Message: localizedError(code)})
		},
		OnInfo: func(msg string) {
			emit(chatFrame{Type: "info", Content: msg})
		},
		OnSessionID: func(id string) {
			// Legacy protocol: the upstream names the session. The
			// header lands via the deferred first write.
			sessionID = id
		},
	}

	_, err = s.chat.SendMessageStream(ctx, req.Message, sessionID, userID, cb)
	if err != nil {
		log.Error("chat stream failed", zap.Error(err))
		if !started {
			response.HandleError(c, err)
			return
		}
		emit(chatFrame{Type: "error", Message: msgGenericError})
		return
	}

	// The completed exchange consumed tokens; drop the cached usage so
	// the next lookup reflects it.
	if s.usage != nil {
		s.usage.InvalidateUsage(ctx, userID)
	}

	emit(chatFrame{Type: "done"})
}

func localizedError(code string) string {
	switch code {
	case stream.CodeMonthlyLimitReached:
		return msgMonthlyLimit
	case stream.CodeTokenLimitReached:
		return msgTokenLimit
	default:
		return msgGenericError
	}
}
