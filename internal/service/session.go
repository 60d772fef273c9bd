package service

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aihen-app/chat-gateway/internal/auth/middleware"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
	"github.com/aihen-app/chat-gateway/internal/pkg/response"
	"github.com/aihen-app/chat-gateway/internal/upstream"
)

// SessionService exposes stored-session listing, reconstruction, and
// deletion.
type SessionService struct {
	sessions *upstream.SessionClient
	log      *logger.Logger
}

func NewSessionService(sessions *upstream.SessionClient, log *logger.Logger) *SessionService {
	return &SessionService{sessions: sessions, log: log}
}

func (s *SessionService) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/sessions", s.ListSessions)
	r.GET("/sessions/:id/history", s.GetHistory)
	r.DELETE("/sessions/:id", s.DeleteSession)
}

func (s *SessionService) ListSessions(c *gin.Context) {
	userID := middleware.UserID(c)

	sessions, err := s.sessions.ListSessions(c.Request.Context(), userID)
	if err != nil {
		s.log.Error("failed to list sessions", zap.String("user_id", userID), zap.Error(err))
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"sessions": sessions})
}

// GetHistory returns the session's conversation reconstructed into
// display turns.
func (s *SessionService) GetHistory(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "session id is required")
		return
	}

	turns, err := s.sessions.GetHistory(c.Request.Context(), id)
	if err != nil {
		s.log.Error("failed to fetch history", zap.String("session_id", id), zap.Error(err))
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"turns": turns})
}

func (s *SessionService) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "session id is required")
		return
	}

	if err := s.sessions.DeleteSession(c.Request.Context(), id); err != nil {
		s.log.Error("failed to delete session", zap.String("session_id", id), zap.Error(err))
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": id})
}
