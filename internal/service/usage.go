package service

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aihen-app/chat-gateway/internal/auth/middleware"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
	"github.com/aihen-app/chat-gateway/internal/pkg/response"
	"github.com/aihen-app/chat-gateway/internal/upstream"
)

// UsageService exposes the caller's quota snapshot. The client uses
// IsLimited to gate the chat input.
type UsageService struct {
	usage *upstream.UsageClient
	log   *logger.Logger
}

func NewUsageService(usage *upstream.UsageClient, log *logger.Logger) *UsageService {
	return &UsageService{usage: usage, log: log}
}

func (s *UsageService) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/usage", s.GetUsage)
}

func (s *UsageService) GetUsage(c *gin.Context) {
	userID := middleware.UserID(c)
	sessionID := c.Query("session_id")

	usage, err := s.usage.GetUserUsage(c.Request.Context(), userID, sessionID)
	if err != nil {
		s.log.Error("failed to fetch usage", zap.String("user_id", userID), zap.Error(err))
		response.HandleError(c, err)
		return
	}
	response.Success(c, usage)
}
