package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aihen-app/chat-gateway/internal/auth"
	"github.com/aihen-app/chat-gateway/internal/auth/middleware"
	"github.com/aihen-app/chat-gateway/internal/conf"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
	"github.com/aihen-app/chat-gateway/internal/service"
	"go.uber.org/zap"
)

type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	chatService *service.ChatService,
	sessionService *service.SessionService,
	usageService *service.UsageService,
	proxyService *service.ProxyService,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, "/health"))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	var verifier *auth.Verifier
	if config.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(config.Auth.JWTSecret, config.Auth.JWTIssuer)
	}

	// All endpoints stay reachable anonymously; a valid token upgrades
	// the identity from the shared anonymous user.
	api := router.Group("/api")
	api.Use(middleware.OptionalAuth(verifier, log))

	chatService.RegisterRoutes(api)
	sessionService.RegisterRoutes(api)
	usageService.RegisterRoutes(api)
	proxyService.RegisterRoutes(api)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: log,
	}
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
