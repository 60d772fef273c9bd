package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aihen-app/chat-gateway/internal/chat/stream"
	"github.com/aihen-app/chat-gateway/internal/conf"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
	"github.com/aihen-app/chat-gateway/internal/pkg/redis"
	"github.com/aihen-app/chat-gateway/internal/server"
	"github.com/aihen-app/chat-gateway/internal/service"
	"github.com/aihen-app/chat-gateway/internal/upstream"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Usage cache is optional; the gateway runs without Redis.
	var cache *redis.Client
	if config.Redis.Addr != "" {
		cache, err = redis.New(&config.Redis, log)
		if err != nil {
			log.Warn("redis unavailable, usage cache disabled", zap.Error(err))
		} else {
			defer cache.Close()
		}
	}

	// Upstream clients
	dialect := stream.DialectByName(config.Upstream.Dialect)
	chatClient := upstream.NewChatClient(config.Upstream.Chat, dialect, log)
	sessionClient := upstream.NewSessionClient(config.Upstream.Session, config.Upstream.HistoryShape, log)
	usageClient := upstream.NewUsageClient(config.Upstream.Usage, cache, log)

	// Services
	chatService := service.NewChatService(chatClient, usageClient, config.Upstream.Dialect, log)
	sessionService := service.NewSessionService(sessionClient, log)
	usageService := service.NewUsageService(usageClient, log)
	proxyService, err := service.NewProxyService(config.Upstream, log)
	if err != nil {
		log.Fatal("failed to initialize proxies", zap.Error(err))
	}

	httpServer := server.NewHTTPServer(config, log, chatService, sessionService, usageService, proxyService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
