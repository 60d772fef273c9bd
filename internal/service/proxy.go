package service

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aihen-app/chat-gateway/internal/conf"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
	"github.com/aihen-app/chat-gateway/internal/pkg/response"
)

// ProxyService passes item-search and image-generation requests through
// to their upstreams unchanged, swapping the caller's credentials for
// the per-service API key. No body inspection happens here.
type ProxyService struct {
	items *httputil.ReverseProxy
	image *httputil.ReverseProxy
	log   *logger.Logger
}

func NewProxyService(upstreams conf.UpstreamConfig, log *logger.Logger) (*ProxyService, error) {
	items, err := newProxy(upstreams.Items, log)
	if err != nil {
		return nil, err
	}
	image, err := newProxy(upstreams.Image, log)
	if err != nil {
		return nil, err
	}
	return &ProxyService{items: items, image: image, log: log}, nil
}

func (s *ProxyService) RegisterRoutes(r *gin.RouterGroup) {
	r.Any("/items/*path", s.forward(s.items))
	r.Any("/query-item/*path", s.forward(s.items))
	r.Any("/generate-image/*path", s.forward(s.image))
}

func (s *ProxyService) forward(proxy *httputil.ReverseProxy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if proxy == nil {
			response.Error(c, http.StatusNotImplemented, "upstream not configured")
			return
		}
		// /api/items/foo becomes /v1/items/foo on the upstream.
		c.Request.URL.Path = "/v1" + strings.TrimPrefix(c.Request.URL.Path, "/api")
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

// newProxy returns nil for an unconfigured upstream so its routes are
// simply not registered.
func newProxy(cfg conf.ServiceConfig, log *logger.Logger) (*httputil.ReverseProxy, error) {
	if cfg.BaseURL == "" {
		return nil, nil
	}
	target, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
		req.Header.Del("Authorization")
		req.Header.Del("Cookie")
		if cfg.APIKey != "" {
			req.Header.Set("x-api-key", cfg.APIKey)
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		log.Error("proxy request failed",
			zap.String("path", req.URL.Path),
			zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}
