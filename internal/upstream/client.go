// Package upstream holds the typed clients for the external services
// the gateway fronts: chat completion, session storage, and usage
// accounting. All of them authenticate with a per-service API key
// header; none of them are retried here.
package upstream

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aihen-app/chat-gateway/internal/conf"
)

const defaultTimeout = 30 * time.Second

// NewHTTPClient creates an HTTP client with pooled connections for
// request/response upstream calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewStreamingHTTPClient creates a client for chunked response bodies.
// No overall timeout: a chat response legitimately stays open for
// minutes, so deadlines come from the request context instead.
func NewStreamingHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		},
	}
}

// service is the shared request plumbing for one upstream endpoint.
type service struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newService(cfg conf.ServiceConfig, client *http.Client) service {
	return service{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

func (s *service) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}
	return req, nil
}

// readErrorBody drains up to a few KB of an error response for
// diagnostics without holding the stream open.
func readErrorBody(body io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(body, 4096))
	return strings.TrimSpace(string(b))
}
