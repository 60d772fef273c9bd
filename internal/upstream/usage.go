package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/aihen-app/chat-gateway/internal/chat"
	"github.com/aihen-app/chat-gateway/internal/conf"
	"github.com/aihen-app/chat-gateway/internal/pkg/errors"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
	"github.com/aihen-app/chat-gateway/internal/pkg/redis"
)

// usageCacheTTL keeps usage lookups off the hot path without letting a
// stale limit verdict linger.
const usageCacheTTL = 30 * time.Second

// UsageClient reads token consumption from the usage service, with a
// short Redis read-through cache per user.
type UsageClient struct {
	svc   service
	cache *redis.Client
	log   *logger.Logger
}

// NewUsageClient builds a usage client. cache may be nil, in which
// case every call hits the upstream.
func NewUsageClient(cfg conf.ServiceConfig, cache *redis.Client, log *logger.Logger) *UsageClient {
	return &UsageClient{
		svc:   newService(cfg, NewHTTPClient(cfg.Timeout)),
		cache: cache,
		log:   log,
	}
}

// GetUserUsage returns the user's current consumption and limit state.
func (c *UsageClient) GetUserUsage(ctx context.Context, userID, sessionID string) (*chat.Usage, error) {
	key := "usage:" + userID

	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, key); err == nil {
			var u chat.Usage
			if err := json.Unmarshal([]byte(raw), &u); err == nil {
				return &u, nil
			}
		}
	}

	q := url.Values{}
	q.Set("user_id", userID)
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}

	req, err := c.svc.newRequest(ctx, http.MethodGet, "/v1/usage", q, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUsageUpstream)
	}
	resp, err := c.svc.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUsageUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(errors.ErrUsageUpstream, fmt.Sprintf("usage upstream status %d: %s", resp.StatusCode, readErrorBody(resp.Body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUsageUpstream)
	}

	var u chat.Usage
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, errors.New(errors.ErrUsageUpstream, fmt.Sprintf("decode usage payload: %v", err))
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, string(body), usageCacheTTL); err != nil {
			c.log.Warn("failed to cache usage", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return &u, nil
}

// InvalidateUsage drops the cached entry after an action that changes
// consumption, so the next read reflects it.
func (c *UsageClient) InvalidateUsage(ctx context.Context, userID string) {
	if c.cache == nil {
		return
	}
	if _, err := c.cache.Del(ctx, "usage:"+userID); err != nil {
		c.log.Warn("failed to invalidate usage cache", zap.String("user_id", userID), zap.Error(err))
	}
}
