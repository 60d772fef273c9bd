package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/aihen-app/chat-gateway/internal/chat"
	"github.com/aihen-app/chat-gateway/internal/chat/history"
	"github.com/aihen-app/chat-gateway/internal/conf"
	"github.com/aihen-app/chat-gateway/internal/pkg/errors"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
)

const (
	maxSessionResults = 50
	maxHistoryResults = 100
)

// SessionClient reads and deletes conversation sessions held by the
// session service. History payload shape is configured, not sniffed:
// "log" folds a flat event log, "turns" maps per-turn records.
type SessionClient struct {
	svc   service
	shape string
	log   *logger.Logger
}

func NewSessionClient(cfg conf.ServiceConfig, shape string, log *logger.Logger) *SessionClient {
	if shape == "" {
		shape = conf.HistoryShapeLog
	}
	return &SessionClient{
		svc:   newService(cfg, NewHTTPClient(cfg.Timeout)),
		shape: shape,
		log:   log,
	}
}

// ListSessions returns the caller's sessions, newest first as the
// upstream orders them.
func (c *SessionClient) ListSessions(ctx context.Context, userID string) ([]chat.Session, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("max_results", fmt.Sprintf("%d", maxSessionResults))

	body, err := c.get(ctx, "/v1/sessions", q)
	if err != nil {
		return nil, err
	}

	items := gjson.GetBytes(body, "sessions")
	if !items.Exists() {
		// Some deployments return the array directly.
		items = gjson.ParseBytes(body)
	}
	if !items.IsArray() {
		return nil, errors.New(errors.ErrSessionBadShape, "session list is not an array")
	}

	sessions := make([]chat.Session, 0, len(items.Array()))
	for _, item := range items.Array() {
		s := chat.Session{
			ID:        item.Get("session_id").String(),
			UserID:    item.Get("actor_id").String(),
			Title:     item.Get("title").String(),
			CreatedAt: parseTime(item.Get("created_at")),
			UpdatedAt: parseTime(item.Get("updated_at")),
		}
		if s.Title == "" {
			s.Title = item.Get("first_message").String()
		}
		if s.ID == "" {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// GetHistory fetches and reconstructs one session's conversation.
func (c *SessionClient) GetHistory(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	q := url.Values{}
	q.Set("max_results", fmt.Sprintf("%d", maxHistoryResults))

	body, err := c.get(ctx, "/v1/sessions/"+url.PathEscape(sessionID)+"/history", q)
	if err != nil {
		return nil, err
	}

	items := gjson.GetBytes(body, "history")
	if !items.Exists() {
		items = gjson.ParseBytes(body)
	}
	if !items.IsArray() {
		return nil, errors.New(errors.ErrSessionBadShape, "history payload is not an array")
	}

	switch c.shape {
	case conf.HistoryShapeTurns:
		records := make([]history.Record, 0, len(items.Array()))
		for _, item := range items.Array() {
			var rec history.Record
			if err := unmarshalResult(item, &rec); err != nil {
				c.log.Warn("skipping malformed history record", zap.Error(err))
				continue
			}
			records = append(records, rec)
		}
		return history.FromRecords(records), nil
	default:
		entries := make([]history.Entry, 0, len(items.Array()))
		for _, item := range items.Array() {
			var e history.Entry
			if err := unmarshalResult(item, &e); err != nil {
				c.log.Warn("skipping malformed history entry", zap.Error(err))
				continue
			}
			entries = append(entries, e)
		}
		return history.FoldLog(entries), nil
	}
}

// DeleteSession removes one session upstream.
func (c *SessionClient) DeleteSession(ctx context.Context, sessionID string) error {
	req, err := c.svc.newRequest(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(sessionID), nil, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrSessionUpstream)
	}
	resp, err := c.svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrSessionUpstream)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.New(errors.ErrSessionNotFound, "session not found")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.New(errors.ErrSessionUpstream, fmt.Sprintf("session upstream status %d: %s", resp.StatusCode, readErrorBody(resp.Body)))
	}
	return nil
}

func (c *SessionClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := c.svc.newRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSessionUpstream)
	}
	resp, err := c.svc.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSessionUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.New(errors.ErrSessionNotFound, "session not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(errors.ErrSessionUpstream, fmt.Sprintf("session upstream status %d: %s", resp.StatusCode, readErrorBody(resp.Body)))
	}
	return io.ReadAll(resp.Body)
}

// parseTime accepts RFC3339 strings and unix timestamps in either
// seconds or milliseconds.
func parseTime(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.String:
		if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return t
		}
	case gjson.Number:
		n := v.Int()
		if n > 1e12 {
			return time.UnixMilli(n)
		}
		if n > 0 {
			return time.Unix(n, 0)
		}
	}
	return time.Time{}
}

func unmarshalResult(item gjson.Result, v interface{}) error {
	return json.Unmarshal([]byte(item.Raw), v)
}
