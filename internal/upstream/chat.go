package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/aihen-app/chat-gateway/internal/chat/stream"
	"github.com/aihen-app/chat-gateway/internal/conf"
	"github.com/aihen-app/chat-gateway/internal/pkg/errors"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
)

// sessionIDHeader carries the session id assigned by the chat service
// when the caller did not supply one.
const sessionIDHeader = "X-Session-Id"

// ChatClient streams chat completions from the upstream chat service.
type ChatClient struct {
	svc     service
	dialect stream.Dialect
	log     *logger.Logger
}

func NewChatClient(cfg conf.ServiceConfig, dialect stream.Dialect, log *logger.Logger) *ChatClient {
	return &ChatClient{
		svc:     newService(cfg, NewStreamingHTTPClient()),
		dialect: dialect,
		log:     log,
	}
}

type chatRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id"`
	UserID    string  `json:"user_id"`
}

// SendMessageStream posts a message and decodes the streamed reply,
// invoking cb as frames arrive. The returned string is the full
// accumulated assistant text, also present on a transport error so
// partial output survives a dropped connection.
//
// When sessionID is empty and the response carries the session id
// header, cb.OnSessionID fires once before any content callback.
// When sessionID is set, in-stream session id frames are suppressed.
func (c *ChatClient) SendMessageStream(ctx context.Context, message, sessionID, userID string, cb stream.Callbacks) (string, error) {
	reqBody := chatRequest{Message: message, UserID: userID}
	if sessionID != "" {
		reqBody.SessionID = &sessionID
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrChatInvalidRequest)
	}

	req, err := c.svc.newRequest(ctx, http.MethodPost, "/v1/chat", nil, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrChatUpstream)
	}
	req.Header.Set("Accept", "text/event-stream, application/x-ndjson")

	resp, err := c.svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrChatUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readErrorBody(resp.Body)
		c.log.Warn("chat upstream returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", body))
		return "", errors.New(errors.ErrChatUpstream, fmt.Sprintf("chat upstream status %d: %s", resp.StatusCode, body))
	}

	dec := stream.NewDecoder(c.dialect, cb)
	if sessionID != "" {
		dec.MarkSessionKnown()
	} else if h := resp.Header.Get(sessionIDHeader); h != "" {
		dec.EmitSessionID(h)
	}

	content, err := dec.Run(resp.Body)
	if err != nil {
		return content, errors.Wrap(err, errors.ErrChatStreamAborted)
	}
	return content, nil
}
