package service

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihen-app/chat-gateway/internal/auth/middleware"
	"github.com/aihen-app/chat-gateway/internal/chat/stream"
	"github.com/aihen-app/chat-gateway/internal/conf"
	"github.com/aihen-app/chat-gateway/internal/pkg/logger"
	"github.com/aihen-app/chat-gateway/internal/upstream"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "console"})
	require.NoError(t, err)
	return log
}

// newChatRouter wires a chat service against a fake upstream and
// returns a router serving it under /api.
func newChatRouter(t *testing.T, upstreamURL, dialect string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := testLogger(t)
	var d stream.Dialect
	if dialect == conf.DialectNDJSON {
		d = stream.LegacyNDJSON()
	} else {
		d = stream.CurrentSSE()
	}
	client := upstream.NewChatClient(conf.ServiceConfig{BaseURL: upstreamURL, APIKey: "k"}, d, log)
	// Uncached usage client; the post-stream cache invalidation is a
	// no-op but the call path still runs.
	usage := upstream.NewUsageClient(conf.ServiceConfig{BaseURL: upstreamURL}, nil, log)
	svc := NewChatService(client, usage, dialect, log)

	router := gin.New()
	api := router.Group("/api")
	api.Use(middleware.OptionalAuth(nil, log))
	svc.RegisterRoutes(api)
	return router
}

func decodeFrames(t *testing.T, body *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var frames []map[string]interface{}
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var f map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &f), "frame: %s", line)
		frames = append(frames, f)
	}
	return frames
}

func TestChat_NewSessionStreamsNDJSON(t *testing.T) {
	var gotSessionID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotSessionID, _ = body["session_id"].(string)
		assert.Equal(t, middleware.DefaultUserID, body["user_id"])

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"type":"content","text":"He"}` + "\n"))
		w.Write([]byte(`{"type":"content","text":"Hello"}` + "\n"))
		w.Write([]byte(`{"type":"tool_result","tool":"search","result":"{\"hits\":1}"}` + "\n"))
	}))
	defer srv.Close()

	router := newChatRouter(t, srv.URL, conf.DialectSSE)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	// The minted session id goes upstream, into the header, and into
	// the first frame.
	require.NotEmpty(t, gotSessionID)
	assert.Equal(t, gotSessionID, rec.Header().Get("X-Session-Id"))

	frames := decodeFrames(t, rec.Body)
	require.Len(t, frames, 5)
	assert.Equal(t, "session_id", frames[0]["type"])
	assert.Equal(t, gotSessionID, frames[0]["session_id"])

	// Content frames carry deltas, not accumulations.
	assert.Equal(t, "content", frames[1]["type"])
	assert.Equal(t, "He", frames[1]["text"])
	assert.Equal(t, "llo", frames[2]["text"])

	assert.Equal(t, "tool_result", frames[3]["type"])
	assert.Equal(t, "search", frames[3]["tool"])
	assert.Equal(t, "done", frames[4]["type"])
}

func TestChat_ExistingSessionOmitsSessionFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sess-1", body["session_id"])
		w.Write([]byte(`{"type":"content","text":"ok"}` + "\n"))
	}))
	defer srv.Close()

	router := newChatRouter(t, srv.URL, conf.DialectSSE)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi","session_id":"sess-1"}`))
	router.ServeHTTP(rec, req)

	frames := decodeFrames(t, rec.Body)
	require.Len(t, frames, 2)
	assert.Equal(t, "content", frames[0]["type"])
	assert.Equal(t, "done", frames[1]["type"])
}

func TestChat_LegacyHeaderSessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Session-Id", "legacy-7")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"type":"text","content":"ya"}` + "\n"))
	}))
	defer srv.Close()

	router := newChatRouter(t, srv.URL, conf.DialectNDJSON)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi"}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, "legacy-7", rec.Header().Get("X-Session-Id"))
	frames := decodeFrames(t, rec.Body)
	require.NotEmpty(t, frames)
	assert.Equal(t, "session_id", frames[0]["type"])
	assert.Equal(t, "legacy-7", frames[0]["session_id"])
}

func TestChat_LimitErrorIsLocalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"content","text":"a"}` + "\n"))
		w.Write([]byte(`{"type":"error","error":"monthly_limit_reached"}` + "\n"))
	}))
	defer srv.Close()

	router := newChatRouter(t, srv.URL, conf.DialectSSE)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi","session_id":"s"}`))
	router.ServeHTTP(rec, req)

	frames := decodeFrames(t, rec.Body)
	var errFrame map[string]interface{}
	for _, f := range frames {
		if f["type"] == "error" {
			errFrame = f
		}
	}
	require.NotNil(t, errFrame)
	assert.Equal(t, "monthly_limit_reached", errFrame["error"])
	assert.Equal(t, msgMonthlyLimit, errFrame["message"])
}

func TestChat_UpstreamFailureBeforeStreamIsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	router := newChatRouter(t, srv.URL, conf.DialectSSE)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"hi","session_id":"s"}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestChat_MissingMessageRejected(t *testing.T) {
	router := newChatRouter(t, "http://127.0.0.1:0", conf.DialectSSE)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
