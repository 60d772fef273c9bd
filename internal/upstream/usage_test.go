package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihen-app/chat-gateway/internal/conf"
	"github.com/aihen-app/chat-gateway/internal/pkg/errors"
)

func TestGetUserUsage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/usage", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "s1", r.URL.Query().Get("session_id"))
		w.Write([]byte(`{"is_limited":true,"monthly_tokens":120000,"token_limit":100000}`))
	}))
	defer srv.Close()

	client := NewUsageClient(conf.ServiceConfig{BaseURL: srv.URL}, nil, testLogger(t))
	u, err := client.GetUserUsage(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.True(t, u.IsLimited)
	assert.Equal(t, int64(120000), u.MonthlyTokens)
	assert.Equal(t, int64(100000), u.TokenLimit)

	// No cache configured, so a second call hits the upstream again.
	_, err = client.GetUserUsage(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidateUsage_NoCache(t *testing.T) {
	client := NewUsageClient(conf.ServiceConfig{BaseURL: "http://unused"}, nil, testLogger(t))
	client.InvalidateUsage(context.Background(), "u1")
}

func TestGetUserUsage_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewUsageClient(conf.ServiceConfig{BaseURL: srv.URL}, nil, testLogger(t))
	_, err := client.GetUserUsage(context.Background(), "u1", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrUsageUpstream, errors.ExtractCode(err))
}
