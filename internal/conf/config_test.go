package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validUpstream() UpstreamConfig {
	return UpstreamConfig{
		Chat:    ServiceConfig{BaseURL: "https://chat.example.com"},
		Session: ServiceConfig{BaseURL: "https://sessions.example.com"},
	}
}

func TestUpstreamValidate(t *testing.T) {
	cfg := validUpstream()
	require.NoError(t, cfg.Validate())

	cfg.Dialect = DialectNDJSON
	cfg.HistoryShape = HistoryShapeTurns
	require.NoError(t, cfg.Validate())
}

func TestUpstreamValidate_MissingEndpoints(t *testing.T) {
	cfg := validUpstream()
	cfg.Chat.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = validUpstream()
	cfg.Session.BaseURL = ""
	assert.Error(t, cfg.Validate())
}

func TestUpstreamValidate_BadEnums(t *testing.T) {
	cfg := validUpstream()
	cfg.Dialect = "grpc"
	assert.Error(t, cfg.Validate())

	cfg = validUpstream()
	cfg.HistoryShape = "tree"
	assert.Error(t, cfg.Validate())
}
