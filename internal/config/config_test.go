package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
	assert.Equal(t, 30*24*time.Hour, cfg.Transcripts.Retention)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REMOTE_TIMEOUT", "750ms")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("GENERATION_TEMPERATURE", "0.2")
	t.Setenv("FRONTEND_URL", "https://vish.example, http://localhost:5173")
	t.Setenv("CONVERSATION_LOG_ENABLED", "off")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 750*time.Millisecond, cfg.Remote.Timeout)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerWindow)
	assert.InDelta(t, 0.2, cfg.Generation.Temperature, 1e-9)
	assert.Equal(t, []string{"https://vish.example", "http://localhost:5173"}, cfg.AllowedOrigins())
	assert.False(t, cfg.ConversationLog.Enabled)
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv("REMOTE_TIMEOUT", "soon")
	t.Setenv("RETRIEVAL_TOP_K", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 3, cfg.Knowledge.TopK)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("MCP_SERVER_URL", "not a url")
	_, err := Load()
	assert.Error(t, err)
}

func TestGenerationConfigured(t *testing.T) {
	c := &Config{}
	assert.False(t, c.GenerationConfigured())
	c.Generation = GenerationConfig{APIKey: "k", InstanceName: "i", Deployment: "d"}
	assert.True(t, c.GenerationConfigured())
}
