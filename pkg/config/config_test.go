package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAPIKey(t *testing.T) {
	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "from-env")
		key, err := ResolveAPIKey("explicit")
		require.NoError(t, err)
		assert.Equal(t, "explicit", key)
	})

	t.Run("environment fallback", func(t *testing.T) {
		t.Setenv(APIKeyEnv, " from-env ")
		key, err := ResolveAPIKey("")
		require.NoError(t, err)
		assert.Equal(t, "from-env", key)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(APIKeyEnv, "")
		_, err := ResolveAPIKey("   ")
		assert.True(t, errors.Is(err, ErrMissingAPIKey))
	})
}

func TestLoadConfig_RequiresAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(APIKeyEnv, "key")
	t.Setenv("MEDIA_PREDICT_BASE_URL", "http://localhost:9000")
	t.Setenv("MEDIA_PREDICT_HTTP_TIMEOUT_SECONDS", "5")
	t.Setenv("DEBUG_MODE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.DebugMode)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidNumber(t *testing.T) {
	t.Setenv(APIKeyEnv, "key")
	t.Setenv("MEDIA_PREDICT_HTTP_TIMEOUT_SECONDS", "soon")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.APIKey = "key"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Empty(t, cfg.OTLPEndpoint)

	cfg.HTTPTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestDefaultConfigPath(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv("MEDIA_PREDICT_CONFIG", custom)
	assert.Equal(t, custom, DefaultConfigPath())
}

func TestLoadTimeouts(t *testing.T) {
	t.Setenv("MEDIA_PREDICT_POLL_INTERVAL_MS", "250")
	t.Setenv("MEDIA_PREDICT_TASK_TIMEOUT_SECONDS", "90")
	t.Setenv("MEDIA_PREDICT_INITIAL_WAIT", "not-a-number")

	timeouts := LoadTimeouts()
	assert.Equal(t, 250*time.Millisecond, timeouts.PollInterval)
	assert.Equal(t, 90*time.Second, timeouts.TaskTimeout)
	assert.Equal(t, DefaultTimeouts().InitialWait, timeouts.InitialWait)
}

func TestDefaultTimeouts(t *testing.T) {
	timeouts := DefaultTimeouts()
	assert.Equal(t, time.Second, timeouts.PollInterval)
	assert.Zero(t, timeouts.TaskTimeout)
}
