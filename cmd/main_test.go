package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/media_predict/pkg/config"
	"github.com/gomcpgo/media_predict/pkg/types"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addGlobalFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, env := range envKeys {
		t.Setenv(env, "")
	}
	t.Setenv("MEDIA_PREDICT_MODEL", "")
}

func TestLoadConfig_Precedence(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
apiKey: file-key
baseUrl: https://staging.example.com/v1
model: file-model
httpTimeout: 45s
logLevel: warn
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))

	c, err := loadConfig(testFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, "file-key", c.APIKey)
	assert.Equal(t, "https://staging.example.com/v1", c.BaseURL)
	assert.Equal(t, "file-model", c.Model)
	assert.Equal(t, 45*time.Second, c.HTTPTimeout)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, "text", c.LogFormat)

	t.Setenv("MEDIA_PREDICT_MODEL", "env-model")
	t.Setenv("LOG_LEVEL", "error")
	c, err = loadConfig(testFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, "env-model", c.Model)
	assert.Equal(t, "error", c.LogLevel)

	c, err = loadConfig(testFlags(t, "--config", path, "--model", " flag-model ", "--log-level", "debug"))
	require.NoError(t, err)
	assert.Equal(t, "flag-model", c.Model)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "file-key", c.APIKey)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearConfigEnv(t)
	c, err := loadConfig(testFlags(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--api-key", "k"))
	require.NoError(t, err)
	assert.Equal(t, "k", c.APIKey)
	assert.Equal(t, config.DefaultBaseURL, c.BaseURL)
	assert.Equal(t, config.Defaults().HTTPTimeout, c.HTTPTimeout)
	assert.Empty(t, c.OTLPEndpoint)
}

func TestLoadConfig_Environment(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv(config.APIKeyEnv, "env-key")
	t.Setenv("MEDIA_PREDICT_HTTP_TIMEOUT_SECONDS", "5")
	t.Setenv("DEBUG_MODE", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	c, err := loadConfig(testFlags(t, "--config", ""))
	require.NoError(t, err)
	assert.Equal(t, "env-key", c.APIKey)
	assert.Equal(t, 5*time.Second, c.HTTPTimeout)
	assert.True(t, c.DebugMode)
	assert.Equal(t, "localhost:4318", c.OTLPEndpoint)

	t.Setenv("MEDIA_PREDICT_HTTP_TIMEOUT_SECONDS", "soon")
	_, err = loadConfig(testFlags(t, "--config", ""))
	assert.Error(t, err)
}

func TestLoadConfig_BadFile(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baseUrl: [unterminated"), 0600))

	_, err := loadConfig(testFlags(t, "--config", path))
	assert.Error(t, err)
}

func TestColorState(t *testing.T) {
	for _, state := range []types.PredictionTaskState{"predicted", "failed_timeout", "pending"} {
		assert.Contains(t, colorState(state), string(state))
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"predict", "status", "results", "list", "serve", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
