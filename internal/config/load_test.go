package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/carscout/pkg/provider"
)

// inTempDir runs the test from an empty directory so no stray carscout.yaml is read.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 50051, cfg.Server.GRPCPort)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "json", cfg.Server.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)

	assert.Equal(t, provider.DefaultBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, provider.DefaultModel, cfg.LLM.Model)
	assert.Empty(t, cfg.LLM.APIKeys)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, time.Second, cfg.LLM.InitialDelay)

	assert.False(t, cfg.Cache.Enabled())
	assert.True(t, cfg.Breaker.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("CARSCOUT_SERVER_GRPC_PORT", "6000")
	t.Setenv("CARSCOUT_SERVER_LOG_LEVEL", "debug")
	t.Setenv("CARSCOUT_LLM_API_KEYS", " key-a, key-b ,,key-a")
	t.Setenv("CARSCOUT_LLM_INITIAL_DELAY", "250ms")
	t.Setenv("CARSCOUT_CACHE_REDIS_ADDR", "localhost:6379")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Server.GRPCPort)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.LLM.APIKeys)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.RetryConfig().InitialDelay)
	assert.Equal(t, 3, cfg.LLM.RetryConfig().MaxAttempts)
	assert.True(t, cfg.Cache.Enabled())
}

func TestLoadFromFile(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9999
  log_format: text
llm:
  model: gemini-test
  api_keys: [one, two]
breaker:
  failure_threshold: 0
`), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "text", cfg.Server.LogFormat)
	assert.Equal(t, "gemini-test", cfg.LLM.Model)
	assert.Equal(t, []string{"one", "two"}, cfg.LLM.APIKeys)
	assert.False(t, cfg.Breaker.Enabled())
}

func TestLoadDefaultFileInWorkingDir(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "carscout.yaml"), []byte("llm:\n  max_attempts: 5\n"), 0o600))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.LLM.MaxAttempts)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	inTempDir(t)
	_, err := Load("does-not-exist.yaml", nil)
	assert.Error(t, err)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("CARSCOUT_LLM_MODEL", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("model", "", "")
	fs.Int("grpc-port", 0, "")
	require.NoError(t, fs.Parse([]string{"--model", "from-flag"}))

	cfg, err := Load("", map[string]*pflag.Flag{
		"llm.model":        fs.Lookup("model"),
		"server.grpc_port": fs.Lookup("grpc-port"),
	})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.LLM.Model)
	assert.Equal(t, 50051, cfg.Server.GRPCPort, "unset flags keep lower-precedence values")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad log level", map[string]string{"CARSCOUT_SERVER_LOG_LEVEL": "loud"}},
		{"bad port", map[string]string{"CARSCOUT_SERVER_HTTP_PORT": "70000"}},
		{"zero attempts", map[string]string{"CARSCOUT_LLM_MAX_ATTEMPTS": "0"}},
		{"bad base url", map[string]string{"CARSCOUT_LLM_BASE_URL": "not a url"}},
		{"bad redis addr", map[string]string{"CARSCOUT_CACHE_REDIS_ADDR": "nohost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			assert.Error(t, err)
		})
	}
}
