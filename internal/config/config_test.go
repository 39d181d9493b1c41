package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "contentmix.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.InDelta(t, 2.0, cfg.Anthropic.RequestsPerSecond, 0.001)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 30, cfg.Circuit.ResetTimeoutSecs)
	assert.InDelta(t, 50000.0, cfg.Attribution.TotalRevenue, 0.001)
	assert.InDelta(t, 0.01, cfg.Attribution.Tolerance, 0.0001)
	assert.False(t, cfg.Perception.Enabled)
	assert.Equal(t, "en-US", cfg.Perception.LanguageCode)
	assert.Equal(t, int64(20<<20), cfg.Media.MaxBytes)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Equal(t, 5, cfg.Monitoring.MinRuns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/contentmix
perception:
  enabled: true
  video: false
log:
  level: debug
  format: console
pricing:
  anthropic:
    claude-sonnet-4-5-20250929:
      input: 3
      output: 15
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/contentmix", cfg.Store.DatabaseURL)
	assert.True(t, cfg.Perception.Enabled)
	assert.False(t, cfg.Perception.Video)
	assert.True(t, cfg.Perception.Vision)
	assert.Equal(t, "console", cfg.Log.Format)
	require.Contains(t, cfg.Pricing.Anthropic, "claude-sonnet-4-5-20250929")
	assert.InDelta(t, 15.0, cfg.Pricing.Anthropic["claude-sonnet-4-5-20250929"].Output, 0.001)
	// Defaults still apply for unset values.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	t.Setenv("CONTENTMIX_LOG_LEVEL", "warn")
	t.Setenv("CONTENTMIX_ANTHROPIC_KEY", "sk-ant-test")
	t.Setenv("CONTENTMIX_ATTRIBUTION_TOTAL_REVENUE", "125000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
	assert.InDelta(t, 125000.0, cfg.Attribution.TotalRevenue, 0.001)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{Driver: "sqlite", DatabaseURL: "contentmix.db"},
		Anthropic: AnthropicConfig{
			Key: "sk-ant-key", Model: "claude-sonnet-4-5-20250929",
			MaxTokens: 4096, RequestsPerSecond: 2,
		},
		Attribution: AttributionConfig{TotalRevenue: 50000, Tolerance: 0.01},
		Media:       MediaConfig{MaxBytes: 1 << 20},
		Server:      ServerConfig{Port: 8080},
	}
}

func TestValidate(t *testing.T) {
	for _, mode := range []string{ModeStore, ModeAnalyze, ModeServe} {
		assert.NoError(t, validConfig().Validate(mode), mode)
	}
}

func TestValidate_StoreOnlyNeedsStore(t *testing.T) {
	cfg := validConfig()
	cfg.Anthropic.Key = ""
	assert.NoError(t, cfg.Validate(ModeStore))
	assert.Error(t, cfg.Validate(ModeAnalyze))
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "mysql"
	cfg.Anthropic.Key = ""
	cfg.Attribution.TotalRevenue = 0
	cfg.Server.Port = 0

	err := cfg.Validate(ModeServe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver must be sqlite or postgres, got "mysql"`)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "attribution.total_revenue must be > 0")
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validConfig().Validate("fedsync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
