package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `session:
  buffer_length: 128
  tick: 250ms
  jitter: 0
store:
  path: /tmp/traits.db
nats:
  url: nats://127.0.0.1:4222
log:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Session.BufferLength)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.Tick.Duration())
	assert.Zero(t, cfg.Session.Jitter)
	assert.Equal(t, 24.0, cfg.Session.ReviewBaseHours, "absent keys keep defaults")
	assert.Equal(t, "/tmp/traits.db", cfg.Store.Path)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "neuroadapt.cycles", cfg.NATS.Subject)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "session:\n  buffer_length: 128\n")
	t.Setenv("NEURO_SESSION_BUFFER_LENGTH", "64")
	t.Setenv("NEURO_SESSION_REVIEW_BASE_HOURS", "12")
	t.Setenv("NEURO_ACQUISITION_ADDR", "localhost:9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Session.BufferLength)
	assert.Equal(t, 12.0, cfg.Session.ReviewBaseHours)
	assert.Equal(t, "localhost:9000", cfg.Acquisition.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "session:\n  buffer_length: 0\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, cycleerr.ErrInvalidConfig)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeConfig(t, "session: [unclosed\n")
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestLoad_FileTooLarge(t *testing.T) {
	path := writeConfig(t, "# "+strings.Repeat("x", maxConfigFileSize)+"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "session.buffer_length", envKey("NEURO_SESSION_BUFFER_LENGTH"))
	assert.Equal(t, "nats.url", envKey("NEURO_NATS_URL"))
	assert.Equal(t, "store", envKey("NEURO_STORE"))
}

func TestConfig_DerivedStageConfigs(t *testing.T) {
	cfg := Default()
	cfg.Session.BufferLength = 64
	cfg.Session.Jitter = 0.2
	cfg.Session.ReviewBaseHours = 10
	cfg.Session.Seed = 9

	assert.Equal(t, 64, cfg.FeaturesConfig().BufferLength)
	assert.Equal(t, 0.2, cfg.FeaturesConfig().JitterAmplitude)
	assert.Equal(t, 10.0, cfg.OutcomeConfig().BaseReviewHours)
	assert.Equal(t, uint64(9), cfg.SyntheticConfig().Seed)
	assert.Equal(t, 64, cfg.SyntheticConfig().Length)
	require.NoError(t, cfg.FeaturesConfig().Validate())
	require.NoError(t, cfg.UpdateConfig().Validate())
}
