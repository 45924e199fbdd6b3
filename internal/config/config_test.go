package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"CONFIG_FILE", "DATABASE_URL", "PORT", "TIMEZONE", "DEFAULT_LIMIT", "LOCALE", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, 100, cfg.DefaultLimit)
	assert.Equal(t, "ko", cfg.Locale)
	assert.Empty(t, cfg.Tables)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "aicfo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
locale: en
default_limit: 50
tables:
  - key: loan
    date_column: reg_dt
    default_order: [bank_nm, reg_dt]
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, 50, cfg.DefaultLimit)
	require.Len(t, cfg.Tables, 1)
	assert.Equal(t, "loan", cfg.Tables[0].Key)
	assert.Equal(t, []string{"bank_nm", "reg_dt"}, cfg.Tables[0].DefaultOrder)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEFAULT_LIMIT", "zero")
	_, err := Load()
	assert.ErrorContains(t, err, "invalid DEFAULT_LIMIT")

	clearEnv(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid TIMEZONE")

	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.ErrorContains(t, err, "read config file")
}

func TestLogger(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogFormat: "console"}
	l, err := cfg.Logger()
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	cfg.LogLevel = "loud"
	_, err = cfg.Logger()
	assert.Error(t, err)
}
