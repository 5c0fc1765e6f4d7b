package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LIBRALYZE_DATA", "DATABASE_URL", "LIBRALYZE_USER", "LOG_LEVEL", "OTEL_EXPORTER_OTLP_ENDPOINT", "USER"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, defaultDataPath, cfg.DataPath)
	assert.Equal(t, "guest", cfg.Username)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.False(t, cfg.UsePostgres())
	assert.Empty(t, cfg.OTLPEndpoint)
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIBRALYZE_DATA", "/srv/library.json")
	t.Setenv("DATABASE_URL", "postgres://localhost/library")
	t.Setenv("USER", "shell-user")
	t.Setenv("LIBRALYZE_USER", "ada")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "/srv/library.json", cfg.DataPath)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, "ada", cfg.Username)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIBRALYZE_DATA", "/srv/library.json")
	t.Setenv("LIBRALYZE_USER", "ada")

	cfg, err := Load([]string{"--data", "local.json", "-u", "grace", "--log-level=error", "--otlp-endpoint", "http://collector:4318"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "local.json", cfg.DataPath)
	assert.Equal(t, "grace", cfg.Username)
	assert.Equal(t, slog.LevelError, cfg.LogLevel)
	assert.Equal(t, "http://collector:4318", cfg.OTLPEndpoint)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"bad log level", []string{"--log-level", "loud"}},
		{"unknown flag", []string{"--color"}},
		{"positional argument", []string{"extra"}},
		{"no storage", []string{"--data", ""}},
		{"empty user", []string{"--user", ""}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(tt.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestLoadHelp(t *testing.T) {
	clearEnv(t)
	var usage strings.Builder

	_, err := Load([]string{"--help"}, &usage)
	assert.ErrorIs(t, err, pflag.ErrHelp)
	assert.Contains(t, usage.String(), "--data")
}

func TestLoadEnvFilesDoesNotOverrideExistingEnv(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("LIBRALYZE_USER=from_file\nLIBRALYZE_TEST_ONLY=from_file\n"), 0o644))

	t.Setenv("LIBRALYZE_USER", "from_env")
	t.Cleanup(func() { _ = os.Unsetenv("LIBRALYZE_TEST_ONLY") })

	t.Chdir(tmp)

	LoadEnvFiles()

	assert.Equal(t, "from_env", os.Getenv("LIBRALYZE_USER"))
	assert.Equal(t, "from_file", os.Getenv("LIBRALYZE_TEST_ONLY"))
}
