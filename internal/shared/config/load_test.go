package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(WithEnvLookup(noEnv))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, DefaultMaxIterations, cfg.Run.MaxIterations)
	assert.Equal(t, DefaultActionCeiling, cfg.Sandbox.ActionTimeout)
	assert.Contains(t, cfg.Sandbox.AllowedPrograms, "git")
	assert.Contains(t, cfg.Sandbox.BlockedSubstrings, "rm -rf /")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "otto.yaml")
	data := `
oracle:
  provider: anthropic
  model: claude-sonnet
run:
  max_iterations: 7
  timeout: 5m
sandbox:
  allowed_roots:
    - /work
  action_timeout: 30s
  max_output_bytes: 1024
  max_file_bytes: 2048
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(WithPath(path), WithEnvLookup(noEnv))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Oracle.Provider)
	assert.Equal(t, "claude-sonnet", cfg.Oracle.Model)
	assert.Equal(t, 7, cfg.Run.MaxIterations)
	assert.Equal(t, 5*time.Minute, cfg.Run.Timeout)
	assert.Equal(t, []string{"/work"}, cfg.Sandbox.AllowedRoots)
	assert.Equal(t, 30*time.Second, cfg.Sandbox.ActionTimeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	env := map[string]string{
		"OTTO_ORACLE_API_KEY": "sk-test",
		"OTTO_MAX_ITERATIONS": "3",
		"OTTO_RUN_TIMEOUT":    "90s",
	}
	cfg, err := Load(WithEnvLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Oracle.APIKey)
	assert.Equal(t, 3, cfg.Run.MaxIterations)
	assert.Equal(t, 90*time.Second, cfg.Run.Timeout)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Oracle.Provider = "carrier-pigeon" }},
		{"zero iterations", func(c *Config) { c.Run.MaxIterations = 0 }},
		{"zero timeout", func(c *Config) { c.Run.Timeout = 0 }},
		{"relative root", func(c *Config) { c.Sandbox.AllowedRoots = []string{"work"} }},
		{"program with path", func(c *Config) { c.Sandbox.AllowedPrograms = []string{"/bin/ls"} }},
		{"zero output cap", func(c *Config) { c.Sandbox.MaxOutputBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			require.Error(t, Validate(cfg))
		})
	}
}
