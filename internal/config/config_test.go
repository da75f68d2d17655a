package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv(envMap(map[string]string{"JWT_SECRET": "s"}))
	require.NoError(t, err)
	require.Equal(t, "8080", c.Port)
	require.Equal(t, StoreMemory, c.Store)
	require.Zero(t, c.PromoteInterval)
	require.Equal(t, 1, c.PromoteMax)
	require.Equal(t, 1, c.PromoteMinVotes)
}

func TestFromEnvOverrides(t *testing.T) {
	c, err := FromEnv(envMap(map[string]string{
		"JWT_SECRET":        "s",
		"PORT":              "9000",
		"STORE":             StorePostgres,
		"DATABASE_URL":      "postgres://localhost/stemhub?sslmode=disable",
		"DEBUG":             "true",
		"PROMOTE_INTERVAL":  "30s",
		"PROMOTE_MAX":       "3",
		"PROMOTE_MIN_VOTES": "2",
	}))
	require.NoError(t, err)
	require.Equal(t, "9000", c.Port)
	require.True(t, c.Debug)
	require.Equal(t, 30*time.Second, c.PromoteInterval)
	require.Equal(t, 3, c.PromoteMax)
	require.Equal(t, 2, c.PromoteMinVotes)
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"postgres without url", map[string]string{"JWT_SECRET": "s", "STORE": StorePostgres}},
		{"unknown store", map[string]string{"JWT_SECRET": "s", "STORE": "sqlite"}},
		{"bad interval", map[string]string{"JWT_SECRET": "s", "PROMOTE_INTERVAL": "soon"}},
		{"negative interval", map[string]string{"JWT_SECRET": "s", "PROMOTE_INTERVAL": "-1s"}},
		{"bad max", map[string]string{"JWT_SECRET": "s", "PROMOTE_MAX": "many"}},
		{"negative min votes", map[string]string{"JWT_SECRET": "s", "PROMOTE_MIN_VOTES": "-1"}},
		{"bad debug", map[string]string{"JWT_SECRET": "s", "DEBUG": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envMap(tt.env))
			require.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nVALKEY_ADDR=cache:6379\n"), 0o600))
	for _, key := range []string{"JWT_SECRET", "VALKEY_ADDR"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("STORE", StoreValkey)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", c.JWTSecret)
	require.Equal(t, "cache:6379", c.ValkeyAddr)
	require.Equal(t, StoreValkey, c.Store)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
