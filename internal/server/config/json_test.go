package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":                      "www.example:9000",
		"database_dsn":                   "villages.db",
		"auth_mode":                      "keycloak",
		"secret_key":                     "my_secret_key",
		"access_token_validity_duration": "1m",
		"keycloak_server_url":            "http://kc:8080",
		"keycloak_realm":                 "villages",
		"keycloak_client_id":             "api",
		"keycloak_timeout":               5000000000,
		"blob_backend":                   "s3",
		"s3_bucket":                      "bucket",
		"s3_base_endpoint":               "base_endpoint",
		"cors_allowed_origins":           []string{"http://a", "http://b"},
		"log_format":                     "console",
		"revocation_window":              "48h",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-config", pathFlag}))

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "villages.db", cfg.DatabaseDSN)
		assert.Equal(t, AuthModeKeycloak, cfg.AuthMode)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, "http://kc:8080", cfg.KeycloakServerURL)
		assert.Equal(t, 5*time.Second, cfg.KeycloakTimeout)
		assert.Equal(t, BlobBackendS3, cfg.BlobBackend)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, "console", cfg.LogFormat)
		assert.Equal(t, 48*time.Hour, cfg.RevocationWindow)
	})

	t.Run("absent keys keep their values", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-c", pathFlag}))

		assert.Equal(t, "uploads", cfg.UploadDir)
		assert.Equal(t, "us-east-1", cfg.S3Region)
		assert.EqualValues(t, 10<<20, cfg.MaxUploadSize)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		cfg := &Config{HTTPAddr: "defaults:1234", SecretKey: "key"}
		require.NoError(t, parseJSON(cfg, []string{"-a", ":1"}))

		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
		assert.Equal(t, "key", cfg.SecretKey)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		assert.Error(t, parseJSON(&Config{}, []string{"-c", bad}))
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, parseJSON(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")}))
	})
}
