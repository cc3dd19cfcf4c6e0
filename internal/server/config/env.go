package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv copies variables from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// parseEnv overlays environment variables. Empty values are ignored.
func parseEnv(c *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("AUTH_MODE", &c.AuthMode)
	str("SECRET_KEY", &c.SecretKey)

	str("KEYCLOAK_SERVER_URL", &c.KeycloakServerURL)
	str("KEYCLOAK_REALM", &c.KeycloakRealm)
	str("KEYCLOAK_CLIENT_ID", &c.KeycloakClientID)
	str("KEYCLOAK_CLIENT_SECRET", &c.KeycloakClientSecret)
	str("KEYCLOAK_ADMIN_USER", &c.KeycloakAdminUser)
	str("KEYCLOAK_ADMIN_PASSWORD", &c.KeycloakAdminPassword)

	str("BLOB_BACKEND", &c.BlobBackend)
	str("UPLOAD_DIR", &c.UploadDir)
	str("S3_ROOT_USER", &c.S3RootUser)
	str("S3_ROOT_PASSWORD", &c.S3RootPassword)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_BASE_ENDPOINT", &c.S3BaseEndpoint)

	str("REVOCATION_BACKEND", &c.RevocationBackend)
	str("REDIS_URL", &c.RedisURL)

	str("LOG_FORMAT", &c.LogFormat)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("ACCESS_TOKEN_EXPIRE_MINUTES"); ok && v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES: %w", err)
		}
		c.AccessTokenValidityDuration = time.Duration(m) * time.Minute
	}

	if v, ok := lookup("KEYCLOAK_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KEYCLOAK_TIMEOUT: %w", err)
		}
		c.KeycloakTimeout = d
	}

	if v, ok := lookup("REVOCATION_WINDOW"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REVOCATION_WINDOW: %w", err)
		}
		c.RevocationWindow = d
	}

	if v, ok := lookup("MAX_UPLOAD_SIZE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_SIZE: %w", err)
		}
		c.MaxUploadSize = n
	}

	if v, ok := lookup("CORS_ALLOWED_ORIGINS"); ok && v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
