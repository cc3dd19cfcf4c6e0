package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/villagekeeper/internal/flagx"
	"github.com/dmitrijs2005/villagekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept both
// "30m" strings and integer nanoseconds.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	AuthMode                    string         `json:"auth_mode"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`

	KeycloakServerURL     string         `json:"keycloak_server_url"`
	KeycloakRealm         string         `json:"keycloak_realm"`
	KeycloakClientID      string         `json:"keycloak_client_id"`
	KeycloakClientSecret  string         `json:"keycloak_client_secret"`
	KeycloakAdminUser     string         `json:"keycloak_admin_user"`
	KeycloakAdminPassword string         `json:"keycloak_admin_password"`
	KeycloakTimeout       timex.Duration `json:"keycloak_timeout"`

	BlobBackend    string `json:"blob_backend"`
	UploadDir      string `json:"upload_dir"`
	MaxUploadSize  int64  `json:"max_upload_size"`
	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`

	RevocationBackend string         `json:"revocation_backend"`
	RevocationWindow  timex.Duration `json:"revocation_window"`
	RedisURL          string         `json:"redis_url"`

	CORSAllowedOrigins []string `json:"cors_allowed_origins"`

	LogFormat string `json:"log_format"`
	LogLevel  string `json:"log_level"`
}

func toJSONConfig(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:                    c.HTTPAddr,
		DatabaseDSN:                 c.DatabaseDSN,
		AuthMode:                    c.AuthMode,
		SecretKey:                   c.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: c.AccessTokenValidityDuration},
		KeycloakServerURL:           c.KeycloakServerURL,
		KeycloakRealm:               c.KeycloakRealm,
		KeycloakClientID:            c.KeycloakClientID,
		KeycloakClientSecret:        c.KeycloakClientSecret,
		KeycloakAdminUser:           c.KeycloakAdminUser,
		KeycloakAdminPassword:       c.KeycloakAdminPassword,
		KeycloakTimeout:             timex.Duration{Duration: c.KeycloakTimeout},
		BlobBackend:                 c.BlobBackend,
		UploadDir:                   c.UploadDir,
		MaxUploadSize:               c.MaxUploadSize,
		S3RootUser:                  c.S3RootUser,
		S3RootPassword:              c.S3RootPassword,
		S3Bucket:                    c.S3Bucket,
		S3Region:                    c.S3Region,
		S3BaseEndpoint:              c.S3BaseEndpoint,
		RevocationBackend:           c.RevocationBackend,
		RevocationWindow:            timex.Duration{Duration: c.RevocationWindow},
		RedisURL:                    c.RedisURL,
		CORSAllowedOrigins:          c.CORSAllowedOrigins,
		LogFormat:                   c.LogFormat,
		LogLevel:                    c.LogLevel,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.AuthMode = j.AuthMode
	c.SecretKey = j.SecretKey
	c.AccessTokenValidityDuration = j.AccessTokenValidityDuration.Duration
	c.KeycloakServerURL = j.KeycloakServerURL
	c.KeycloakRealm = j.KeycloakRealm
	c.KeycloakClientID = j.KeycloakClientID
	c.KeycloakClientSecret = j.KeycloakClientSecret
	c.KeycloakAdminUser = j.KeycloakAdminUser
	c.KeycloakAdminPassword = j.KeycloakAdminPassword
	c.KeycloakTimeout = j.KeycloakTimeout.Duration
	c.BlobBackend = j.BlobBackend
	c.UploadDir = j.UploadDir
	c.MaxUploadSize = j.MaxUploadSize
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.RevocationBackend = j.RevocationBackend
	c.RevocationWindow = j.RevocationWindow.Duration
	c.RedisURL = j.RedisURL
	c.CORSAllowedOrigins = j.CORSAllowedOrigins
	c.LogFormat = j.LogFormat
	c.LogLevel = j.LogLevel
}

// parseJSON overlays the file given by -c or -config. Keys absent from the
// file keep their current values.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := toJSONConfig(config)
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	c.apply(config)
	return nil
}
