// Package keycloak adapts a Keycloak realm to identity.Provider. Accounts
// live in Keycloak; passwords are verified with the OAuth2 password grant and
// access tokens are checked locally against the realm's published keys.
package keycloak

import (
	"strings"
	"time"
)

const (
	DefaultAdminRealm    = "master"
	DefaultAdminClientID = "admin-cli"
	DefaultTimeout       = 10 * time.Second
)

type Config struct {
	BaseURL       string
	Realm         string
	ClientID      string
	ClientSecret  string
	AdminUser     string
	AdminPassword string
	AdminRealm    string
	AdminClientID string
	Timeout       time.Duration
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.AdminRealm == "" {
		c.AdminRealm = DefaultAdminRealm
	}
	if c.AdminClientID == "" {
		c.AdminClientID = DefaultAdminClientID
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Issuer is the iss claim of tokens minted by the application realm.
func (c Config) Issuer() string {
	return strings.TrimRight(c.BaseURL, "/") + "/realms/" + c.Realm
}
