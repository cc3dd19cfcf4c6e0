package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/go-jose/go-jose/v4"
	"golang.org/x/oauth2"
)

const maxErrorBody = 4 << 10

// UserRepresentation is the subset of the Keycloak user resource we use.
type UserRepresentation struct {
	ID            string `json:"id,omitempty"`
	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// Client talks to the Keycloak token endpoints and admin REST API.
// Calls are not retried.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) realmURL(realm string, elem ...string) string {
	u, _ := url.JoinPath(c.cfg.BaseURL, append([]string{"realms", realm}, elem...)...)
	return u
}

func (c *Client) usersURL(elem ...string) string {
	u, _ := url.JoinPath(c.cfg.BaseURL, append([]string{"admin", "realms", c.cfg.Realm, "users"}, elem...)...)
	return u
}

func (c *Client) passwordGrant(ctx context.Context, op, realm, clientID, clientSecret, username, password string, userGrant bool) (*oauth2.Token, error) {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.realmURL(realm, "protocol", "openid-connect", "token"),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{"openid"},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := conf.PasswordCredentialsToken(ctx, username, password)
	if err == nil {
		return tok, nil
	}

	// Only invalid_grant means the user's credentials were wrong; other
	// codes (invalid_client, unauthorized_client) are our misconfiguration.
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		if userGrant && re.ErrorCode == "invalid_grant" {
			return nil, common.ErrInvalidCredentials
		}
		return nil, rejected(op, re.Response.StatusCode, re.Body)
	}
	return nil, unavailable(op, err)
}

// PasswordGrant verifies a user's password against the application realm
// and returns the issued tokens.
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (*oauth2.Token, error) {
	return c.passwordGrant(ctx, "password grant", c.cfg.Realm, c.cfg.ClientID, c.cfg.ClientSecret, username, password, true)
}

func (c *Client) adminToken(ctx context.Context) (string, error) {
	tok, err := c.passwordGrant(ctx, "admin token", c.cfg.AdminRealm, c.cfg.AdminClientID, "", c.cfg.AdminUser, c.cfg.AdminPassword, false)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// adminDo performs an authenticated admin API call. 404 and 409 map to
// common.ErrorNotFound and common.ErrDuplicateAccount.
func (c *Client) adminDo(ctx context.Context, op, method, target string, in, out any) (http.Header, error) {
	token, err := c.adminToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("keycloak %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("keycloak %s: %w", op, err)
	}
	req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resp.Header, common.ErrorNotFound
	case resp.StatusCode == http.StatusConflict:
		return resp.Header, common.ErrDuplicateAccount
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.Header, rejected(op, resp.StatusCode, b)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, &UpstreamError{Op: op, Kind: common.ErrUpstreamRejected, Cause: err}
		}
	}
	return resp.Header, nil
}

// CreateUser creates an enabled user and returns its id. When the user was
// created but its id cannot be resolved, the error is a
// *PartialRegistrationError without a UserID.
func (c *Client) CreateUser(ctx context.Context, user UserRepresentation) (string, error) {
	h, err := c.adminDo(ctx, "create user", http.MethodPost, c.usersURL(), user, nil)
	if err != nil {
		return "", err
	}

	if loc := h.Get("Location"); loc != "" {
		if u, err := url.Parse(loc); err == nil && path.Base(u.Path) != "users" {
			return path.Base(u.Path), nil
		}
	}

	found, err := c.FindUserByUsername(ctx, user.Username)
	if err != nil {
		return "", &PartialRegistrationError{
			Cause:       fmt.Errorf("resolve created user: %w", err),
			RollbackErr: errUnknownUserID,
		}
	}
	return found.ID, nil
}

// FindUserByUsername performs an exact username lookup.
func (c *Client) FindUserByUsername(ctx context.Context, username string) (*UserRepresentation, error) {
	q := url.Values{"username": {username}, "exact": {"true"}}
	var users []UserRepresentation
	if _, err := c.adminDo(ctx, "find user", http.MethodGet, c.usersURL()+"?"+q.Encode(), nil, &users); err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, common.ErrorNotFound
}

func (c *Client) ListUsers(ctx context.Context) ([]UserRepresentation, error) {
	q := url.Values{"briefRepresentation": {"true"}, "max": {"1000"}}
	users := []UserRepresentation{}
	if _, err := c.adminDo(ctx, "list users", http.MethodGet, c.usersURL()+"?"+q.Encode(), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	_, err := c.adminDo(ctx, "delete user", http.MethodDelete, c.usersURL(id), nil, nil)
	return err
}

// ResetPassword sets a permanent password.
func (c *Client) ResetPassword(ctx context.Context, id, password string) error {
	cred := credentialRepresentation{Type: "password", Value: password}
	_, err := c.adminDo(ctx, "reset password", http.MethodPut, c.usersURL(id, "reset-password"), cred, nil)
	return err
}

// FetchKeySet downloads the realm's JSON Web Key Set.
func (c *Client) FetchKeySet(ctx context.Context) (*jose.JSONWebKeySet, error) {
	const op = "fetch keys"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.realmURL(c.cfg.Realm, "protocol", "openid-connect", "certs"), nil)
	if err != nil {
		return nil, fmt.Errorf("keycloak %s: %w", op, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, rejected(op, resp.StatusCode, b)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, &UpstreamError{Op: op, Kind: common.ErrUpstreamRejected, Cause: err}
	}
	return &set, nil
}
