package keycloak

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/logging"
	"github.com/dmitrijs2005/villagekeeper/internal/server/auth"
	"github.com/dmitrijs2005/villagekeeper/internal/server/identity"
	"github.com/golang-jwt/jwt/v5"
)

// Provider implements identity.Provider on top of a Keycloak realm.
type Provider struct {
	client   *Client
	keys     *KeyCache
	verifier *auth.Verifier
	clientID string
	logger   logging.Logger
}

var _ identity.Provider = (*Provider)(nil)

func NewProvider(cfg Config, logger logging.Logger) (*Provider, error) {
	if cfg.BaseURL == "" || cfg.Realm == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: keycloak base url, realm and client id are required", common.ErrValidation)
	}

	client := NewClient(cfg)
	keys := NewKeyCache(client)
	verifier, err := auth.NewKeyLookupVerifier(jwt.SigningMethodRS256, keys.SigningKey, auth.WithIssuer(cfg.Issuer()))
	if err != nil {
		return nil, err
	}

	return &Provider{
		client:   client,
		keys:     keys,
		verifier: verifier,
		clientID: cfg.ClientID,
		logger:   logger.With("module", "identity_keycloak"),
	}, nil
}

// Keys exposes the provider's key cache.
func (p *Provider) Keys() *KeyCache {
	return p.keys
}

// Register creates the account, sets its password and logs it in. When the
// password cannot be set the account is deleted again and a
// *PartialRegistrationError is returned.
func (p *Provider) Register(ctx context.Context, req identity.RegisterRequest) (*identity.Session, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}

	id, err := p.client.CreateUser(ctx, UserRepresentation{Username: username, Email: req.Email, Enabled: true})
	if err != nil {
		var pr *PartialRegistrationError
		if errors.As(err, &pr) {
			p.logger.Error(ctx, "created user could not be resolved", "username", username, "error", err)
		}
		return nil, err
	}

	if err := p.client.ResetPassword(ctx, id, req.Password); err != nil {
		rbErr := p.client.DeleteUser(ctx, id)
		if rbErr != nil {
			p.logger.Error(ctx, "registration rollback failed", "subject", id, "error", rbErr)
		}
		return nil, &PartialRegistrationError{UserID: id, Cause: err, RollbackErr: rbErr}
	}

	p.logger.Info(ctx, "user registered", "subject", id)

	return p.Login(ctx, identity.LoginRequest{Username: username, Email: req.Email, Password: req.Password})
}

func (p *Provider) Login(ctx context.Context, req identity.LoginRequest) (*identity.Session, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, common.ErrInvalidCredentials
	}

	tok, err := p.client.PasswordGrant(ctx, username, req.Password)
	if err != nil {
		return nil, err
	}

	vt, err := p.verify(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("verify issued token: %w", err)
	}

	if req.Email != "" {
		email, _ := vt.Claims["email"].(string)
		if !strings.EqualFold(email, req.Email) {
			p.logger.Warn(ctx, "email mismatch on login", "subject", vt.Subject)
			return nil, common.ErrInvalidCredentials
		}
	}

	if name, ok := vt.Claims["preferred_username"].(string); ok && name != "" {
		username = name
	}

	return &identity.Session{
		SubjectID: vt.Subject,
		Username:  username,
		Token:     tok.AccessToken,
		ExpiresAt: vt.ExpiresAt,
	}, nil
}

func (p *Provider) Authenticate(ctx context.Context, token string) (*identity.Principal, error) {
	vt, err := p.verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return &identity.Principal{SubjectID: vt.Subject, TokenID: vt.ID, ExpiresAt: vt.ExpiresAt}, nil
}

// verify checks the signature against the realm keys and that the token was
// issued to our client.
func (p *Provider) verify(ctx context.Context, token string) (*auth.VerifiedToken, error) {
	vt, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if azp, _ := vt.Claims["azp"].(string); azp != p.clientID {
		return nil, fmt.Errorf("%w: token issued to %q", common.ErrInvalidClaims, azp)
	}
	return vt, nil
}

func (p *Provider) ListAccounts(ctx context.Context) ([]identity.Account, error) {
	users, err := p.client.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]identity.Account, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, identity.Account{ID: u.ID, Username: u.Username, Email: u.Email})
	}
	return accounts, nil
}

func (p *Provider) DeleteAccount(ctx context.Context, subjectID string) error {
	if err := p.client.DeleteUser(ctx, subjectID); err != nil {
		return err
	}
	p.logger.Info(ctx, "user deleted", "subject", subjectID)
	return nil
}
