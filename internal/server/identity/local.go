package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/logging"
	"github.com/dmitrijs2005/villagekeeper/internal/server/auth"
	"github.com/dmitrijs2005/villagekeeper/internal/server/models"
	"github.com/dmitrijs2005/villagekeeper/internal/server/repositories/repomanager"
)

// Local keeps credentials in the users table and issues HS256 tokens.
type Local struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	issuer      *auth.Issuer
	verifier    *auth.Verifier
	logger      logging.Logger

	// dummyHash is verified for unknown usernames so both paths cost one
	// argon2 computation.
	dummyHash string
}

func NewLocal(db *sql.DB, rm repomanager.RepositoryManager, hasher PasswordHasher,
	issuer *auth.Issuer, verifier *auth.Verifier, logger logging.Logger) (*Local, error) {

	dummy, err := hasher.Hash("villagekeeper-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("local provider: %w", err)
	}

	return &Local{
		db:          db,
		repomanager: rm,
		hasher:      hasher,
		issuer:      issuer,
		verifier:    verifier,
		logger:      logger.With("module", "identity_local"),
		dummyHash:   dummy,
	}, nil
}

func (p *Local) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}

	hash, err := p.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		UserName:     username,
		Email:        sql.NullString{String: req.Email, Valid: req.Email != ""},
		PasswordHash: hash,
	}

	user, err = p.repomanager.Users(p.db).Create(ctx, user)
	if err != nil {
		return nil, err
	}

	p.logger.Info(ctx, "user registered", "subject", user.ID)

	return p.newSession(user)
}

// Login verifies the password. Unknown users, wrong passwords and corrupted
// hashes all end in common.ErrInvalidCredentials; only the log tells them apart.
func (p *Local) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := p.repomanager.Users(p.db).GetUserByLogin(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = p.hasher.Verify(req.Password, p.dummyHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := p.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, common.ErrHashCorrupted) {
			p.logger.Error(ctx, "stored password hash corrupted", "subject", user.ID, "error", err)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}
	if !ok {
		p.logger.Warn(ctx, "wrong password", "subject", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	if req.Email != "" && !strings.EqualFold(req.Email, user.Email.String) {
		p.logger.Warn(ctx, "email mismatch on login", "subject", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	return p.newSession(user)
}

func (p *Local) newSession(user *models.User) (*Session, error) {
	tok, err := p.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{
		SubjectID: user.ID,
		Username:  user.UserName,
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

func (p *Local) Authenticate(ctx context.Context, token string) (*Principal, error) {
	vt, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Principal{SubjectID: vt.Subject, TokenID: vt.ID, ExpiresAt: vt.ExpiresAt}, nil
}

func (p *Local) ListAccounts(ctx context.Context) ([]Account, error) {
	users, err := p.repomanager.Users(p.db).List(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, Account{ID: u.ID, Username: u.UserName, Email: u.Email.String})
	}
	return accounts, nil
}

func (p *Local) DeleteAccount(ctx context.Context, subjectID string) error {
	if err := p.repomanager.Users(p.db).Delete(ctx, subjectID); err != nil {
		return err
	}
	p.logger.Info(ctx, "user deleted", "subject", subjectID)
	return nil
}
