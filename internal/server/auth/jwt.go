// Package auth issues and verifies signed session tokens and hashes passwords.
//
// Tokens are JWTs. The verifier pins its signing algorithm and never trusts
// the "alg" header on its own; every failure is mapped onto the common token
// errors (malformed, bad signature, expired, bad claims), which callers then
// collapse into a single unauthorized response.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL = 30 * time.Minute
	MaxAccessTokenTTL     = 24 * time.Hour
)

var ErrInvalidTTL = errors.New("token ttl out of range")

type tokenOptions struct {
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// Option configures an Issuer or a Verifier.
type Option func(*tokenOptions)

// WithIssuer sets the "iss" claim on issued tokens and requires it on verification.
func WithIssuer(iss string) Option {
	return func(o *tokenOptions) { o.issuer = iss }
}

// WithLeeway allows for clock skew when validating time based claims.
func WithLeeway(d time.Duration) Option {
	return func(o *tokenOptions) { o.leeway = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *tokenOptions) { o.now = now }
}

func newTokenOptions(opts []Option) tokenOptions {
	o := tokenOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Token is a freshly issued access token.
type Token struct {
	Value     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer mints HS256 access tokens for a subject.
type Issuer struct {
	method jwt.SigningMethod
	key    []byte
	ttl    time.Duration
	opts   tokenOptions
}

// NewHS256Issuer returns an Issuer signing with secret. A non-positive ttl
// selects DefaultAccessTokenTTL; a ttl above MaxAccessTokenTTL is rejected.
func NewHS256Issuer(secret []byte, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token issuer: empty secret")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	if ttl > MaxAccessTokenTTL {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	return &Issuer{
		method: jwt.SigningMethodHS256,
		key:    secret,
		ttl:    ttl,
		opts:   newTokenOptions(opts),
	}, nil
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token carrying subjectID as "sub", valid for the issuer's ttl.
func (i *Issuer) Issue(subjectID string) (*Token, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: empty subject", common.ErrInvalidClaims)
	}

	now := i.opts.now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		Issuer:    i.opts.issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Token{
		Value:     signed,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// KeyLookup resolves the verification key for a key id ("kid" header, may be empty).
type KeyLookup func(ctx context.Context, kid string) (any, error)

// VerifiedToken is the result of a successful verification.
type VerifiedToken struct {
	Subject   string
	ID        string
	ExpiresAt time.Time
	Claims    jwt.MapClaims
}

// Verifier validates tokens signed with a single pinned algorithm.
type Verifier struct {
	method jwt.SigningMethod
	lookup KeyLookup
	opts   tokenOptions
}

// NewHS256Verifier verifies tokens minted by an Issuer sharing secret.
func NewHS256Verifier(secret []byte, opts ...Option) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("token verifier: empty secret")
	}
	lookup := func(context.Context, string) (any, error) { return secret, nil }
	return NewKeyLookupVerifier(jwt.SigningMethodHS256, lookup, opts...)
}

// NewKeyLookupVerifier verifies tokens signed with method using keys from lookup.
// It is used with RS256 and a published key set.
func NewKeyLookupVerifier(method jwt.SigningMethod, lookup KeyLookup, opts ...Option) (*Verifier, error) {
	if method == nil || lookup == nil {
		return nil, errors.New("token verifier: method and key lookup are required")
	}
	return &Verifier{method: method, lookup: lookup, opts: newTokenOptions(opts)}, nil
}

// Verify checks structure, signature and expiry and extracts the subject.
func (v *Verifier) Verify(ctx context.Context, raw string) (*VerifiedToken, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.opts.leeway),
		jwt.WithTimeFunc(v.opts.now),
	}
	if v.opts.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.opts.issuer))
	}

	claims := jwt.MapClaims{}
	keyFunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.lookup(ctx, kid)
	}

	if _, err := jwt.ParseWithClaims(raw, claims, keyFunc, parserOpts...); err != nil {
		return nil, mapJWTError(err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidClaims)
	}

	out := &VerifiedToken{Subject: sub, Claims: claims}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	out.ID, _ = claims["jti"].(string)

	return out, nil
}

// mapJWTError translates jwt errors into the common token taxonomy. Key
// lookup failures caused by the key authority are kept as they are.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, common.ErrUpstreamUnavailable), errors.Is(err, common.ErrUpstreamRejected):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", common.ErrInvalidTokenFormat, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", common.ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", common.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %w", common.ErrInvalidClaims, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrInvalidTokenFormat, err)
	}
}
