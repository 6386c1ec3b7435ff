// Package identity provides a local IdentityProvider: accounts live in the
// users table, passwords are bcrypt hashes and sessions are HS256 tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL        = 24 * time.Hour
	DefaultMinPasswordLength = 6
	// MaxPasswordBytes is the longest input bcrypt hashes.
	MaxPasswordBytes = 72

	issuer = "sitehost"
)

// Config holds configuration options for LocalProvider.
type Config struct {
	SessionTTL        time.Duration // Lifetime of issued tokens (default: 24h)
	MinPasswordLength int           // Shortest accepted password (default: 6)
	BcryptCost        int           // Hash cost (default: bcrypt.DefaultCost)
	Now               func() time.Time
}

type sessionClaims struct {
	Email    string `json:"email"`
	Username string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// LocalProvider implements sitehost.IdentityProvider on a UserRepo.
type LocalProvider struct {
	users   sitehost.UserRepo
	keys    *Keyring
	revoked *revocationList

	ttl         time.Duration
	minPassword int
	cost        int
	now         func() time.Time

	// compared against when the email is unknown so both paths cost a hash
	dummyHash []byte
}

var _ sitehost.IdentityProvider = (*LocalProvider)(nil)

func NewLocalProvider(users sitehost.UserRepo, keys *Keyring, cfg Config) (*LocalProvider, error) {
	if users == nil || keys == nil {
		return nil, errors.New("new local provider: users and keys are required")
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("sitehost-dummy-password"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("new local provider: %w", err)
	}

	return &LocalProvider{
		users:       users,
		keys:        keys,
		revoked:     newRevocationList(),
		ttl:         cfg.SessionTTL,
		minPassword: cfg.MinPasswordLength,
		cost:        cfg.BcryptCost,
		now:         cfg.Now,
		dummyHash:   dummy,
	}, nil
}

func (p *LocalProvider) SignUp(ctx context.Context, acct sitehost.NewAccount) (sitehost.Principal, error) {
	if err := ctx.Err(); err != nil {
		return sitehost.Principal{}, fmt.Errorf("sign up: %w", err)
	}

	if utf8.RuneCountInString(acct.Password) < p.minPassword {
		return sitehost.Principal{}, fmt.Errorf("sign up: %w: at least %d characters required", sitehost.ErrWeakPassword, p.minPassword)
	}
	if len(acct.Password) > MaxPasswordBytes {
		return sitehost.Principal{}, fmt.Errorf("sign up: %w: password must be at most %d bytes", sitehost.ErrInvalidInput, MaxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), p.cost)
	if err != nil {
		return sitehost.Principal{}, fmt.Errorf("sign up: hash password: %w", err)
	}

	username := acct.Username
	if username == "" {
		username = acct.Email
	}

	u, err := p.users.Create(ctx, sitehost.User{
		Email:        acct.Email,
		Username:     username,
		PasswordHash: string(hash),
	})
	if err != nil {
		return sitehost.Principal{}, fmt.Errorf("sign up: %w", err)
	}

	return u.Principal(), nil
}

// SignIn returns ErrInvalidCredentials for an unknown email and a wrong
// password alike.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (sitehost.Session, error) {
	if err := ctx.Err(); err != nil {
		return sitehost.Session{}, fmt.Errorf("sign in: %w", err)
	}

	u, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sitehost.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
			return sitehost.Session{}, sitehost.ErrInvalidCredentials
		}
		return sitehost.Session{}, fmt.Errorf("sign in: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return sitehost.Session{}, sitehost.ErrInvalidCredentials
	}

	now := p.now()
	expiresAt := now.Add(p.ttl)

	token, err := p.keys.Sign(sessionClaims{
		Email:    u.Email,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return sitehost.Session{}, fmt.Errorf("sign in: sign token: %w", err)
	}

	return sitehost.Session{Token: token, ExpiresAt: expiresAt, Principal: u.Principal()}, nil
}

// Authenticate verifies the token, rejects revoked ones and reloads the
// user so deleted accounts lose access.
func (p *LocalProvider) Authenticate(ctx context.Context, token string) (sitehost.Principal, error) {
	if err := ctx.Err(); err != nil {
		return sitehost.Principal{}, fmt.Errorf("authenticate: %w", err)
	}

	claims, err := p.parse(token)
	if err != nil {
		return sitehost.Principal{}, fmt.Errorf("authenticate: %w: %v", sitehost.ErrUnauthorized, err)
	}

	if p.revoked.isRevoked(claims.ID) {
		return sitehost.Principal{}, fmt.Errorf("authenticate: %w: session revoked", sitehost.ErrUnauthorized)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return sitehost.Principal{}, fmt.Errorf("authenticate: %w: invalid subject", sitehost.ErrUnauthorized)
	}

	u, err := p.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sitehost.ErrNotFound) {
			return sitehost.Principal{}, fmt.Errorf("authenticate: %w: unknown user", sitehost.ErrUnauthorized)
		}
		return sitehost.Principal{}, fmt.Errorf("authenticate: %w", err)
	}

	return u.Principal(), nil
}

// SignOut revokes the token until it expires. Invalid tokens are ignored.
func (p *LocalProvider) SignOut(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	claims, err := p.parse(token)
	if err != nil {
		return nil
	}

	p.revoked.revoke(claims.ID, claims.ExpiresAt.Time, p.now())
	return nil
}

func (p *LocalProvider) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, p.keys.KeyFunc(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, errors.New("missing token id")
	}
	return claims, nil
}
