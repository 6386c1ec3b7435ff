package sitehost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// IdentityProvider authenticates principals and issues session tokens.
// The identity package provides a local implementation.
type IdentityProvider interface {
	// SignUp creates an account. It returns ErrAlreadyRegistered when the
	// email is taken and ErrWeakPassword when the password is too short.
	SignUp(ctx context.Context, acct NewAccount) (Principal, error)

	// SignIn checks credentials and opens a session. It returns
	// ErrInvalidCredentials on any mismatch.
	SignIn(ctx context.Context, email, password string) (Session, error)

	// Authenticate resolves a session token to its principal. It returns
	// ErrUnauthorized for unknown, expired or revoked tokens.
	Authenticate(ctx context.Context, token string) (Principal, error)

	// SignOut revokes a session token.
	SignOut(ctx context.Context, token string) error
}

// UserRepo persists accounts for identity providers that keep their own users.
type UserRepo interface {
	// Create stores a user. It returns ErrAlreadyRegistered when the email is taken.
	Create(ctx context.Context, u User) (User, error)
	// FindByEmail returns ErrNotFound when no user has the email.
	FindByEmail(ctx context.Context, email string) (User, error)
	// FindByID returns ErrNotFound when the user doesn't exist.
	FindByID(ctx context.Context, id uuid.UUID) (User, error)
}

// RoleStore persists role assignments.
type RoleStore interface {
	// Assign grants role to a principal. Assigning an existing role is a no-op.
	Assign(ctx context.Context, principal uuid.UUID, role Role) error
	// AssignFirst grants role only when no principal holds it yet, and
	// reports whether it did. The check and the grant are one atomic step
	// in the database, across processes.
	AssignFirst(ctx context.Context, principal uuid.UUID, role Role) (bool, error)
	RolesOf(ctx context.Context, principal uuid.UUID) ([]Role, error)
	// AnyWithRole reports whether at least one principal holds role.
	AnyWithRole(ctx context.Context, role Role) (bool, error)
}

type accountInput struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,maxbytes=72"`
	Username string `validate:"max=64"`
}

// AccountService combines an IdentityProvider with a RoleStore. Every
// principal it returns carries its roles.
type AccountService struct {
	identity IdentityProvider
	roles    RoleStore
	validate *validator.Validate

	// Serializes Bootstrap within this process. Across processes the
	// RoleStore's AssignFirst decides.
	bootstrapMu sync.Mutex
}

func NewAccountService(identity IdentityProvider, roles RoleStore) *AccountService {
	v := validator.New()
	// bcrypt reads at most 72 bytes, while max= counts characters.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})

	return &AccountService{
		identity: identity,
		roles:    roles,
		validate: v,
	}
}

func (s *AccountService) SignIn(ctx context.Context, email, password string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("sign in: %w", ErrInvalidCredentials)
	}

	session, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	roles, err := s.roles.RolesOf(ctx, session.Principal.ID)
	if err != nil {
		return Session{}, fmt.Errorf("sign in: load roles: %w", err)
	}
	session.Principal.Roles = roles

	return session, nil
}

// Authenticate resolves a session token to a principal with its roles.
func (s *AccountService) Authenticate(ctx context.Context, token string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, fmt.Errorf("authenticate: %w", err)
	}

	if token == "" {
		return Principal{}, fmt.Errorf("authenticate: %w", ErrUnauthorized)
	}

	p, err := s.identity.Authenticate(ctx, token)
	if err != nil {
		return Principal{}, fmt.Errorf("authenticate: %w", err)
	}

	roles, err := s.roles.RolesOf(ctx, p.ID)
	if err != nil {
		return Principal{}, fmt.Errorf("authenticate: load roles: %w", err)
	}
	p.Roles = roles

	return p, nil
}

func (s *AccountService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.identity.SignOut(ctx, token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Provision creates an account on behalf of an administrator. The role
// check runs before the identity provider is called.
func (s *AccountService) Provision(ctx context.Context, admin Principal, acct NewAccount) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, fmt.Errorf("provision: %w", err)
	}

	if err := Authorize(admin, RoleAdmin); err != nil {
		return Principal{}, fmt.Errorf("provision: %w", err)
	}

	p, err := s.signUp(ctx, acct)
	if err != nil {
		return Principal{}, fmt.Errorf("provision: %w", err)
	}

	return p, nil
}

// Enroll creates an account and grants it roles without a principal
// check. It serves operator tooling that already holds database access.
func (s *AccountService) Enroll(ctx context.Context, acct NewAccount, roles ...Role) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, fmt.Errorf("enroll: %w", err)
	}

	for _, r := range roles {
		if !r.IsValid() {
			return Principal{}, fmt.Errorf("enroll: %w: unknown role %q", ErrInvalidInput, r)
		}
	}

	p, err := s.signUp(ctx, acct)
	if err != nil {
		return Principal{}, fmt.Errorf("enroll: %w", err)
	}

	for _, r := range roles {
		if err := s.roles.Assign(ctx, p.ID, r); err != nil {
			return Principal{}, fmt.Errorf("enroll: assign %s role: %w", r, err)
		}
		p.Roles = append(p.Roles, r)
	}

	return p, nil
}

// SetupRequired reports whether no administrator exists yet.
func (s *AccountService) SetupRequired(ctx context.Context) (bool, error) {
	exists, err := s.roles.AnyWithRole(ctx, RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("setup required: %w", err)
	}
	return !exists, nil
}

// Bootstrap creates the first administrator. Once any administrator
// exists it fails with ErrAlreadySetUp. When another process wins the
// race after this account was created, the account is kept without the
// admin role and ErrAlreadySetUp is returned.
func (s *AccountService) Bootstrap(ctx context.Context, acct NewAccount) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, fmt.Errorf("bootstrap: %w", err)
	}

	s.bootstrapMu.Lock()
	defer s.bootstrapMu.Unlock()

	required, err := s.SetupRequired(ctx)
	if err != nil {
		return Principal{}, fmt.Errorf("bootstrap: %w", err)
	}
	if !required {
		return Principal{}, fmt.Errorf("bootstrap: %w", ErrAlreadySetUp)
	}

	p, err := s.signUp(ctx, acct)
	if err != nil {
		return Principal{}, fmt.Errorf("bootstrap: %w", err)
	}

	granted, err := s.roles.AssignFirst(ctx, p.ID, RoleAdmin)
	if err != nil {
		return Principal{}, fmt.Errorf("bootstrap: assign admin role: %w", err)
	}
	if !granted {
		slog.Warn("bootstrap: another administrator was set up concurrently, account left without admin role",
			"principal", p.ID, "email", p.Email)
		return Principal{}, fmt.Errorf("bootstrap: %w", ErrAlreadySetUp)
	}
	p.Roles = []Role{RoleAdmin}

	return p, nil
}

func (s *AccountService) signUp(ctx context.Context, acct NewAccount) (Principal, error) {
	acct.Email = strings.TrimSpace(strings.ToLower(acct.Email))
	acct.Username = strings.TrimSpace(acct.Username)

	in := accountInput(acct)
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Principal{}, fmt.Errorf("%w: %s failed %s", ErrInvalidInput, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return s.identity.SignUp(ctx, acct)
}
