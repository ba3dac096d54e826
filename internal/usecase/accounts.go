package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
)

// Accounts is the minimal identity surface behind the access gate:
// registration, credential checks and the startup admin seed.
type Accounts struct {
	users  UserRepo
	hasher PasswordHasher
}

func NewAccounts(users UserRepo, hasher PasswordHasher) *Accounts {
	return &Accounts{users: users, hasher: hasher}
}

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return a.create(ctx, in, []string{domain.RoleUser})
}

// Authenticate verifies credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (domain.Principal, error) {
	u, err := a.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Principal{}, domain.ErrNotAuthenticated
	}
	if err != nil {
		return domain.Principal{}, err
	}
	if err := a.hasher.Compare(u.PasswordHash, password); err != nil {
		return domain.Principal{}, domain.ErrNotAuthenticated
	}
	return domain.PrincipalOf(*u), nil
}

// SeedAdmin makes sure both roles exist and that an admin account is present.
func (a *Accounts) SeedAdmin(ctx context.Context, in RegisterInput) error {
	for _, r := range []string{domain.RoleAdmin, domain.RoleUser} {
		if err := a.users.EnsureRole(ctx, r); err != nil {
			return fmt.Errorf("ensure role %s: %w", r, err)
		}
	}
	if in.Username == "" {
		return nil
	}
	_, err := a.users.GetByUsername(ctx, in.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, err := a.create(ctx, in, []string{domain.RoleAdmin, domain.RoleUser}); err != nil {
		return err
	}
	logging.FromCtx(ctx).Info("admin account seeded", "username", in.Username)
	return nil
}

func (a *Accounts) create(ctx context.Context, in RegisterInput, roles []string) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if len(username) < 3 {
		return nil, domain.InvalidArgument("username", "must be at least 3 characters")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, domain.InvalidArgument("email", "must be a valid address")
	}
	if len(in.Password) < 8 {
		return nil, domain.InvalidArgument("password", "must be at least 8 characters")
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, domain.InvalidArgument("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	if _, err := a.users.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username %q taken: %w", username, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
