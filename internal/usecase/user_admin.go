package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
)

// UserAdmin is the admin-only account management surface.
type UserAdmin struct {
	users       UserRepo
	maxPageSize int
}

func NewUserAdmin(users UserRepo, maxPageSize int) *UserAdmin {
	return &UserAdmin{users: users, maxPageSize: maxPageSize}
}

func (a *UserAdmin) List(ctx context.Context, p domain.Principal, usernameContains string, pr PageRequest) (Page[domain.User], error) {
	if err := requireAdmin(p); err != nil {
		return Page[domain.User]{}, err
	}
	pr, err := pr.validate(a.maxPageSize)
	if err != nil {
		return Page[domain.User]{}, err
	}
	items, total, err := a.users.List(ctx, strings.TrimSpace(usernameContains), pr)
	if err != nil {
		return Page[domain.User]{}, err
	}
	return newPage(items, pr, total), nil
}

// UpdateRoles replaces the user's roles. USER is always kept, and an admin
// cannot take ADMIN away from themselves.
func (a *UserAdmin) UpdateRoles(ctx context.Context, p domain.Principal, id int64, roles []string) (*domain.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	set := []string{domain.RoleUser}
	for _, r := range roles {
		if r != domain.RoleAdmin && r != domain.RoleUser {
			return nil, domain.InvalidArgument("roles", "unknown role "+r)
		}
		if !slices.Contains(set, r) {
			set = append(set, r)
		}
	}
	if id == p.UserID && !slices.Contains(set, domain.RoleAdmin) {
		return nil, domain.InvalidArgument("roles", "cannot revoke your own admin role")
	}
	slices.Sort(set)

	if err := a.users.SetRoles(ctx, id, set); err != nil {
		return nil, err
	}
	logging.FromCtx(ctx).Info("user roles updated", "user_id", id, "roles", set, "by", p.Username)
	return a.users.GetByID(ctx, id)
}

func (a *UserAdmin) Delete(ctx context.Context, p domain.Principal, id int64) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	if id == p.UserID {
		return fmt.Errorf("user %d is the caller: %w", id, domain.ErrConflict)
	}
	if err := a.users.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromCtx(ctx).Info("user deleted", "user_id", id, "by", p.Username)
	return nil
}
