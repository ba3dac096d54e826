package domain

import (
	"slices"
	"time"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// Principal is the authenticated caller. The zero value is anonymous.
type Principal struct {
	UserID   int64
	Username string
	Roles    []string
}

func (p Principal) Authenticated() bool { return p.UserID != 0 }

func (p Principal) HasRole(role string) bool { return slices.Contains(p.Roles, role) }

func (p Principal) IsAdmin() bool { return p.Authenticated() && p.HasRole(RoleAdmin) }

// SystemPrincipal acts on behalf of internal integrations (event consumers).
// Its negative id never matches an order owner.
func SystemPrincipal(name string) Principal {
	return Principal{UserID: -1, Username: name, Roles: []string{RoleAdmin}}
}

// PrincipalOf builds the principal for an identity-store user.
func PrincipalOf(u User) Principal {
	return Principal{UserID: u.ID, Username: u.Username, Roles: u.Roles}
}
