package middleware

import (
	"errors"
	"net/http"
	"strings"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// TokenParser verifies a bearer token and returns its principal.
type TokenParser interface {
	Parse(raw string) (domain.Principal, error)
}

type Authz struct {
	tokens TokenParser
}

func NewAuthz(tokens TokenParser) *Authz {
	return &Authz{tokens: tokens}
}

// Authenticate resolves the caller when a bearer token is present. Requests
// without one continue as anonymous; a present but invalid token is rejected.
func (a *Authz) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}
		p, err := a.tokens.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			logging.From(c).Info("token rejected", "err", err)
			unauth(c, "invalid_token", "invalid jwt")
			return
		}
		c.Set(principalKey, p)
		logging.With(c, logging.From(c).With("user_id", p.UserID))
		c.Next()
	}
}

// RequireAuth rejects anonymous callers.
func (a *Authz) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !PrincipalFrom(c).Authenticated() {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}
		c.Next()
	}
}

// RequireRole ensures the caller holds every listed role.
func (a *Authz) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if !p.Authenticated() {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}
		for _, r := range roles {
			if !p.HasRole(r) {
				forbidden(c, "insufficient_scope", "missing required role")
				return
			}
		}
		c.Next()
	}
}

// PrincipalFrom returns the caller resolved by Authenticate, or the anonymous
// principal.
func PrincipalFrom(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

// Unauthorized writes the 401 challenge for errors that carry ErrNotAuthenticated.
func Unauthorized(c *gin.Context, err error) bool {
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		return false
	}
	unauth(c, "not_authenticated", "authentication required")
	return true
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}
