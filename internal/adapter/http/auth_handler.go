package http

import (
	"net/http"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

// TokenIssuer signs access tokens for an authenticated principal.
type TokenIssuer interface {
	Issue(p domain.Principal) (string, time.Time, error)
}

type AuthHandler struct {
	accounts *usecase.Accounts
	tokens   TokenIssuer
}

func NewAuthHandler(accounts *usecase.Accounts, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokens: tokens}
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "malformed JSON")
		return
	}
	u, err := h.accounts.Register(c.Request.Context(), usecase.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"roles":    u.Roles,
	})
}

type tokenReq struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// IssueToken handles POST /v1/auth/token (form or JSON).
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBind(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(c, domain.ErrNotAuthenticated)
		return
	}
	p, err := h.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	signed, exp, err := h.tokens.Issue(p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int64(time.Until(exp).Seconds()),
	})
}
