package http

import (
	"net/http"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users *usecase.UserAdmin
	pages PageDefaults
}

func NewUserHandler(users *usecase.UserAdmin, pages PageDefaults) *UserHandler {
	return &UserHandler{users: users, pages: pages}
}

// List handles GET /v1/admin/users?username=&page=&size=.
func (h *UserHandler) List(c *gin.Context) {
	pr, ok := h.pages.parse(c)
	if !ok {
		return
	}
	page, err := h.users.List(c.Request.Context(), middleware.PrincipalFrom(c), c.Query("username"), pr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResp(page, toUserResp))
}

type updateRolesReq struct {
	Roles []string `json:"roles"`
}

func (h *UserHandler) UpdateRoles(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateRolesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "malformed JSON")
		return
	}
	u, err := h.users.UpdateRoles(c.Request.Context(), middleware.PrincipalFrom(c), id, req.Roles)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResp(*u))
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), middleware.PrincipalFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
