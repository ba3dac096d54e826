package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Auth     *AuthHandler
	Orders   *OrderHandler
	Admin    *AdminHandler
	Products *ProductHandler
	Users    *UserHandler
}

func NewRouter(h Handlers, authz *middleware.Authz, log *slog.Logger, health Pinger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())
	r.Use(middleware.Logging(log))
	r.Use(authz.Authenticate())

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := health.Ping(ctx); err != nil {
			logging.From(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/register", h.Auth.Register)
		v1.POST("/auth/token", h.Auth.IssueToken)

		v1.GET("/products", h.Products.Search)
		v1.GET("/products/random", h.Products.Random)
		v1.GET("/products/:id", h.Products.Get)
		v1.POST("/products", authz.RequireRole(domain.RoleAdmin), h.Products.Create)
		v1.PUT("/products/:id", authz.RequireRole(domain.RoleAdmin), h.Products.Update)
		v1.DELETE("/products/:id", authz.RequireRole(domain.RoleAdmin), h.Products.Delete)

		orders := v1.Group("/orders", authz.RequireAuth())
		orders.POST("", h.Orders.PlaceOrder)
		orders.GET("", h.Orders.ListMine)
		orders.GET("/:id", h.Orders.GetOrder)
		orders.GET("/:id/status", h.Orders.GetStatus)

		admin := v1.Group("/admin", authz.RequireRole(domain.RoleAdmin))
		admin.GET("/orders", h.Admin.ListOrders)
		admin.PATCH("/orders/:id/status", h.Admin.UpdateStatus)
		admin.DELETE("/orders/:id", h.Admin.DeleteOrder)
		admin.GET("/stats/top-products", h.Admin.TopProducts)
		admin.GET("/stats/top-customers", h.Admin.TopCustomers)
		admin.GET("/users", h.Users.List)
		admin.PUT("/users/:id/roles", h.Users.UpdateRoles)
		admin.DELETE("/users/:id", h.Users.Delete)
	}

	return r
}
