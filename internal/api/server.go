// Package api exposes the marketplace over HTTP with gin.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/agrimarket/internal/account"
	"github.com/safar/agrimarket/internal/audit"
	"github.com/safar/agrimarket/internal/auth"
	"github.com/safar/agrimarket/internal/catalog"
	"github.com/safar/agrimarket/internal/commerce"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Server struct {
	accounts *account.Service
	commerce *commerce.Service
	catalog  *catalog.Service
	audit    audit.Recorder
	tokens   *auth.TokenIssuer
	logger   *zap.Logger
	router   *gin.Engine
}

type Deps struct {
	Accounts *account.Service
	Commerce *commerce.Service
	Catalog  *catalog.Service
	Audit    audit.Recorder
	Tokens   *auth.TokenIssuer
	Logger   *zap.Logger
	Mode     string
}

func NewServer(d Deps) *Server {
	if d.Mode == "" {
		d.Mode = gin.ReleaseMode
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	gin.SetMode(d.Mode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(d.Logger))

	s := &Server{
		accounts: d.Accounts,
		commerce: d.Commerce,
		catalog:  d.Catalog,
		audit:    d.Audit,
		tokens:   d.Tokens,
		logger:   d.Logger,
		router:   router,
	}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireUser := authMiddleware(s.tokens)
	maybeUser := optionalAuthMiddleware(s.tokens)

	api := s.router.Group("/api")
	{
		accounts := api.Group("/auth")
		{
			accounts.POST("/register", s.register)
			accounts.POST("/resend-activation", s.resendActivation)
			accounts.POST("/activate", s.activate)
			accounts.POST("/login", s.login)
			accounts.POST("/token/refresh", s.refreshToken)
			accounts.POST("/google", s.googleLogin)
			accounts.GET("/check-email", s.checkEmail)
			accounts.POST("/password-reset/request", s.requestPasswordReset)
			accounts.POST("/password-reset/confirm", s.confirmPasswordReset)

			me := accounts.Group("", requireUser)
			me.POST("/password/change", s.changePassword)
			me.POST("/password/set", s.setPassword)
			me.GET("/profile", s.profile)
			me.PATCH("/profile", s.updateProfile)
		}

		cart := api.Group("/cart", requireUser)
		{
			cart.GET("", s.getCart)
			cart.POST("/items", s.addCartItem)
			cart.DELETE("/items/:id", s.removeCartItem)
			cart.DELETE("", s.clearCart)
			cart.POST("/checkout", s.checkout)
		}

		orders := api.Group("/orders", requireUser)
		{
			orders.GET("", s.listBuyerOrders)
			orders.GET("/vendor", s.listVendorOrders)
			orders.GET("/vendor-stats", s.vendorStats)
			orders.GET("/:id", s.getOrder)
			orders.PATCH("/:id/status", s.updateOrderStatus)
		}

		products := api.Group("/products")
		{
			products.GET("", s.listProducts)
			products.GET("/:id", maybeUser, s.getProduct)
			products.GET("/producer/:id", maybeUser, s.listProducerProducts)
			products.POST("", requireUser, s.createProduct)
			products.PUT("/:id", requireUser, s.updateProduct)
			products.DELETE("/:id", requireUser, s.deleteProduct)
		}

		categories := api.Group("/categories")
		{
			categories.GET("", s.listCategories)
			categories.POST("", requireUser, s.createCategory)
			categories.DELETE("/:id", requireUser, s.deleteCategory)
		}

		admin := api.Group("/admin", requireUser, requireStaff())
		{
			admin.GET("/users", s.listUsers)
			admin.GET("/audit", s.recentAudit)
		}
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if actor := actorFrom(c); actor != nil {
			fields = append(fields, zap.Int64("user_id", actor.ID))
		}
		logger.Info("HTTP request", fields...)
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
