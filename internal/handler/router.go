package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/flicky/go-storefront-api/internal/middleware"
)

type Handlers struct {
	Auth     *AuthHandler
	User     *UserHandler
	Product  *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Order    *OrderHandler
	Health   *HealthHandler
}

type RouterConfig struct {
	JWTSecret   string
	Users       middleware.UserLookup
	AuthLimiter *middleware.RateLimiter
	Log         *slog.Logger
}

func NewRouter(h Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(cfg.Log))

	router.GET("/healthz", h.Health.Healthz)
	router.GET("/readyz", h.Health.Readyz)

	authed := middleware.AuthMiddleware(cfg.JWTSecret, cfg.Users)
	adminOnly := middleware.AdminOnly()

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", cfg.AuthLimiter.Limit(), h.Auth.Register)
		auth.POST("/login", cfg.AuthLimiter.Limit(), h.Auth.Login)
		auth.POST("/google", cfg.AuthLimiter.Limit(), h.Auth.GoogleLogin)
		auth.GET("/me", authed, h.Auth.Me)

		users := v1.Group("/users", authed)
		users.GET("", adminOnly, h.User.List)
		users.GET("/:id", h.User.Get)
		users.PUT("/:id", h.User.Update)

		products := v1.Group("/products")
		products.GET("", h.Product.List)
		products.GET("/:id", h.Product.GetByID)

		adminProducts := products.Group("", authed, adminOnly)
		adminProducts.POST("", h.Product.Create)
		adminProducts.PUT("/:id", h.Product.Update)
		adminProducts.DELETE("/:id", h.Product.Delete)

		cart := v1.Group("/cart", authed)
		cart.GET("", h.Cart.GetCart)
		cart.POST("/items", h.Cart.AddItem)
		cart.PUT("/items/:id", h.Cart.UpdateItem)
		cart.DELETE("/items/:id", h.Cart.DeleteItem)

		checkout := v1.Group("/checkout", authed)
		checkout.POST("/create-payment-intent", h.Checkout.CreatePaymentIntent)
		checkout.POST("/mark-paid", h.Checkout.MarkPaid)

		orders := v1.Group("/orders", authed)
		orders.GET("", h.Order.ListOrders)
		orders.GET("/admin", adminOnly, h.Order.ListAllOrders)
		orders.GET("/:id", h.Order.GetOrder)
		orders.PUT("/:id", adminOnly, h.Order.UpdateStatus)
		orders.DELETE("/:id", adminOnly, h.Order.DeleteOrder)
	}

	return router
}
