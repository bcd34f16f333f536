// Package router wires the HTTP API onto gin.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"store_api/internal/catalog"
	"store_api/internal/middleware"
	"store_api/internal/orders"
	"store_api/internal/payment"
	"store_api/internal/users"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// Deps are the services the handlers call into. A nil Redis disables rate limiting.
type Deps struct {
	Users    *users.Service
	Catalog  *catalog.Service
	Orders   *orders.Service
	Payments *payment.Service
	Redis    *rd.Client
	Logger   *slog.Logger

	WriteRateLimit  int
	WriteRateWindow time.Duration
}

// Setup registers every HTTP route.
func Setup(r *gin.Engine, d Deps) {
	useJSONFieldNames()
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	limit := func(scope string) gin.HandlerFunc {
		if d.Redis == nil || d.WriteRateLimit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RedisRateLimit(d.Redis, scope, d.WriteRateLimit, d.WriteRateWindow, d.Logger)
	}

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	api.POST("/register", register(d))
	api.POST("/login", login(d))
	api.GET("/v1/products", listProducts(d))
	api.GET("/v1/products/:id", getProduct(d))
	api.POST("/paypal/webhook", paypalWebhook(d))

	authed := api.Group("", middleware.Auth(d.Users))
	authed.GET("/user", profile(d))
	authed.PUT("/user", updateProfile(d))

	authed.GET("/orders", getOrders(d))
	authed.POST("/orders", limit("orders"), placeOrder(d))
	authed.PUT("/orders", limit("orders"), updateOrder(d))
	authed.DELETE("/orders", deleteOrder(d))

	authed.GET("/shippings", getShipping(d))
	authed.POST("/shippings", createShipping(d))
	authed.PUT("/shippings", updateShipping(d))
	authed.DELETE("/shippings", deleteShipping(d))

	authed.GET("/order-items", getOrderItems(d))
	authed.POST("/order-items", limit("orders"), addOrderItem(d))
	authed.PUT("/order-items", limit("orders"), updateOrderItem(d))
	authed.DELETE("/order-items", removeOrderItem(d))

	authed.GET("/payments", getPayment(d))
	authed.POST("/paypal/create", limit("payments"), createPayment(d))
	authed.POST("/paypal/capture", limit("payments"), capturePayment(d))

	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.POST("/products", createProduct(d))
	admin.GET("/orders", listAllOrders(d))
	admin.GET("/orders/summary", orderSummary(d))
	admin.PUT("/orders/status", updateOrderStatus(d))
	admin.GET("/users", listUsers(d))
	admin.PUT("/users/disable", disableUser(d))
}
