package handler

import (
	"github.com/bamanh2802/bookingcar/backend-booking/internal/domain"
	"github.com/bamanh2802/bookingcar/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// RouterConfig holds the handlers and middleware mounted by NewRouter
type RouterConfig struct {
	Health         *HealthHandler
	TicketRequests *TicketRequestHandler
	Trips          *TripHandler
	Notifications  *NotificationHandler

	// Auth authenticates every /api/v1 route
	Auth gin.HandlerFunc
	// Permissions resolves role permissions for route guards
	Permissions middleware.PermissionLookup
	// Optional middleware, skipped when nil
	CORS      gin.HandlerFunc
	RateLimit gin.HandlerFunc
	Audit     gin.HandlerFunc
}

// NewRouter builds the gin engine with every booking route
func NewRouter(cfg *RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.CORS != nil {
		r.Use(cfg.CORS)
	}

	r.GET("/health", cfg.Health.Health)
	r.GET("/ready", cfg.Health.Ready)

	api := r.Group("/api/v1")
	if cfg.Auth != nil {
		api.Use(cfg.Auth)
	}
	if cfg.RateLimit != nil {
		api.Use(cfg.RateLimit)
	}
	if cfg.Audit != nil {
		api.Use(cfg.Audit)
	}

	require := func(perms ...string) gin.HandlerFunc {
		return middleware.RequirePermission(cfg.Permissions, perms...)
	}

	requests := api.Group("/ticket-requests")
	{
		requests.POST("", require(domain.PermTicketRequestCreate), cfg.TicketRequests.Create)
		requests.GET("", require(domain.PermTicketRequestRead), cfg.TicketRequests.List)
		requests.GET("/:id", require(domain.PermTicketRequestRead), cfg.TicketRequests.Get)
		// ownership and approval are checked by the service
		requests.PATCH("/:id", cfg.TicketRequests.Update)
		requests.DELETE("/:id", cfg.TicketRequests.Delete)
	}

	api.GET("/tickets/:id", require(domain.PermTicketRead), cfg.Trips.GetTicket)

	trips := api.Group("/trips")
	{
		trips.POST("", require(domain.PermTripManage), cfg.Trips.Create)
		trips.GET("/:id", require(domain.PermTripRead), cfg.Trips.Get)
		trips.PATCH("/:id/status", require(domain.PermTripManage), cfg.Trips.UpdateStatus)
		trips.PATCH("/:id/seats", require(domain.PermTripManage), cfg.Trips.Resize)
		trips.POST("/:id/commissions", require(domain.PermCommissionPay), cfg.Trips.PayCommissions)
	}

	if cfg.Notifications != nil {
		api.GET("/notifications", cfg.Notifications.List)
		api.GET("/notifications/stream", cfg.Notifications.Stream)
		api.POST("/presence/heartbeat", cfg.Notifications.Heartbeat)
	}

	return r
}
