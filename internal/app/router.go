package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridelink/internal/handler"
	"ridelink/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	UserHandler     *handler.UserHandler
	RideHandler     *handler.RideHandler
	DriverHandler   *handler.DriverHandler
	PaymentHandler  *handler.PaymentHandler
	WhatsAppHandler *handler.WhatsAppHandler
	AuthManager     *middleware.AuthManager
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Inbound webhooks are authenticated by their own mechanisms
	// (Twilio signature, processor signature), not bearer tokens.
	webhooks := router.Group("/webhook")
	{
		webhooks.POST("/whatsapp", deps.WhatsAppHandler.Inbound)
		webhooks.POST("/payments", deps.PaymentHandler.Webhook)
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// User routes.
		users := v1.Group("/users")
		{
			users.POST("/register", deps.UserHandler.Register)
			users.POST("/login", deps.UserHandler.Login)

			me := users.Group("/me", deps.AuthManager.RequireAuth())
			{
				me.GET("", deps.UserHandler.Me)
				me.GET("/rides", deps.UserHandler.RideHistory)
				me.GET("/stats", deps.UserHandler.Stats)
			}
		}

		// Ride routes.
		rides := v1.Group("/rides", deps.AuthManager.RequireAuth())
		{
			rides.POST("", deps.RideHandler.RequestRide)
			rides.GET("", deps.RideHandler.ListActive)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.GET("/:id/payment", deps.PaymentHandler.GetByRide)
			rides.POST("/:id/accept", deps.RideHandler.AcceptRide)
			rides.POST("/:id/start", deps.RideHandler.StartRide)
			rides.POST("/:id/complete", deps.RideHandler.CompleteRide)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
		}

		// Driver routes.
		drivers := v1.Group("/drivers")
		{
			drivers.POST("/register", deps.DriverHandler.RegisterDriver)
			drivers.GET("/:id", deps.DriverHandler.GetDriver)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.GET("/:id/earnings", deps.DriverHandler.Earnings)
		}
	}

	return router
}
