package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"freight/internal/auth"
	"freight/internal/handler"
	"freight/internal/metrics"
	"freight/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TruckHandler   *handler.TruckHandler
	BookingHandler *handler.BookingHandler
	Verifier       auth.Verifier
	RedisClient    redis.Cmdable
	NewRelicApp    *newrelic.Application
	AllowedOrigins []string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware(deps.AllowedOrigins))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Everything under /v1 acts on behalf of an authenticated user.
	v1 := router.Group("/v1")
	v1.Use(middleware.Authenticate(deps.Verifier))
	v1.Use(middleware.NewRelicAttributes())
	if deps.RedisClient != nil {
		v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	}
	{
		trucks := v1.Group("/trucks")
		{
			trucks.GET("", deps.TruckHandler.ListAvailable)
			trucks.GET("/types", deps.TruckHandler.ListTypes)
			trucks.GET("/nearby", deps.TruckHandler.FindNearby)
			trucks.GET("/:id", deps.TruckHandler.GetTruck)
			trucks.GET("/:id/capacity", deps.TruckHandler.GetCapacity)
			trucks.POST("/:id/estimate", deps.TruckHandler.Estimate)
			trucks.POST("/:id/location", middleware.RequireRole(auth.RoleFleet), deps.TruckHandler.UpdateLocation)
		}

		bookings := v1.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("", deps.BookingHandler.ListBookings)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.POST("/:id/complete", deps.BookingHandler.CompleteBooking)
			bookings.POST("/:id/cancel", deps.BookingHandler.CancelBooking)
		}
	}

	return router
}
