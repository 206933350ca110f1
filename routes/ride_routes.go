package routes

import (
	"uberapp/internal/handlers"
	"uberapp/internal/middleware"
	"uberapp/internal/services"
	"uberapp/pkg/identity"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up the ride lifecycle routes
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, provider identity.Provider, userService services.UserService) {
	rides := r.Group("/rides")
	rides.Use(middleware.AuthRequired(provider, userService))
	{
		rides.POST("", middleware.CustomerRequired(), rideHandler.CreateRide)
		rides.GET("", rideHandler.ListRides)
		rides.GET("/:id", rideHandler.GetRide)
		rides.GET("/:id/receipt", rideHandler.GetReceipt)

		rides.POST("/:id/assign", middleware.DriverRequired(), rideHandler.AssignRide)
		rides.PUT("/:id/status", rideHandler.UpdateStatus)
		rides.POST("/:id/rating", middleware.CustomerRequired(), rideHandler.RateRide)
	}

	driver := r.Group("/driver")
	driver.Use(middleware.AuthRequired(provider, userService), middleware.DriverRequired())
	{
		driver.GET("/earnings", rideHandler.GetEarnings)
	}

	// Admin monitor; the same listing handler serves it because an admin
	// principal's ride view is unrestricted.
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(provider, userService), middleware.AdminRequired())
	{
		admin.GET("/rides", rideHandler.ListRides)
	}
}
