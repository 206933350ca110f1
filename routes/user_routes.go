package routes

import (
	"uberapp/internal/handlers"
	"uberapp/internal/middleware"
	"uberapp/internal/services"
	"uberapp/pkg/identity"

	"github.com/gin-gonic/gin"
)

// SetupUserRoutes sets up account and back-office routes
func SetupUserRoutes(
	r *gin.RouterGroup,
	userHandler *handlers.UserHandler,
	adminHandler *handlers.AdminHandler,
	wsHandler *handlers.WSHandler,
	provider identity.Provider,
	userService services.UserService,
) {
	// Signup needs a verified identity but no account yet.
	r.POST("/auth/signup", middleware.TokenRequired(provider), userHandler.Signup)

	users := r.Group("/users")
	users.Use(middleware.AuthRequired(provider, userService))
	{
		users.GET("/me", userHandler.GetProfile)
		users.PUT("/me", userHandler.UpdateProfile)
		users.POST("/me/documents", middleware.DriverRequired(), userHandler.UploadDocument)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(provider, userService), middleware.AdminRequired())
	{
		admin.GET("/drivers", adminHandler.ListDrivers)
		admin.GET("/drivers/pending", adminHandler.ListPendingDrivers)
		admin.PUT("/drivers/:id/approve", adminHandler.ApproveDriver)
	}

	r.GET("/ws", middleware.AuthRequired(provider, userService), wsHandler.Connect)
}
