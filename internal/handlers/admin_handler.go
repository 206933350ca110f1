package handlers

import (
	"uberapp/internal/middleware"
	"uberapp/internal/services"
	"uberapp/internal/utils"
	"uberapp/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminHandler serves the back-office surface: driver approval and the
// all-rides monitor. Routes are gated by AdminRequired.
type AdminHandler struct {
	userService services.UserService
}

func NewAdminHandler(userService services.UserService) *AdminHandler {
	return &AdminHandler{
		userService: userService,
	}
}

// ListDrivers returns drivers, optionally filtered by approval state
func (h *AdminHandler) ListDrivers(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var approved *bool
	switch c.Query("approved") {
	case "true":
		value := true
		approved = &value
	case "false":
		value := false
		approved = &value
	case "":
	default:
		utils.BadRequestResponse(c, "approved filter must be true or false")
		return
	}

	params := utils.GetPaginationParams(c)
	drivers, total, err := h.userService.ListDrivers(c.Request.Context(), principal, approved, params)
	if err != nil {
		respondUserError(c, err)
		return
	}

	meta := &utils.Meta{Pagination: utils.NewPaginationMeta(params, total)}
	utils.SuccessResponseWithMeta(c, "Drivers retrieved successfully", drivers, meta)
}

// ListPendingDrivers returns the approval queue
func (h *AdminHandler) ListPendingDrivers(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	pending := false
	params := utils.GetPaginationParams(c)
	drivers, total, err := h.userService.ListDrivers(c.Request.Context(), principal, &pending, params)
	if err != nil {
		respondUserError(c, err)
		return
	}

	meta := &utils.Meta{Pagination: utils.NewPaginationMeta(params, total)}
	utils.SuccessResponseWithMeta(c, "Pending drivers retrieved successfully", drivers, meta)
}

// ApproveDriver flips a driver's approval and pushes the claim to the
// identity provider
func (h *AdminHandler) ApproveDriver(c *gin.Context) {
	driverID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid driver ID")
		return
	}

	var request validators.ApproveDriverRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	driver, err := h.userService.ApproveDriver(c.Request.Context(), principal, driverID, request.Approved)
	if err != nil {
		respondUserError(c, err)
		return
	}

	utils.SuccessResponse(c, "Driver approval updated successfully", driver)
}
