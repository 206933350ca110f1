package handlers

import (
	"context"
	"errors"
	"net/http"

	"uberapp/internal/middleware"
	"uberapp/internal/models"
	"uberapp/internal/services"
	"uberapp/internal/utils"
	"uberapp/internal/validators"
	"uberapp/pkg/retry"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideHandler struct {
	rideService services.RideService
}

func NewRideHandler(rideService services.RideService) *RideHandler {
	return &RideHandler{
		rideService: rideService,
	}
}

// CreateRide opens a new ride request for the authenticated customer
func (h *RideHandler) CreateRide(c *gin.Context) {
	var request validators.CreateRideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if validationErrors := validators.ValidateStruct(&request); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors.FieldMap())
		return
	}

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), principal, request.Pickup.Model(), request.Dropoff.Model())
	if err != nil {
		respondRideError(c, err)
		return
	}

	utils.CreatedResponse(c, "Ride created successfully", ride)
}

// AssignRide lets a driver claim a pending ride. Exactly one of several
// concurrent claimants wins.
func (h *RideHandler) AssignRide(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride, err := h.rideService.AssignDriver(c.Request.Context(), principal, rideID)
	if err != nil {
		respondRideError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride assigned successfully", ride)
}

// UpdateStatus advances a ride along its lifecycle. A target of completed
// must carry the finalized fare and payment method.
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	var request validators.AdvanceStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if validationErrors := validators.ValidateStruct(&request); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors.FieldMap())
		return
	}

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	target := models.RideStatus(request.Status)
	var ride *models.Ride
	var err error
	if target == models.RideStatusCompleted {
		if request.Fare == nil || request.PaymentMethod == nil {
			utils.BadRequestResponse(c, "Completion requires fare and payment_method")
			return
		}
		ride, err = h.rideService.CompleteRide(c.Request.Context(), principal, rideID, *request.Fare, *request.PaymentMethod)
	} else {
		// Cancellation can race the driver's transitions; retry the lost
		// write so the caller gets a definitive answer.
		err = withConflictRetry(c.Request.Context(), func(ctx context.Context) error {
			ride, err = h.rideService.AdvanceStatus(ctx, principal, rideID, target)
			return err
		})
	}
	if err != nil {
		respondRideError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride status updated successfully", ride)
}

// RateRide records the requester's one-time rating of a completed ride
func (h *RideHandler) RateRide(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}

	var request validators.RateRideRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if validationErrors := validators.ValidateStruct(&request); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors.FieldMap())
		return
	}

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride, err := h.rideService.RateRide(c.Request.Context(), principal, rideID, request.Stars)
	if err != nil {
		respondRideError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride rated successfully", ride)
}

// GetRide retrieves one ride visible to the caller
func (h *RideHandler) GetRide(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	ride, err := h.rideService.GetRide(c.Request.Context(), principal, rideID)
	if err != nil {
		respondRideError(c, err)
		return
	}

	utils.SuccessResponse(c, "Ride retrieved successfully", ride)
}

// ListRides returns the caller's role view of ride history
func (h *RideHandler) ListRides(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var status *models.RideStatus
	if raw := c.Query("status"); raw != "" {
		candidate := models.RideStatus(raw)
		if !candidate.Valid() {
			utils.BadRequestResponse(c, "Unknown status filter: "+raw)
			return
		}
		status = &candidate
	}

	params := utils.GetPaginationParams(c)
	rides, total, err := h.rideService.ListRides(c.Request.Context(), principal, status, params)
	if err != nil {
		respondRideError(c, err)
		return
	}

	meta := &utils.Meta{Pagination: utils.NewPaginationMeta(params, total)}
	utils.SuccessResponseWithMeta(c, "Rides retrieved successfully", rides, meta)
}

// GetReceipt renders the fare breakdown for a completed ride
func (h *RideHandler) GetReceipt(c *gin.Context) {
	rideID, ok := rideIDParam(c)
	if !ok {
		return
	}
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	receipt, err := h.rideService.Receipt(c.Request.Context(), principal, rideID)
	if err != nil {
		respondRideError(c, err)
		return
	}

	utils.SuccessResponse(c, "Receipt retrieved successfully", receipt)
}

// GetEarnings totals the driver's completed fares
func (h *RideHandler) GetEarnings(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	summary, err := h.rideService.DriverEarnings(c.Request.Context(), principal)
	if err != nil {
		respondRideError(c, err)
		return
	}

	utils.SuccessResponse(c, "Earnings retrieved successfully", summary)
}

func rideIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	rideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ride ID")
		return primitive.NilObjectID, false
	}
	return rideID, true
}

// withConflictRetry re-runs fn a few times when the underlying conditional
// write loses a race. Other errors pass through untouched.
func withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	config := retry.DefaultConfig()
	config.Retryable = func(err error) bool {
		return errors.Is(err, models.ErrConflict)
	}
	return retry.Do(ctx, config, fn)
}

// respondRideError maps lifecycle errors onto HTTP statuses.
func respondRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		utils.NotFoundResponse(c, "Ride")
	case errors.Is(err, models.ErrUnauthorized):
		utils.ForbiddenResponse(c)
	case errors.Is(err, models.ErrUnapprovedDriver):
		utils.ErrorResponse(c, http.StatusForbidden, "DRIVER_NOT_APPROVED", "Driver account is not approved")
	case errors.Is(err, models.ErrInvalidTransition):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, models.ErrAlreadyRated):
		utils.ConflictResponse(c, "ALREADY_RATED", "Ride has already been rated")
	case errors.Is(err, models.ErrConflict):
		utils.ConflictResponse(c, "CONFLICT", "Ride was modified concurrently, retry the request")
	default:
		utils.BadRequestResponse(c, err.Error())
	}
}
