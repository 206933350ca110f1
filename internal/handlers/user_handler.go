package handlers

import (
	"errors"
	"net/http"

	"uberapp/internal/middleware"
	"uberapp/internal/models"
	"uberapp/internal/services"
	"uberapp/internal/utils"
	"uberapp/internal/validators"

	"github.com/gin-gonic/gin"
)

const maxDocumentSize = 10 << 20 // 10 MiB

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Signup creates a user record for a verified identity
func (h *UserHandler) Signup(c *gin.Context) {
	var request validators.SignupRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if validationErrors := validators.ValidateStruct(&request); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors.FieldMap())
		return
	}

	token, ok := middleware.GetToken(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	user, err := h.userService.Signup(c.Request.Context(), token, &services.SignupInput{
		DisplayName:   request.DisplayName,
		Role:          models.UserRole(request.Role),
		DriverProfile: request.DriverProfile.Model(),
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			utils.ConflictResponse(c, "ACCOUNT_EXISTS", "Account already exists")
			return
		}
		utils.BadRequestResponse(c, err.Error())
		return
	}

	utils.CreatedResponse(c, "Account created successfully", user)
}

// GetProfile returns the caller's own user record
func (h *UserHandler) GetProfile(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), principal)
	if err != nil {
		respondUserError(c, err)
		return
	}

	utils.SuccessResponse(c, "Profile retrieved successfully", user)
}

// UpdateProfile updates the caller's display name or driver profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var request validators.UpdateProfileRequest
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

	user, err := h.userService.UpdateProfile(c.Request.Context(), principal, &services.ProfileUpdateInput{
		DisplayName:   request.DisplayName,
		DriverProfile: request.DriverProfile.Model(),
	})
	if err != nil {
		respondUserError(c, err)
		return
	}

	utils.SuccessResponse(c, "Profile updated successfully", user)
}

// UploadDocument stores a driver onboarding document in the blob store and
// records its URL on the driver profile
func (h *UserHandler) UploadDocument(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	name := c.PostForm("name")
	if name == "" {
		utils.BadRequestResponse(c, "Document name is required")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "Document file is required")
		return
	}
	defer file.Close()

	if header.Size > maxDocumentSize {
		utils.BadRequestResponse(c, "Document exceeds the size limit")
		return
	}

	user, err := h.userService.UploadDriverDocument(
		c.Request.Context(), principal, name, file, header.Size, header.Header.Get("Content-Type"),
	)
	if err != nil {
		respondUserError(c, err)
		return
	}

	utils.SuccessResponse(c, "Document uploaded successfully", user)
}

func respondUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		utils.NotFoundResponse(c, "User")
	case errors.Is(err, models.ErrUnauthorized):
		utils.ForbiddenResponse(c)
	case errors.Is(err, models.ErrConflict):
		utils.ConflictResponse(c, "CONFLICT", "User was modified concurrently, retry the request")
	default:
		utils.ErrorResponse(c, http.StatusBadRequest, "USER_OPERATION_FAILED", err.Error())
	}
}
