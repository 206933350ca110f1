package utils

// Application constants
const (
	AppName    = "UberApp"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Ride constraints
	MinRatingStars = 1
	MaxRatingStars = 5
	MinFare        = 1.0
	MaxFare        = 100000.0

	// Response status values
	StatusSuccess = "success"
	StatusError   = "error"
)

// Common error messages
const (
	ErrValidationFailed = "Validation failed"
	ErrInternalServer   = "Internal server error"
	ErrUnauthorized     = "Authentication required"
	ErrForbidden        = "Access denied"
)

// Payment methods accepted at completion.
var PaymentMethods = []string{"cash", "card", "mpesa"}

func ValidPaymentMethod(method string) bool {
	for _, m := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}
