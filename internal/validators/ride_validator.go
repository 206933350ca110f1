package validators

import "uberapp/internal/models"

type LocationRequest struct {
	Longitude float64 `json:"longitude" validate:"longitude"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Address   string  `json:"address" validate:"omitempty,max=255"`
}

func (l LocationRequest) Model() models.Location {
	location := models.NewLocation(l.Longitude, l.Latitude)
	location.Address = l.Address
	return location
}

type CreateRideRequest struct {
	Pickup  LocationRequest `json:"pickup" validate:"required"`
	Dropoff LocationRequest `json:"dropoff" validate:"required"`
}

// AdvanceStatusRequest moves a ride along its lifecycle. Fare and payment
// method are accepted only when the target status is completed.
type AdvanceStatusRequest struct {
	Status        string   `json:"status" validate:"required,oneof=en_route picked_up completed cancelled"`
	Fare          *float64 `json:"fare" validate:"omitnil,min=1,max=100000"`
	PaymentMethod *string  `json:"payment_method" validate:"omitnil,oneof=cash card mpesa"`
}

type RateRideRequest struct {
	Stars int `json:"stars" validate:"required,min=1,max=5"`
}
