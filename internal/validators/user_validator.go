package validators

import "uberapp/internal/models"

type SignupRequest struct {
	DisplayName   string                `json:"display_name" validate:"required,min=2,max=100"`
	Role          string                `json:"role" validate:"omitempty,oneof=customer driver"`
	DriverProfile *DriverProfileRequest `json:"driver_profile" validate:"omitempty"`
}

type DriverProfileRequest struct {
	PlateNumber string `json:"plate_number" validate:"required,min=2,max=20"`
	VehicleType string `json:"vehicle_type" validate:"required,min=2,max=50"`
	SeatCount   int    `json:"seat_count" validate:"required,min=1,max=8"`
}

func (d *DriverProfileRequest) Model() *models.DriverProfile {
	if d == nil {
		return nil
	}
	return &models.DriverProfile{
		PlateNumber: d.PlateNumber,
		VehicleType: d.VehicleType,
		SeatCount:   d.SeatCount,
	}
}

type UpdateProfileRequest struct {
	DisplayName   *string               `json:"display_name" validate:"omitnil,min=2,max=100"`
	DriverProfile *DriverProfileRequest `json:"driver_profile" validate:"omitempty"`
}

type ApproveDriverRequest struct {
	Approved bool `json:"approved"`
}
