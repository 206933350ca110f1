package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleDriver   UserRole = "driver"
	RoleAdmin    UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProviderUID   string             `json:"provider_uid" bson:"provider_uid" validate:"required"`
	DisplayName   string             `json:"display_name" bson:"display_name" validate:"required,min=2,max=100"`
	Email         string             `json:"email" bson:"email" validate:"required,email"`
	Role          UserRole           `json:"role" bson:"role" validate:"required"`
	Approved      bool               `json:"approved" bson:"approved"`
	ProfilePhoto  string             `json:"profile_photo" bson:"profile_photo"`
	DriverProfile *DriverProfile     `json:"driver_profile,omitempty" bson:"driver_profile,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// DriverProfile is present only for role=driver. Document values are blob
// store URLs produced by the storage provider.
type DriverProfile struct {
	PlateNumber string            `json:"plate_number" bson:"plate_number"`
	VehicleType string            `json:"vehicle_type" bson:"vehicle_type"`
	SeatCount   int               `json:"seat_count" bson:"seat_count"`
	Documents   map[string]string `json:"documents" bson:"documents"`
}

// CanDrive reports whether the user may be assigned to a ride.
func (u *User) CanDrive() bool {
	return u.Role == RoleDriver && u.Approved
}

// Principal is the authenticated actor behind a request. Engine operations
// take it explicitly instead of reading ambient auth state.
type Principal struct {
	UserID   primitive.ObjectID `json:"user_id"`
	Role     UserRole           `json:"role"`
	Approved bool               `json:"approved"`
}

func (p Principal) IsAdmin() bool    { return p.Role == RoleAdmin }
func (p Principal) IsDriver() bool   { return p.Role == RoleDriver }
func (p Principal) IsCustomer() bool { return p.Role == RoleCustomer }
