package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string

const (
	RideStatusPending   RideStatus = "pending"
	RideStatusAssigned  RideStatus = "assigned"
	RideStatusEnRoute   RideStatus = "en_route"
	RideStatusPickedUp  RideStatus = "picked_up"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// rideTransitions is the full lifecycle graph. Forward edges only; there is
// no way back out of a terminal state.
var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusPending:   {RideStatusAssigned, RideStatusCancelled},
	RideStatusAssigned:  {RideStatusEnRoute, RideStatusCancelled},
	RideStatusEnRoute:   {RideStatusPickedUp, RideStatusCancelled},
	RideStatusPickedUp:  {RideStatusCompleted},
	RideStatusCompleted: {},
	RideStatusCancelled: {},
}

func (s RideStatus) Valid() bool {
	_, ok := rideTransitions[s]
	return ok
}

func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// CanTransitionTo reports whether target is directly reachable from s.
func (s RideStatus) CanTransitionTo(target RideStatus) bool {
	for _, next := range rideTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type Ride struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	RideNumber    string              `json:"ride_number" bson:"ride_number"`
	RequesterID   primitive.ObjectID  `json:"requester_id" bson:"requester_id"`
	DriverID      *primitive.ObjectID `json:"driver_id" bson:"driver_id"`
	Pickup        Location            `json:"pickup" bson:"pickup"`
	Dropoff       Location            `json:"dropoff" bson:"dropoff"`
	Status        RideStatus          `json:"status" bson:"status"`
	Fare          *float64            `json:"fare" bson:"fare"`
	PaymentMethod *string             `json:"payment_method" bson:"payment_method"`
	Rating        *int                `json:"rating" bson:"rating"`
	Route         *Route              `json:"route,omitempty" bson:"route,omitempty"`
	CancelledBy   string              `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
	AssignedAt    *time.Time          `json:"assigned_at" bson:"assigned_at"`
	EnRouteAt     *time.Time          `json:"en_route_at" bson:"en_route_at"`
	PickedUpAt    *time.Time          `json:"picked_up_at" bson:"picked_up_at"`
	CompletedAt   *time.Time          `json:"completed_at" bson:"completed_at"`
	CancelledAt   *time.Time          `json:"cancelled_at" bson:"cancelled_at"`
	UpdatedAt     time.Time           `json:"updated_at" bson:"updated_at"`
}

// Assigned reports whether a driver is attached to the ride.
func (r *Ride) Assigned() bool {
	return r.DriverID != nil
}

// AssignedTo reports whether the given user is the ride's driver.
func (r *Ride) AssignedTo(userID primitive.ObjectID) bool {
	return r.DriverID != nil && *r.DriverID == userID
}
