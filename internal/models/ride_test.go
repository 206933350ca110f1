package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[RideStatus][]RideStatus{
		RideStatusPending:  {RideStatusAssigned, RideStatusCancelled},
		RideStatusAssigned: {RideStatusEnRoute, RideStatusCancelled},
		RideStatusEnRoute:  {RideStatusPickedUp, RideStatusCancelled},
		RideStatusPickedUp: {RideStatusCompleted},
	}
	all := []RideStatus{
		RideStatusPending, RideStatusAssigned, RideStatusEnRoute,
		RideStatusPickedUp, RideStatusCompleted, RideStatusCancelled,
	}

	for from, targets := range allowed {
		permitted := map[RideStatus]bool{}
		for _, target := range targets {
			permitted[target] = true
		}
		for _, to := range all {
			assert.Equal(t, permitted[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []RideStatus{
		RideStatusPending, RideStatusAssigned, RideStatusEnRoute,
		RideStatusPickedUp, RideStatusCompleted, RideStatusCancelled,
	}
	for _, terminal := range []RideStatus{RideStatusCompleted, RideStatusCancelled} {
		assert.True(t, terminal.Terminal())
		for _, to := range all {
			assert.False(t, terminal.CanTransitionTo(to), "%s -> %s", terminal, to)
		}
	}
	assert.False(t, RideStatusPending.Terminal())
	assert.False(t, RideStatusPickedUp.Terminal())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, RideStatusEnRoute.Valid())
	assert.False(t, RideStatus("driving").Valid())
	assert.False(t, RideStatus("").Valid())
}

func TestAssignedTo(t *testing.T) {
	driverID := primitive.NewObjectID()
	ride := &Ride{}

	assert.False(t, ride.Assigned())
	assert.False(t, ride.AssignedTo(driverID))

	ride.DriverID = &driverID
	assert.True(t, ride.Assigned())
	assert.True(t, ride.AssignedTo(driverID))
	assert.False(t, ride.AssignedTo(primitive.NewObjectID()))
}
