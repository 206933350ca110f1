package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"uberapp/internal/models"
	"uberapp/internal/repositories/memory"
	"uberapp/internal/utils"
	"uberapp/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type rideFixture struct {
	store   *memory.Store
	service RideService

	customer    models.Principal
	driver      models.Principal
	otherDriver models.Principal
	unapproved  models.Principal
	admin       models.Principal
}

func newRideFixture(t *testing.T) *rideFixture {
	t.Helper()

	log, err := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel})
	require.NoError(t, err)

	store := memory.NewStore()
	f := &rideFixture{
		store:   store,
		service: NewRideService(store.Rides(), store.Users(), nil, nil, log),
	}

	f.customer = f.seedUser(t, models.RoleCustomer, true)
	f.driver = f.seedUser(t, models.RoleDriver, true)
	f.otherDriver = f.seedUser(t, models.RoleDriver, true)
	f.unapproved = f.seedUser(t, models.RoleDriver, false)
	f.admin = f.seedUser(t, models.RoleAdmin, true)
	return f
}

func (f *rideFixture) seedUser(t *testing.T, role models.UserRole, approved bool) models.Principal {
	t.Helper()

	user := &models.User{
		ProviderUID: primitive.NewObjectID().Hex(),
		DisplayName: "Test " + string(role),
		Email:       string(role) + "@example.com",
		Role:        role,
		Approved:    approved,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return models.Principal{UserID: user.ID, Role: role, Approved: approved}
}

func (f *rideFixture) createRide(t *testing.T) *models.Ride {
	t.Helper()

	ride, err := f.service.CreateRide(context.Background(),
		f.customer,
		models.NewLocation(36.8, -1.3),
		models.NewLocation(36.9, -1.4),
	)
	require.NoError(t, err)
	return ride
}

func TestRideLifecycle(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()

	ride := f.createRide(t)
	assert.Equal(t, models.RideStatusPending, ride.Status)
	assert.Nil(t, ride.DriverID)
	assert.Nil(t, ride.Fare)
	assert.NotEmpty(t, ride.RideNumber)

	ride, err := f.service.AssignDriver(ctx, f.driver, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusAssigned, ride.Status)
	require.NotNil(t, ride.DriverID)
	assert.Equal(t, f.driver.UserID, *ride.DriverID)
	assert.NotNil(t, ride.AssignedAt)

	ride, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusEnRoute)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusEnRoute, ride.Status)

	ride, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusPickedUp)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusPickedUp, ride.Status)

	ride, err = f.service.CompleteRide(ctx, f.driver, ride.ID, 500, "cash")
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCompleted, ride.Status)
	require.NotNil(t, ride.Fare)
	assert.Equal(t, 500.0, *ride.Fare)
	require.NotNil(t, ride.PaymentMethod)
	assert.Equal(t, "cash", *ride.PaymentMethod)
	assert.NotNil(t, ride.CompletedAt)

	ride, err = f.service.RateRide(ctx, f.customer, ride.ID, 4)
	require.NoError(t, err)
	require.NotNil(t, ride.Rating)
	assert.Equal(t, 4, *ride.Rating)

	_, err = f.service.RateRide(ctx, f.customer, ride.ID, 5)
	assert.ErrorIs(t, err, models.ErrAlreadyRated)

	// The stored rating is untouched by the rejected second attempt.
	stored, err := f.service.GetRide(ctx, f.customer, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, *stored.Rating)
}

func TestCreateRideRequiresCustomer(t *testing.T) {
	f := newRideFixture(t)

	_, err := f.service.CreateRide(context.Background(),
		f.driver,
		models.NewLocation(36.8, -1.3),
		models.NewLocation(36.9, -1.4),
	)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCreateRideRejectsBadCoordinates(t *testing.T) {
	f := newRideFixture(t)

	_, err := f.service.CreateRide(context.Background(),
		f.customer,
		models.NewLocation(240, -1.3),
		models.NewLocation(36.9, -1.4),
	)
	assert.Error(t, err)
}

func TestAssignDriverUnapproved(t *testing.T) {
	f := newRideFixture(t)
	ride := f.createRide(t)

	_, err := f.service.AssignDriver(context.Background(), f.unapproved, ride.ID)
	assert.ErrorIs(t, err, models.ErrUnapprovedDriver)

	stored, err := f.service.GetRide(context.Background(), f.customer, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusPending, stored.Status)
}

func TestAssignDriverExactlyOneWins(t *testing.T) {
	f := newRideFixture(t)
	ride := f.createRide(t)
	ctx := context.Background()

	claimants := []models.Principal{f.driver, f.otherDriver}
	results := make([]error, len(claimants))

	var wg sync.WaitGroup
	for i, claimant := range claimants {
		wg.Add(1)
		go func(i int, claimant models.Principal) {
			defer wg.Done()
			_, results[i] = f.service.AssignDriver(ctx, claimant, ride.ID)
		}(i, claimant)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.True(t,
				errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrInvalidTransition),
				"loser got unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)

	stored, err := f.service.GetRide(ctx, f.admin, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusAssigned, stored.Status)
	assert.NotNil(t, stored.DriverID)
}

func TestAssignDriverAlreadyAssigned(t *testing.T) {
	f := newRideFixture(t)
	ride := f.createRide(t)
	ctx := context.Background()

	_, err := f.service.AssignDriver(ctx, f.driver, ride.ID)
	require.NoError(t, err)

	_, err = f.service.AssignDriver(ctx, f.otherDriver, ride.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAdvanceStatusSkippingStates(t *testing.T) {
	f := newRideFixture(t)
	ride := f.createRide(t)
	ctx := context.Background()

	_, err := f.service.AssignDriver(ctx, f.driver, ride.ID)
	require.NoError(t, err)

	// assigned -> picked_up skips en_route
	_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusPickedUp)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	// assigned -> completed skips everything, with or without a fare
	_, err = f.service.CompleteRide(ctx, f.driver, ride.ID, 500, "cash")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusCompleted)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAdvanceStatusOnlyAssignedDriver(t *testing.T) {
	f := newRideFixture(t)
	ride := f.createRide(t)
	ctx := context.Background()

	_, err := f.service.AssignDriver(ctx, f.driver, ride.ID)
	require.NoError(t, err)

	_, err = f.service.AdvanceStatus(ctx, f.otherDriver, ride.ID, models.RideStatusEnRoute)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.service.AdvanceStatus(ctx, f.customer, ride.ID, models.RideStatusEnRoute)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCancellation(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()

	t.Run("requester cancels pending", func(t *testing.T) {
		ride := f.createRide(t)
		cancelled, err := f.service.AdvanceStatus(ctx, f.customer, ride.ID, models.RideStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, models.RideStatusCancelled, cancelled.Status)
		assert.Equal(t, string(models.RoleCustomer), cancelled.CancelledBy)
		assert.NotNil(t, cancelled.CancelledAt)
	})

	t.Run("admin cancels en_route", func(t *testing.T) {
		ride := f.createRide(t)
		_, err := f.service.AssignDriver(ctx, f.driver, ride.ID)
		require.NoError(t, err)
		_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusEnRoute)
		require.NoError(t, err)

		cancelled, err := f.service.AdvanceStatus(ctx, f.admin, ride.ID, models.RideStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, string(models.RoleAdmin), cancelled.CancelledBy)
	})

	t.Run("driver cannot cancel", func(t *testing.T) {
		ride := f.createRide(t)
		_, err := f.service.AssignDriver(ctx, f.driver, ride.ID)
		require.NoError(t, err)

		_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusCancelled)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("no cancellation after pickup", func(t *testing.T) {
		ride := f.createRide(t)
		_, err := f.service.AssignDriver(ctx, f.driver, ride.ID)
		require.NoError(t, err)
		_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusEnRoute)
		require.NoError(t, err)
		_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusPickedUp)
		require.NoError(t, err)

		_, err = f.service.AdvanceStatus(ctx, f.customer, ride.ID, models.RideStatusCancelled)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestCompleteRideValidation(t *testing.T) {
	f := newRideFixture(t)
	ride := f.createRide(t)
	ctx := context.Background()

	_, err := f.service.AssignDriver(ctx, f.driver, ride.ID)
	require.NoError(t, err)
	_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusEnRoute)
	require.NoError(t, err)
	_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusPickedUp)
	require.NoError(t, err)

	_, err = f.service.CompleteRide(ctx, f.driver, ride.ID, 0, "cash")
	assert.Error(t, err)

	_, err = f.service.CompleteRide(ctx, f.driver, ride.ID, 500, "cheque")
	assert.Error(t, err)

	_, err = f.service.CompleteRide(ctx, f.otherDriver, ride.ID, 500, "cash")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// Still in picked_up after the rejected attempts.
	stored, err := f.service.GetRide(ctx, f.customer, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusPickedUp, stored.Status)
	assert.Nil(t, stored.Fare)
}

func TestRateRideRules(t *testing.T) {
	f := newRideFixture(t)
	ride := f.createRide(t)
	ctx := context.Background()

	_, err := f.service.RateRide(ctx, f.customer, ride.ID, 4)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = f.service.AssignDriver(ctx, f.driver, ride.ID)
	require.NoError(t, err)
	_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusEnRoute)
	require.NoError(t, err)
	_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusPickedUp)
	require.NoError(t, err)
	_, err = f.service.CompleteRide(ctx, f.driver, ride.ID, 500, "cash")
	require.NoError(t, err)

	_, err = f.service.RateRide(ctx, f.driver, ride.ID, 4)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.service.RateRide(ctx, f.customer, ride.ID, 0)
	assert.Error(t, err)
	_, err = f.service.RateRide(ctx, f.customer, ride.ID, 6)
	assert.Error(t, err)

	_, err = f.service.RateRide(ctx, f.customer, ride.ID, 5)
	assert.NoError(t, err)
}

func TestGetRideVisibility(t *testing.T) {
	f := newRideFixture(t)
	ride := f.createRide(t)
	ctx := context.Background()

	// Pending unassigned rides are open offers: any driver may look.
	_, err := f.service.GetRide(ctx, f.driver, ride.ID)
	assert.NoError(t, err)
	_, err = f.service.GetRide(ctx, f.unapproved, ride.ID)
	assert.NoError(t, err)

	otherCustomer := f.seedUser(t, models.RoleCustomer, true)
	_, err = f.service.GetRide(ctx, otherCustomer, ride.ID)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.service.AssignDriver(ctx, f.driver, ride.ID)
	require.NoError(t, err)

	// Once assigned, only the participants and admins see it.
	_, err = f.service.GetRide(ctx, f.otherDriver, ride.ID)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = f.service.GetRide(ctx, f.driver, ride.ID)
	assert.NoError(t, err)
	_, err = f.service.GetRide(ctx, f.customer, ride.ID)
	assert.NoError(t, err)
	_, err = f.service.GetRide(ctx, f.admin, ride.ID)
	assert.NoError(t, err)
}

func TestListRidesRoleViews(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()

	open := f.createRide(t)
	assigned := f.createRide(t)
	_, err := f.service.AssignDriver(ctx, f.driver, assigned.ID)
	require.NoError(t, err)

	otherCustomer := f.seedUser(t, models.RoleCustomer, true)
	foreign, err := f.service.CreateRide(ctx, otherCustomer,
		models.NewLocation(36.7, -1.2), models.NewLocation(36.8, -1.3))
	require.NoError(t, err)

	params := utils.DefaultPagination()

	rides, total, err := f.service.ListRides(ctx, f.customer, nil, params)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, ride := range rides {
		assert.Equal(t, f.customer.UserID, ride.RequesterID)
	}

	// Driver view: assigned rides plus open offers, not other requesters'
	// assigned rides.
	rides, total, err = f.service.ListRides(ctx, f.driver, nil, params)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	ids := map[primitive.ObjectID]bool{}
	for _, ride := range rides {
		ids[ride.ID] = true
	}
	assert.True(t, ids[open.ID])
	assert.True(t, ids[assigned.ID])
	assert.True(t, ids[foreign.ID]) // still pending, still an offer

	_, total, err = f.service.ListRides(ctx, f.admin, nil, params)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	pending := models.RideStatusPending
	_, total, err = f.service.ListRides(ctx, f.admin, &pending, params)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestReceipt(t *testing.T) {
	f := newRideFixture(t)
	ride := f.createRide(t)
	ctx := context.Background()

	_, err := f.service.Receipt(ctx, f.customer, ride.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.service.AssignDriver(ctx, f.driver, ride.ID)
	require.NoError(t, err)
	_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusEnRoute)
	require.NoError(t, err)
	_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusPickedUp)
	require.NoError(t, err)
	_, err = f.service.CompleteRide(ctx, f.driver, ride.ID, 500, "mpesa")
	require.NoError(t, err)

	receipt, err := f.service.Receipt(ctx, f.customer, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, receipt.Breakdown.Total)
	assert.InDelta(t, 300.0, receipt.Breakdown.Base, 0.001)
	assert.InDelta(t, 150.0, receipt.Breakdown.Distance, 0.001)
	assert.InDelta(t, 50.0, receipt.Breakdown.Tax, 0.001)
	assert.Equal(t, models.DefaultCurrency, receipt.Breakdown.Currency)
	assert.Equal(t, "mpesa", receipt.PaymentMethod)
}

func TestDriverEarnings(t *testing.T) {
	f := newRideFixture(t)
	ctx := context.Background()

	fares := []float64{500, 750.50}
	for _, fare := range fares {
		ride := f.createRide(t)
		_, err := f.service.AssignDriver(ctx, f.driver, ride.ID)
		require.NoError(t, err)
		_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusEnRoute)
		require.NoError(t, err)
		_, err = f.service.AdvanceStatus(ctx, f.driver, ride.ID, models.RideStatusPickedUp)
		require.NoError(t, err)
		_, err = f.service.CompleteRide(ctx, f.driver, ride.ID, fare, "cash")
		require.NoError(t, err)
	}

	// A cancelled ride contributes nothing.
	cancelled := f.createRide(t)
	_, err := f.service.AssignDriver(ctx, f.driver, cancelled.ID)
	require.NoError(t, err)
	_, err = f.service.AdvanceStatus(ctx, f.customer, cancelled.ID, models.RideStatusCancelled)
	require.NoError(t, err)

	summary, err := f.service.DriverEarnings(ctx, f.driver)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.RideCount)
	assert.InDelta(t, 1250.50, summary.Total, 0.001)
	assert.Equal(t, models.DefaultCurrency, summary.Currency)

	_, err = f.service.DriverEarnings(ctx, f.customer)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
