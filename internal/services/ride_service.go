package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"uberapp/internal/models"
	"uberapp/internal/repositories/interfaces"
	"uberapp/internal/utils"
	"uberapp/pkg/logger"
	"uberapp/pkg/maps"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideService drives the ride lifecycle. Every method takes the calling
// principal explicitly; nothing here reads ambient identity. State changes
// go through the repository's conditional update, so two racing callers
// can never both win the same transition.
type RideService interface {
	CreateRide(ctx context.Context, principal models.Principal, pickup, dropoff models.Location) (*models.Ride, error)
	AssignDriver(ctx context.Context, principal models.Principal, rideID primitive.ObjectID) (*models.Ride, error)
	AdvanceStatus(ctx context.Context, principal models.Principal, rideID primitive.ObjectID, target models.RideStatus) (*models.Ride, error)
	CompleteRide(ctx context.Context, principal models.Principal, rideID primitive.ObjectID, fare float64, paymentMethod string) (*models.Ride, error)
	RateRide(ctx context.Context, principal models.Principal, rideID primitive.ObjectID, stars int) (*models.Ride, error)

	GetRide(ctx context.Context, principal models.Principal, rideID primitive.ObjectID) (*models.Ride, error)
	ListRides(ctx context.Context, principal models.Principal, status *models.RideStatus, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	Receipt(ctx context.Context, principal models.Principal, rideID primitive.ObjectID) (*models.Receipt, error)
	DriverEarnings(ctx context.Context, principal models.Principal) (*models.EarningsSummary, error)

	// QueryForPrincipal builds the ride query a principal is entitled to
	// watch. Shared with the subscription fan-out.
	QueryForPrincipal(principal models.Principal) interfaces.RideQuery
}

type rideService struct {
	rides        interfaces.RideRepository
	users        interfaces.UserRepository
	mapsProvider maps.Provider
	cache        CacheService
	logger       *logger.Logger
}

// NewRideService builds the engine. mapsProvider and cache may be nil; route
// preview and read caching are then skipped.
func NewRideService(
	rides interfaces.RideRepository,
	users interfaces.UserRepository,
	mapsProvider maps.Provider,
	cache CacheService,
	log *logger.Logger,
) RideService {
	return &rideService{
		rides:        rides,
		users:        users,
		mapsProvider: mapsProvider,
		cache:        cache,
		logger:       log,
	}
}

func (s *rideService) CreateRide(ctx context.Context, principal models.Principal, pickup, dropoff models.Location) (*models.Ride, error) {
	if !principal.IsCustomer() {
		return nil, fmt.Errorf("only customers create rides: %w", models.ErrUnauthorized)
	}
	if !pickup.Valid() {
		return nil, fmt.Errorf("invalid pickup coordinates")
	}
	if !dropoff.Valid() {
		return nil, fmt.Errorf("invalid dropoff coordinates")
	}

	now := time.Now()
	ride := &models.Ride{
		ID:          primitive.NewObjectID(),
		RideNumber:  generateRideNumber(),
		RequesterID: principal.UserID,
		Pickup:      pickup,
		Dropoff:     dropoff,
		Status:      models.RideStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ride.Route = s.previewRoute(ctx, pickup, dropoff)

	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, fmt.Errorf("failed to create ride: %w", err)
	}

	s.cacheRide(ctx, ride)
	s.logger.LogRideEvent(ride.ID, "ride_created", map[string]interface{}{
		"ride_number": ride.RideNumber,
		"requester":   principal.UserID.Hex(),
	})
	return ride, nil
}

// previewRoute asks the maps provider for a route between the endpoints.
// The preview is informational; creation proceeds without it.
func (s *rideService) previewRoute(ctx context.Context, pickup, dropoff models.Location) *models.Route {
	if s.mapsProvider == nil {
		return nil
	}
	response, err := s.mapsProvider.GetRoute(ctx, &maps.RouteRequest{
		Origin:      maps.Location{Latitude: pickup.Latitude(), Longitude: pickup.Longitude()},
		Destination: maps.Location{Latitude: dropoff.Latitude(), Longitude: dropoff.Longitude()},
	})
	if err != nil {
		s.logger.WithError(err).Warn("route preview unavailable")
		return nil
	}
	route := &models.Route{
		Polyline: response.Polyline,
		Distance: response.Distance,
		Duration: response.Duration,
	}
	for _, p := range response.Points {
		route.Points = append(route.Points, models.NewLocation(p.Longitude, p.Latitude))
	}
	return route
}

func (s *rideService) AssignDriver(ctx context.Context, principal models.Principal, rideID primitive.ObjectID) (*models.Ride, error) {
	if !principal.IsDriver() {
		return nil, fmt.Errorf("only drivers accept rides: %w", models.ErrUnauthorized)
	}

	// Approval is checked against the user record, not the token, so a
	// revoked driver loses the ability immediately.
	driver, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load driver: %w", err)
	}
	if !driver.CanDrive() {
		return nil, models.ErrUnapprovedDriver
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideStatusPending || ride.Assigned() {
		return nil, fmt.Errorf("ride is not open for assignment: %w", models.ErrInvalidTransition)
	}

	now := time.Now()
	err = s.rides.ConditionalUpdate(ctx, rideID,
		map[string]interface{}{
			"status":    models.RideStatusPending,
			"driver_id": nil,
		},
		map[string]interface{}{
			"status":      models.RideStatusAssigned,
			"driver_id":   principal.UserID,
			"assigned_at": now,
		},
	)
	if err != nil {
		// A lost race surfaces as a conflict; the ride went to another
		// driver between our read and write.
		return nil, err
	}

	updated, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	s.cacheRide(ctx, updated)
	s.logger.LogRideEvent(rideID, "driver_assigned", map[string]interface{}{
		"driver": principal.UserID.Hex(),
	})
	return updated, nil
}

func (s *rideService) AdvanceStatus(ctx context.Context, principal models.Principal, rideID primitive.ObjectID, target models.RideStatus) (*models.Ride, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", target, models.ErrInvalidTransition)
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"status": target}
	now := time.Now()

	switch target {
	case models.RideStatusEnRoute:
		if !ride.AssignedTo(principal.UserID) {
			return nil, fmt.Errorf("only the assigned driver advances the ride: %w", models.ErrUnauthorized)
		}
		updates["en_route_at"] = now
	case models.RideStatusPickedUp:
		if !ride.AssignedTo(principal.UserID) {
			return nil, fmt.Errorf("only the assigned driver advances the ride: %w", models.ErrUnauthorized)
		}
		updates["picked_up_at"] = now
	case models.RideStatusCancelled:
		if ride.RequesterID != principal.UserID && !principal.IsAdmin() {
			return nil, fmt.Errorf("only the requester or an admin cancels a ride: %w", models.ErrUnauthorized)
		}
		updates["cancelled_at"] = now
		if principal.IsAdmin() {
			updates["cancelled_by"] = string(models.RoleAdmin)
		} else {
			updates["cancelled_by"] = string(models.RoleCustomer)
		}
	case models.RideStatusCompleted:
		// Completion carries the fare and must go through CompleteRide.
		return nil, fmt.Errorf("completion requires a finalized fare: %w", models.ErrInvalidTransition)
	default:
		return nil, fmt.Errorf("status %q cannot be requested directly: %w", target, models.ErrInvalidTransition)
	}

	if !ride.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("cannot move from %s to %s: %w", ride.Status, target, models.ErrInvalidTransition)
	}

	expected := map[string]interface{}{"status": ride.Status}
	if err := s.rides.ConditionalUpdate(ctx, rideID, expected, updates); err != nil {
		return nil, err
	}

	updated, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	s.cacheRide(ctx, updated)
	s.logger.LogRideEvent(rideID, "status_changed", map[string]interface{}{
		"from": string(ride.Status),
		"to":   string(target),
	})
	return updated, nil
}

func (s *rideService) CompleteRide(ctx context.Context, principal models.Principal, rideID primitive.ObjectID, fare float64, paymentMethod string) (*models.Ride, error) {
	if fare < utils.MinFare || fare > utils.MaxFare {
		return nil, fmt.Errorf("fare %.2f out of range", fare)
	}
	if !utils.ValidPaymentMethod(paymentMethod) {
		return nil, fmt.Errorf("unknown payment method %q", paymentMethod)
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.AssignedTo(principal.UserID) {
		return nil, fmt.Errorf("only the assigned driver completes the ride: %w", models.ErrUnauthorized)
	}
	if !ride.Status.CanTransitionTo(models.RideStatusCompleted) {
		return nil, fmt.Errorf("cannot complete from %s: %w", ride.Status, models.ErrInvalidTransition)
	}

	// Fare and completion land in one conditional write so no observer
	// ever sees a completed ride without its fare.
	now := time.Now()
	err = s.rides.ConditionalUpdate(ctx, rideID,
		map[string]interface{}{"status": models.RideStatusPickedUp},
		map[string]interface{}{
			"status":         models.RideStatusCompleted,
			"fare":           fare,
			"payment_method": paymentMethod,
			"completed_at":   now,
		},
	)
	if err != nil {
		return nil, err
	}

	updated, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	s.cacheRide(ctx, updated)
	s.logger.LogRideEvent(rideID, "ride_completed", map[string]interface{}{
		"fare":           fare,
		"payment_method": paymentMethod,
	})
	return updated, nil
}

func (s *rideService) RateRide(ctx context.Context, principal models.Principal, rideID primitive.ObjectID, stars int) (*models.Ride, error) {
	if stars < utils.MinRatingStars || stars > utils.MaxRatingStars {
		return nil, fmt.Errorf("rating must be between %d and %d stars", utils.MinRatingStars, utils.MaxRatingStars)
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RequesterID != principal.UserID {
		return nil, fmt.Errorf("only the requester rates the ride: %w", models.ErrUnauthorized)
	}
	if ride.Status != models.RideStatusCompleted {
		return nil, fmt.Errorf("ride is not completed: %w", models.ErrInvalidTransition)
	}
	if ride.Rating != nil {
		return nil, models.ErrAlreadyRated
	}

	err = s.rides.ConditionalUpdate(ctx, rideID,
		map[string]interface{}{
			"status": models.RideStatusCompleted,
			"rating": nil,
		},
		map[string]interface{}{"rating": stars},
	)
	if err != nil {
		// The ride is terminal, so a conflict can only mean the rating
		// landed concurrently.
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrAlreadyRated
		}
		return nil, err
	}

	updated, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	s.logger.LogRideEvent(rideID, "ride_rated", map[string]interface{}{"stars": stars})
	return updated, nil
}

func (s *rideService) GetRide(ctx context.Context, principal models.Principal, rideID primitive.ObjectID) (*models.Ride, error) {
	if ride, ok := s.cachedRide(ctx, rideID); ok {
		if err := authorizeView(principal, ride); err != nil {
			return nil, err
		}
		return ride, nil
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := authorizeView(principal, ride); err != nil {
		return nil, err
	}
	s.cacheRide(ctx, ride)
	return ride, nil
}

// authorizeView decides who may read a ride: its requester, its assigned
// driver, any admin, and any driver while the ride is still an open offer.
func authorizeView(principal models.Principal, ride *models.Ride) error {
	switch {
	case principal.IsAdmin():
		return nil
	case ride.RequesterID == principal.UserID:
		return nil
	case ride.AssignedTo(principal.UserID):
		return nil
	case principal.IsDriver() && ride.Status == models.RideStatusPending && !ride.Assigned():
		return nil
	}
	return models.ErrUnauthorized
}

func (s *rideService) ListRides(ctx context.Context, principal models.Principal, status *models.RideStatus, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	query := s.QueryForPrincipal(principal)
	query.Status = status
	return s.rides.List(ctx, query, params)
}

func (s *rideService) QueryForPrincipal(principal models.Principal) interfaces.RideQuery {
	switch {
	case principal.IsAdmin():
		return interfaces.RideQuery{}
	case principal.IsDriver():
		id := principal.UserID
		return interfaces.RideQuery{Driver: &id, IncludeOffers: true}
	default:
		id := principal.UserID
		return interfaces.RideQuery{Requester: &id}
	}
}

func (s *rideService) Receipt(ctx context.Context, principal models.Principal, rideID primitive.ObjectID) (*models.Receipt, error) {
	ride, err := s.GetRide(ctx, principal, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideStatusCompleted || ride.Fare == nil {
		return nil, fmt.Errorf("receipt exists only for completed rides: %w", models.ErrNotFound)
	}
	return models.NewReceipt(ride), nil
}

func (s *rideService) DriverEarnings(ctx context.Context, principal models.Principal) (*models.EarningsSummary, error) {
	if !principal.IsDriver() {
		return nil, fmt.Errorf("earnings are a driver view: %w", models.ErrUnauthorized)
	}

	driverID := principal.UserID
	completed := models.RideStatusCompleted
	query := interfaces.RideQuery{Driver: &driverID, Status: &completed}

	params := utils.DefaultPagination()
	params.PageSize = utils.MaxPageSize

	summary := &models.EarningsSummary{Currency: models.DefaultCurrency}
	for {
		rides, total, err := s.rides.List(ctx, query, params)
		if err != nil {
			return nil, err
		}
		for _, ride := range rides {
			if ride.Fare != nil {
				summary.Total += *ride.Fare
				summary.RideCount++
			}
		}
		if int64(params.Page*params.PageSize) >= total || len(rides) == 0 {
			break
		}
		params.Page++
	}
	return summary, nil
}

func (s *rideService) cacheRide(ctx context.Context, ride *models.Ride) {
	if s.cache != nil {
		s.cache.SetRide(ctx, ride)
	}
}

func (s *rideService) cachedRide(ctx context.Context, rideID primitive.ObjectID) (*models.Ride, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.GetRide(ctx, rideID.Hex())
}

func generateRideNumber() string {
	return "R-" + strings.ToUpper(uuid.NewString()[:8])
}
