package interfaces

import (
	"context"

	"uberapp/internal/models"
	"uberapp/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideQuery selects a slice of ride state for a role view. Zero value means
// all rides.
type RideQuery struct {
	// Requester filters rides created by the given customer.
	Requester *primitive.ObjectID
	// Driver filters rides assigned to the given driver. When
	// IncludeOffers is also set, pending unassigned rides are included so
	// drivers learn of new offers.
	Driver        *primitive.ObjectID
	IncludeOffers bool
	// Status filters by current status.
	Status *models.RideStatus
}

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// RideChange is one entry of a subscription's change feed. Each event
// carries the authoritative latest state of its document; per-document
// events arrive in write order.
type RideChange struct {
	Type ChangeType   `json:"type"`
	Ride *models.Ride `json:"ride"`
}

// RideSubscription is a live change feed for one query. Close is immediate:
// no events are delivered after it returns, and Events is closed.
type RideSubscription interface {
	Events() <-chan RideChange
	Close()
}

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)

	// ConditionalUpdate applies updates only if the ride's current fields
	// match expected. Returns models.ErrConflict when the ride exists but
	// the expectation does not hold, models.ErrNotFound when it does not
	// exist. This is the only mutation path for ride state.
	ConditionalUpdate(ctx context.Context, id primitive.ObjectID, expected map[string]interface{}, updates map[string]interface{}) error

	List(ctx context.Context, query RideQuery, params *utils.PaginationParams) ([]*models.Ride, int64, error)

	// Watch opens a live subscription for the query's result set. The
	// subscription stays open until Close or ctx cancellation.
	Watch(ctx context.Context, query RideQuery) (RideSubscription, error)
}
