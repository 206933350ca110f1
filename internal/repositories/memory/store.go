// Package memory provides an in-process store with the same conditional
// write and change feed semantics as the MongoDB repositories. It backs the
// lifecycle engine tests so they can exercise races and subscriptions
// without a Mongo deployment.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"uberapp/internal/models"
	"uberapp/internal/repositories/interfaces"
	"uberapp/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu          sync.Mutex
	rides       map[primitive.ObjectID]*models.Ride
	users       map[primitive.ObjectID]*models.User
	subscribers map[*subscription]struct{}
}

func NewStore() *Store {
	return &Store{
		rides:       make(map[primitive.ObjectID]*models.Ride),
		users:       make(map[primitive.ObjectID]*models.User),
		subscribers: make(map[*subscription]struct{}),
	}
}

// Rides returns the store's ride repository view.
func (s *Store) Rides() interfaces.RideRepository { return (*rideStore)(s) }

// Users returns the store's user repository view.
func (s *Store) Users() interfaces.UserRepository { return (*userStore)(s) }

type rideStore Store

func (r *rideStore) Create(ctx context.Context, ride *models.Ride) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	ride.ID = primitive.NewObjectID()
	now := time.Now()
	ride.CreatedAt = now
	ride.UpdatedAt = now

	s.rides[ride.ID] = cloneRide(ride)
	s.publishLocked(interfaces.ChangeAdded, s.rides[ride.ID])

	return nil
}

func (r *rideStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneRide(ride), nil
}

func (r *rideStore) ConditionalUpdate(ctx context.Context, id primitive.ObjectID, expected map[string]interface{}, updates map[string]interface{}) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	ride, ok := s.rides[id]
	if !ok {
		return models.ErrNotFound
	}

	for field, want := range expected {
		if !fieldEquals(ride, field, want) {
			return models.ErrConflict
		}
	}

	for field, value := range updates {
		applyField(ride, field, value)
	}
	ride.UpdatedAt = time.Now()

	s.publishLocked(interfaces.ChangeModified, ride)

	return nil
}

func (r *rideStore) List(ctx context.Context, query interfaces.RideQuery, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*models.Ride
	for _, ride := range s.rides {
		if queryMatches(query, ride) {
			matched = append(matched, cloneRide(ride))
		}
	}

	sortByCreatedDesc(matched)

	total := int64(len(matched))
	skip := params.GetSkip()
	if skip >= len(matched) {
		return nil, total, nil
	}
	end := skip + params.GetLimit()
	if end > len(matched) {
		end = len(matched)
	}

	return matched[skip:end], total, nil
}

func (r *rideStore) Watch(ctx context.Context, query interfaces.RideQuery) (interfaces.RideSubscription, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscription{
		store:  s,
		query:  query,
		events: make(chan interfaces.RideChange, 64),
		done:   make(chan struct{}),
	}
	s.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}

	return sub, nil
}

// publishLocked fans the change out to matching subscribers. Callers hold
// the store lock, which is what gives per-document write ordering.
func (s *Store) publishLocked(changeType interfaces.ChangeType, ride *models.Ride) {
	for sub := range s.subscribers {
		if !queryMatches(sub.query, ride) {
			continue
		}
		select {
		case sub.events <- interfaces.RideChange{Type: changeType, Ride: cloneRide(ride)}:
		default:
			// Slow subscriber; it will resync from the next read.
		}
	}
}

type subscription struct {
	store  *Store
	query  interfaces.RideQuery
	events chan interfaces.RideChange
	done   chan struct{}
	closed sync.Once
}

func (s *subscription) Events() <-chan interfaces.RideChange { return s.events }

func (s *subscription) Close() {
	s.closed.Do(func() {
		s.store.mu.Lock()
		delete(s.store.subscribers, s)
		s.store.mu.Unlock()
		close(s.done)
		close(s.events)
	})
}

func queryMatches(q interfaces.RideQuery, ride *models.Ride) bool {
	if q.Requester != nil && ride.RequesterID != *q.Requester {
		return false
	}
	if q.Driver != nil {
		assigned := ride.AssignedTo(*q.Driver)
		offer := q.IncludeOffers && ride.Status == models.RideStatusPending && ride.DriverID == nil
		if !assigned && !offer {
			return false
		}
	}
	if q.Status != nil && ride.Status != *q.Status {
		return false
	}
	return true
}

func fieldEquals(ride *models.Ride, field string, want interface{}) bool {
	switch field {
	case "status":
		status, ok := want.(models.RideStatus)
		return ok && ride.Status == status
	case "driver_id":
		if want == nil {
			return ride.DriverID == nil
		}
		id, ok := want.(primitive.ObjectID)
		return ok && ride.DriverID != nil && *ride.DriverID == id
	case "rating":
		if want == nil {
			return ride.Rating == nil
		}
		stars, ok := want.(int)
		return ok && ride.Rating != nil && *ride.Rating == stars
	case "fare":
		if want == nil {
			return ride.Fare == nil
		}
		amount, ok := want.(float64)
		return ok && ride.Fare != nil && *ride.Fare == amount
	}
	return false
}

func applyField(ride *models.Ride, field string, value interface{}) {
	switch field {
	case "status":
		ride.Status = value.(models.RideStatus)
	case "driver_id":
		id := value.(primitive.ObjectID)
		ride.DriverID = &id
	case "fare":
		amount := value.(float64)
		ride.Fare = &amount
	case "payment_method":
		method := value.(string)
		ride.PaymentMethod = &method
	case "rating":
		stars := value.(int)
		ride.Rating = &stars
	case "cancelled_by":
		ride.CancelledBy = value.(string)
	case "route":
		ride.Route = value.(*models.Route)
	case "assigned_at":
		t := value.(time.Time)
		ride.AssignedAt = &t
	case "en_route_at":
		t := value.(time.Time)
		ride.EnRouteAt = &t
	case "picked_up_at":
		t := value.(time.Time)
		ride.PickedUpAt = &t
	case "completed_at":
		t := value.(time.Time)
		ride.CompletedAt = &t
	case "cancelled_at":
		t := value.(time.Time)
		ride.CancelledAt = &t
	}
}

func cloneRide(ride *models.Ride) *models.Ride {
	clone := *ride
	if ride.DriverID != nil {
		id := *ride.DriverID
		clone.DriverID = &id
	}
	if ride.Fare != nil {
		amount := *ride.Fare
		clone.Fare = &amount
	}
	if ride.PaymentMethod != nil {
		method := *ride.PaymentMethod
		clone.PaymentMethod = &method
	}
	if ride.Rating != nil {
		stars := *ride.Rating
		clone.Rating = &stars
	}
	return &clone
}

func sortByCreatedDesc(rides []*models.Ride) {
	sort.Slice(rides, func(i, j int) bool {
		return rides[i].CreatedAt.After(rides[j].CreatedAt)
	})
}
