package services

import (
	"context"
	"sync"
	"time"

	"uberapp/internal/models"
	"uberapp/internal/repositories/interfaces"
	"uberapp/pkg/logger"
	"uberapp/pkg/retry"
	"uberapp/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RideNotifier is the hub surface the fan-out writes to.
type RideNotifier interface {
	SendToRoom(roomID string, message websocket.Message)
	SendToUser(userID primitive.ObjectID, message websocket.Message)
}

// SubscriptionService bridges the ride change feed onto connected clients.
// One repository subscription covers all rides; each change is fanned out
// to the rooms whose role view includes that ride:
//
//	customers   get rides they requested
//	drivers     get rides assigned to them, plus open offers
//	admins      get everything
//
// Per-ride events preserve write order because the feed itself does.
type SubscriptionService interface {
	Start(ctx context.Context) error
	Stop()
}

type subscriptionService struct {
	rides  interfaces.RideRepository
	hub    RideNotifier
	logger *logger.Logger

	mutex  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSubscriptionService(rides interfaces.RideRepository, hub RideNotifier, log *logger.Logger) SubscriptionService {
	return &subscriptionService{
		rides:  rides,
		hub:    hub,
		logger: log,
	}
}

func (s *subscriptionService) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	subscription, err := s.rides.Watch(runCtx, interfaces.RideQuery{})
	if err != nil {
		cancel()
		return err
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, subscription, s.done)
	s.logger.Info("ride subscription fan-out started")
	return nil
}

func (s *subscriptionService) Stop() {
	s.mutex.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mutex.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *subscriptionService) run(ctx context.Context, subscription interfaces.RideSubscription, done chan struct{}) {
	defer close(done)
	defer func() { subscription.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-subscription.Events():
			if !ok {
				// The feed died underneath us; reopen it so clients
				// keep receiving updates.
				replacement, err := s.reopen(ctx)
				if err != nil {
					return
				}
				subscription.Close()
				subscription = replacement
				continue
			}
			s.dispatch(change)
		}
	}
}

func (s *subscriptionService) reopen(ctx context.Context) (interfaces.RideSubscription, error) {
	var subscription interfaces.RideSubscription
	config := retry.DefaultConfig()
	config.MaxRetries = 10
	config.MaxDelay = 10 * time.Second
	config.Retryable = func(error) bool { return true }

	err := retry.Do(ctx, config, func(ctx context.Context) error {
		var err error
		subscription, err = s.rides.Watch(ctx, interfaces.RideQuery{})
		return err
	})
	if err != nil {
		s.logger.WithError(err).Error("ride subscription could not be reopened")
		return nil, err
	}
	s.logger.Warn("ride subscription reopened")
	return subscription, nil
}

func (s *subscriptionService) dispatch(change interfaces.RideChange) {
	ride := change.Ride
	if ride == nil {
		return
	}

	message := websocket.Message{
		Type:      "ride." + string(change.Type),
		Timestamp: time.Now().Unix(),
		Data:      change,
	}

	s.hub.SendToRoom(websocket.RoomAdmins, message)
	s.hub.SendToUser(ride.RequesterID, message)
	if ride.DriverID != nil {
		s.hub.SendToUser(*ride.DriverID, message)
	}
	if offerVisible(ride) || offerWithdrawn(ride) {
		// Drivers see open offers appear, and see them leave the pool when
		// a ride is claimed or cancelled before assignment.
		s.hub.SendToRoom(websocket.RoomDrivers, message)
	}
}

func offerVisible(ride *models.Ride) bool {
	return ride.Status == models.RideStatusPending && !ride.Assigned()
}

// offerWithdrawn reports whether the change took the ride out of the open
// offer pool: a pending ride only ever leaves it by being assigned or by
// being cancelled while still unassigned.
func offerWithdrawn(ride *models.Ride) bool {
	if ride.Status == models.RideStatusAssigned {
		return true
	}
	return ride.Status == models.RideStatusCancelled && !ride.Assigned()
}
