package memory

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"uberapp/internal/models"
	"uberapp/internal/repositories/interfaces"
	"uberapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func seedRide(t *testing.T, rides interfaces.RideRepository, requester primitive.ObjectID) *models.Ride {
	t.Helper()

	ride := &models.Ride{
		RideNumber:  "R-TEST",
		RequesterID: requester,
		Pickup:      models.NewLocation(36.8, -1.3),
		Dropoff:     models.NewLocation(36.9, -1.4),
		Status:      models.RideStatusPending,
	}
	require.NoError(t, rides.Create(context.Background(), ride))
	return ride
}

func TestConditionalUpdateMatches(t *testing.T) {
	store := NewStore()
	rides := store.Rides()
	ctx := context.Background()

	ride := seedRide(t, rides, primitive.NewObjectID())
	driverID := primitive.NewObjectID()

	err := rides.ConditionalUpdate(ctx, ride.ID,
		map[string]interface{}{"status": models.RideStatusPending, "driver_id": nil},
		map[string]interface{}{"status": models.RideStatusAssigned, "driver_id": driverID},
	)
	require.NoError(t, err)

	stored, err := rides.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusAssigned, stored.Status)
	require.NotNil(t, stored.DriverID)
	assert.Equal(t, driverID, *stored.DriverID)
}

func TestConditionalUpdateConflict(t *testing.T) {
	store := NewStore()
	rides := store.Rides()
	ctx := context.Background()

	ride := seedRide(t, rides, primitive.NewObjectID())

	err := rides.ConditionalUpdate(ctx, ride.ID,
		map[string]interface{}{"status": models.RideStatusAssigned},
		map[string]interface{}{"status": models.RideStatusEnRoute},
	)
	assert.ErrorIs(t, err, models.ErrConflict)

	// The failed write changes nothing.
	stored, err := rides.GetByID(ctx, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusPending, stored.Status)
}

func TestConditionalUpdateNotFound(t *testing.T) {
	store := NewStore()

	err := store.Rides().ConditionalUpdate(context.Background(), primitive.NewObjectID(),
		map[string]interface{}{"status": models.RideStatusPending},
		map[string]interface{}{"status": models.RideStatusCancelled},
	)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConditionalUpdateSingleWinner(t *testing.T) {
	store := NewStore()
	rides := store.Rides()
	ctx := context.Background()

	ride := seedRide(t, rides, primitive.NewObjectID())

	const contenders = 8
	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = rides.ConditionalUpdate(ctx, ride.ID,
				map[string]interface{}{"status": models.RideStatusPending, "driver_id": nil},
				map[string]interface{}{"status": models.RideStatusAssigned, "driver_id": primitive.NewObjectID()},
			)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, models.ErrConflict)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestWatchDeliversInWriteOrder(t *testing.T) {
	store := NewStore()
	rides := store.Rides()
	ctx := context.Background()

	sub, err := rides.Watch(ctx, interfaces.RideQuery{})
	require.NoError(t, err)
	defer sub.Close()

	ride := seedRide(t, rides, primitive.NewObjectID())
	driverID := primitive.NewObjectID()

	steps := []struct {
		expected models.RideStatus
		target   models.RideStatus
	}{
		{models.RideStatusPending, models.RideStatusAssigned},
		{models.RideStatusAssigned, models.RideStatusEnRoute},
		{models.RideStatusEnRoute, models.RideStatusPickedUp},
	}
	for _, step := range steps {
		updates := map[string]interface{}{"status": step.target}
		if step.target == models.RideStatusAssigned {
			updates["driver_id"] = driverID
		}
		require.NoError(t, rides.ConditionalUpdate(ctx, ride.ID,
			map[string]interface{}{"status": step.expected}, updates))
	}

	want := []struct {
		changeType interfaces.ChangeType
		status     models.RideStatus
	}{
		{interfaces.ChangeAdded, models.RideStatusPending},
		{interfaces.ChangeModified, models.RideStatusAssigned},
		{interfaces.ChangeModified, models.RideStatusEnRoute},
		{interfaces.ChangeModified, models.RideStatusPickedUp},
	}
	for i, expected := range want {
		select {
		case change := <-sub.Events():
			assert.Equal(t, expected.changeType, change.Type, "event %d", i)
			assert.Equal(t, expected.status, change.Ride.Status, "event %d", i)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestWatchFiltersByQuery(t *testing.T) {
	store := NewStore()
	rides := store.Rides()
	ctx := context.Background()

	requester := primitive.NewObjectID()
	driverID := primitive.NewObjectID()

	requesterSub, err := rides.Watch(ctx, interfaces.RideQuery{Requester: &requester})
	require.NoError(t, err)
	defer requesterSub.Close()

	driverSub, err := rides.Watch(ctx, interfaces.RideQuery{Driver: &driverID, IncludeOffers: true})
	require.NoError(t, err)
	defer driverSub.Close()

	mine := seedRide(t, rides, requester)
	seedRide(t, rides, primitive.NewObjectID())

	// The requester feed carries only their own ride.
	select {
	case change := <-requesterSub.Events():
		assert.Equal(t, mine.ID, change.Ride.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for requester event")
	}
	select {
	case change := <-requesterSub.Events():
		t.Fatalf("unexpected extra event for ride %s", change.Ride.ID.Hex())
	case <-time.After(50 * time.Millisecond):
	}

	// The driver feed sees both creations as open offers.
	for i := 0; i < 2; i++ {
		select {
		case change := <-driverSub.Events():
			assert.Equal(t, models.RideStatusPending, change.Ride.Status)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for offer event %d", i)
		}
	}

	// Once the ride is assigned elsewhere it leaves the driver's view.
	otherDriver := primitive.NewObjectID()
	require.NoError(t, rides.ConditionalUpdate(ctx, mine.ID,
		map[string]interface{}{"status": models.RideStatusPending, "driver_id": nil},
		map[string]interface{}{"status": models.RideStatusAssigned, "driver_id": otherDriver},
	))
	select {
	case change := <-driverSub.Events():
		t.Fatalf("unexpected event after assignment: %v", change.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchCloseStopsDelivery(t *testing.T) {
	store := NewStore()
	rides := store.Rides()
	ctx := context.Background()

	sub, err := rides.Watch(ctx, interfaces.RideQuery{})
	require.NoError(t, err)
	sub.Close()
	sub.Close() // idempotent

	seedRide(t, rides, primitive.NewObjectID())

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestWatchClosedByContext(t *testing.T) {
	store := NewStore()
	rides := store.Rides()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := rides.Watch(ctx, interfaces.RideQuery{})
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-drain(sub.Events()):
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancellation")
	}
}

// drain forwards the channel so the select above can watch for close while
// tolerating buffered events.
func drain(events <-chan interfaces.RideChange) <-chan interfaces.RideChange {
	out := make(chan interfaces.RideChange)
	go func() {
		defer close(out)
		for range events {
		}
	}()
	return out
}

func TestWatchCloseReleasesContextWatcher(t *testing.T) {
	store := NewStore()
	rides := store.Rides()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		sub, err := rides.Watch(ctx, interfaces.RideQuery{})
		require.NoError(t, err)
		sub.Close()
	}

	// A manual Close must also stop the context watcher even though the
	// caller's context stays live.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("context watchers leaked: %d goroutines, baseline %d", runtime.NumGoroutine(), before)
}

func TestListNewestFirst(t *testing.T) {
	store := NewStore()
	rides := store.Rides()
	ctx := context.Background()

	requester := primitive.NewObjectID()
	for i := 0; i < 3; i++ {
		seedRide(t, rides, requester)
		time.Sleep(time.Millisecond)
	}

	page, _, err := rides.List(ctx, interfaces.RideQuery{Requester: &requester}, utils.DefaultPagination())
	require.NoError(t, err)
	require.Len(t, page, 3)
	for i := 1; i < len(page); i++ {
		assert.True(t, page[i-1].CreatedAt.After(page[i].CreatedAt), "rides must be ordered newest first")
	}
}

func TestListPagination(t *testing.T) {
	store := NewStore()
	rides := store.Rides()
	ctx := context.Background()

	requester := primitive.NewObjectID()
	for i := 0; i < 5; i++ {
		seedRide(t, rides, requester)
	}

	params := utils.DefaultPagination()
	params.PageSize = 2

	page, total, err := rides.List(ctx, interfaces.RideQuery{Requester: &requester}, params)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, page, 2)

	params.Page = 3
	page, _, err = rides.List(ctx, interfaces.RideQuery{Requester: &requester}, params)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
