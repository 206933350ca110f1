package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"uberapp/internal/models"
	"uberapp/internal/repositories/interfaces"
	"uberapp/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type rideRepository struct {
	collection *mongo.Collection
}

func NewRideRepository(db *mongo.Database) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection("rides"),
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	ride.ID = primitive.NewObjectID()
	now := time.Now()
	ride.CreatedAt = now
	ride.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, ride)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	var ride models.Ride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ride)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}

	return &ride, nil
}

// ConditionalUpdate is the compare-and-set the lifecycle engine relies on:
// the filter carries the expected current field values, so a concurrent
// writer that already moved the ride on makes this write match nothing.
func (r *rideRepository) ConditionalUpdate(ctx context.Context, id primitive.ObjectID, expected map[string]interface{}, updates map[string]interface{}) error {
	filter := bson.M{"_id": id}
	for field, value := range expected {
		filter[field] = value
	}

	set := bson.M{"updated_at": time.Now()}
	for field, value := range updates {
		set[field] = value
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update ride: %w", err)
	}

	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("failed to check ride existence: %w", err)
		}
		if count == 0 {
			return models.ErrNotFound
		}
		return models.ErrConflict
	}

	return nil
}

func (r *rideRepository) List(ctx context.Context, query interfaces.RideQuery, params *utils.PaginationParams) ([]*models.Ride, int64, error) {
	filter := queryFilter(query, "")

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	if err := cursor.All(ctx, &rides); err != nil {
		return nil, 0, fmt.Errorf("failed to decode rides: %w", err)
	}

	return rides, total, nil
}

// Watch opens a change stream scoped to the query. Update events carry the
// post-image via UpdateLookup so every event is the latest document state.
func (r *rideRepository) Watch(ctx context.Context, query interfaces.RideQuery) (interfaces.RideSubscription, error) {
	match := bson.M{
		"$or": bson.A{
			bson.M{
				"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}},
				"fullDocument":  bson.M{"$exists": true},
			},
			bson.M{"operationType": "delete"},
		},
	}
	if docFilter := queryFilter(query, "fullDocument."); len(docFilter) > 0 {
		match = bson.M{
			"$or": bson.A{
				mergeFilters(bson.M{
					"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}},
				}, docFilter),
				bson.M{"operationType": "delete"},
			},
		}
	}

	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := r.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	sub := &changeStreamSubscription{
		events: make(chan interfaces.RideChange, 16),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go sub.pump(pumpCtx, stream)

	return sub, nil
}

type changeStreamSubscription struct {
	events chan interfaces.RideChange
	done   chan struct{}
	cancel context.CancelFunc
	closed sync.Once
}

func (s *changeStreamSubscription) Events() <-chan interfaces.RideChange {
	return s.events
}

func (s *changeStreamSubscription) Close() {
	s.closed.Do(func() {
		close(s.done)
		s.cancel()
	})
}

type changeEvent struct {
	OperationType string      `bson:"operationType"`
	FullDocument  models.Ride `bson:"fullDocument"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
}

func (s *changeStreamSubscription) pump(ctx context.Context, stream *mongo.ChangeStream) {
	defer close(s.events)
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var event changeEvent
		if err := stream.Decode(&event); err != nil {
			continue
		}

		change := interfaces.RideChange{}
		switch event.OperationType {
		case "insert":
			change.Type = interfaces.ChangeAdded
			ride := event.FullDocument
			change.Ride = &ride
		case "update", "replace":
			change.Type = interfaces.ChangeModified
			ride := event.FullDocument
			change.Ride = &ride
		case "delete":
			change.Type = interfaces.ChangeRemoved
			change.Ride = &models.Ride{ID: event.DocumentKey.ID}
		default:
			continue
		}

		select {
		case s.events <- change:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// queryFilter translates a RideQuery to a Mongo filter. The prefix is empty
// for collection queries and "fullDocument." for change stream pipelines.
func queryFilter(q interfaces.RideQuery, prefix string) bson.M {
	filter := bson.M{}

	if q.Requester != nil {
		filter[prefix+"requester_id"] = *q.Requester
	}

	if q.Driver != nil {
		if q.IncludeOffers {
			filter["$or"] = bson.A{
				bson.M{prefix + "driver_id": *q.Driver},
				bson.M{
					prefix + "status":    models.RideStatusPending,
					prefix + "driver_id": nil,
				},
			}
		} else {
			filter[prefix+"driver_id"] = *q.Driver
		}
	}

	if q.Status != nil {
		filter[prefix+"status"] = *q.Status
	}

	return filter
}

func mergeFilters(a, b bson.M) bson.M {
	merged := bson.M{}
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}
