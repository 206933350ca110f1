package services

import (
	"context"
	"time"

	"uberapp/internal/models"
	"uberapp/pkg/cache"
)

const (
	rideCachePrefix = "ride:"
	rideCacheTTL    = 15 * time.Minute
	userCachePrefix = "user:"
	userCacheTTL    = 5 * time.Minute
)

// CacheService is a thin read-through cache for hot records. Lifecycle
// decisions never read from it; only display reads do.
type CacheService interface {
	GetRide(ctx context.Context, id string) (*models.Ride, bool)
	SetRide(ctx context.Context, ride *models.Ride)
	InvalidateRide(ctx context.Context, id string)
	GetUser(ctx context.Context, providerUID string) (*models.User, bool)
	SetUser(ctx context.Context, user *models.User)
	InvalidateUser(ctx context.Context, providerUID string)
}

type cacheService struct {
	redis *cache.RedisCache
}

func NewCacheService(redis *cache.RedisCache) CacheService {
	return &cacheService{redis: redis}
}

func (c *cacheService) GetRide(ctx context.Context, id string) (*models.Ride, bool) {
	var ride models.Ride
	if err := c.redis.Get(ctx, rideCachePrefix+id, &ride); err != nil {
		return nil, false
	}
	return &ride, true
}

func (c *cacheService) SetRide(ctx context.Context, ride *models.Ride) {
	// Terminal rides are immutable except rating; caching them is safe,
	// but only active rides are hot enough to bother.
	if ride.Status.Terminal() {
		c.InvalidateRide(ctx, ride.ID.Hex())
		return
	}
	_ = c.redis.Set(ctx, rideCachePrefix+ride.ID.Hex(), ride, rideCacheTTL)
}

func (c *cacheService) InvalidateRide(ctx context.Context, id string) {
	_ = c.redis.Delete(ctx, rideCachePrefix+id)
}

func (c *cacheService) GetUser(ctx context.Context, providerUID string) (*models.User, bool) {
	var user models.User
	if err := c.redis.Get(ctx, userCachePrefix+providerUID, &user); err != nil {
		return nil, false
	}
	return &user, true
}

func (c *cacheService) SetUser(ctx context.Context, user *models.User) {
	_ = c.redis.Set(ctx, userCachePrefix+user.ProviderUID, user, userCacheTTL)
}

func (c *cacheService) InvalidateUser(ctx context.Context, providerUID string) {
	_ = c.redis.Delete(ctx, userCachePrefix+providerUID)
}
