package memory

import (
	"context"
	"time"

	"uberapp/internal/models"
	"uberapp/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userStore Store

func (u *userStore) Create(ctx context.Context, user *models.User) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = primitive.NewObjectID()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	clone := *user
	s.users[user.ID] = &clone

	return nil
}

func (u *userStore) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (u *userStore) GetByProviderUID(ctx context.Context, uid string) (*models.User, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.ProviderUID == uid {
			clone := *user
			return &clone, nil
		}
	}
	return nil, models.ErrNotFound
}

func (u *userStore) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}

	for field, value := range updates {
		switch field {
		case "display_name":
			user.DisplayName = value.(string)
		case "approved":
			user.Approved = value.(bool)
		case "profile_photo":
			user.ProfilePhoto = value.(string)
		case "driver_profile":
			user.DriverProfile = value.(*models.DriverProfile)
		}
	}
	user.UpdatedAt = time.Now()

	return nil
}

func (u *userStore) ListDrivers(ctx context.Context, approved *bool, params *utils.PaginationParams) ([]*models.User, int64, error) {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	var drivers []*models.User
	for _, user := range s.users {
		if user.Role != models.RoleDriver {
			continue
		}
		if approved != nil && user.Approved != *approved {
			continue
		}
		clone := *user
		drivers = append(drivers, &clone)
	}

	return drivers, int64(len(drivers)), nil
}
