package interfaces

import (
	"context"

	"uberapp/internal/models"
	"uberapp/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByProviderUID(ctx context.Context, uid string) (*models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error
	ListDrivers(ctx context.Context, approved *bool, params *utils.PaginationParams) ([]*models.User, int64, error)
}
