package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"uberapp/internal/models"
	"uberapp/internal/repositories/interfaces"
	"uberapp/internal/utils"
	"uberapp/pkg/identity"
	"uberapp/pkg/logger"
	"uberapp/pkg/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserService owns accounts: signup, profiles, driver onboarding and
// approval. Approval pushes claims back to the identity provider so fresh
// tokens carry the driver role.
type UserService interface {
	Signup(ctx context.Context, token *identity.Token, input *SignupInput) (*models.User, error)
	ResolvePrincipal(ctx context.Context, token *identity.Token) (models.Principal, *models.User, error)
	GetProfile(ctx context.Context, principal models.Principal) (*models.User, error)
	UpdateProfile(ctx context.Context, principal models.Principal, input *ProfileUpdateInput) (*models.User, error)
	UploadDriverDocument(ctx context.Context, principal models.Principal, name string, reader io.Reader, size int64, contentType string) (*models.User, error)

	ApproveDriver(ctx context.Context, principal models.Principal, driverID primitive.ObjectID, approved bool) (*models.User, error)
	ListDrivers(ctx context.Context, principal models.Principal, approved *bool, params *utils.PaginationParams) ([]*models.User, int64, error)
}

type SignupInput struct {
	DisplayName   string
	Role          models.UserRole
	DriverProfile *models.DriverProfile
}

type ProfileUpdateInput struct {
	DisplayName   *string
	DriverProfile *models.DriverProfile
}

type userService struct {
	users    interfaces.UserRepository
	identity identity.Provider
	storage  storage.Provider
	cache    CacheService
	logger   *logger.Logger
}

func NewUserService(
	users interfaces.UserRepository,
	identityProvider identity.Provider,
	storageProvider storage.Provider,
	cache CacheService,
	log *logger.Logger,
) UserService {
	return &userService{
		users:    users,
		identity: identityProvider,
		storage:  storageProvider,
		cache:    cache,
		logger:   log,
	}
}

func (s *userService) Signup(ctx context.Context, token *identity.Token, input *SignupInput) (*models.User, error) {
	if _, err := s.users.GetByProviderUID(ctx, token.Subject); err == nil {
		return nil, fmt.Errorf("account already exists: %w", models.ErrConflict)
	}

	role := input.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if !role.Valid() || role == models.RoleAdmin {
		// Admins are provisioned out of band, never via signup.
		return nil, fmt.Errorf("role %q cannot be self-assigned", input.Role)
	}

	now := time.Now()
	user := &models.User{
		ID:          primitive.NewObjectID(),
		ProviderUID: token.Subject,
		DisplayName: input.DisplayName,
		Email:       token.Email,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if role == models.RoleDriver {
		// Drivers start unapproved and cannot take rides until an admin
		// reviews them.
		user.Approved = false
		user.DriverProfile = input.DriverProfile
		if user.DriverProfile == nil {
			user.DriverProfile = &models.DriverProfile{}
		}
	} else {
		user.Approved = true
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.identity.SetRoleClaims(ctx, token.Subject, user.Role, user.Approved); err != nil {
		s.logger.WithError(err).WithUserID(user.ID).Warn("failed to push role claims")
	}

	s.logger.WithUserID(user.ID).WithField("role", string(user.Role)).Info("user signed up")
	return user, nil
}

// ResolvePrincipal turns a verified token into a principal backed by the
// user record. The record, not the token, is authoritative for role and
// approval.
func (s *userService) ResolvePrincipal(ctx context.Context, token *identity.Token) (models.Principal, *models.User, error) {
	if s.cache != nil {
		if user, ok := s.cache.GetUser(ctx, token.Subject); ok {
			return principalFor(user), user, nil
		}
	}

	user, err := s.users.GetByProviderUID(ctx, token.Subject)
	if err != nil {
		return models.Principal{}, nil, err
	}
	if s.cache != nil {
		s.cache.SetUser(ctx, user)
	}
	return principalFor(user), user, nil
}

func principalFor(user *models.User) models.Principal {
	return models.Principal{
		UserID:   user.ID,
		Role:     user.Role,
		Approved: user.Approved,
	}
}

func (s *userService) GetProfile(ctx context.Context, principal models.Principal) (*models.User, error) {
	return s.users.GetByID(ctx, principal.UserID)
}

func (s *userService) UpdateProfile(ctx context.Context, principal models.Principal, input *ProfileUpdateInput) (*models.User, error) {
	updates := map[string]interface{}{}
	if input.DisplayName != nil {
		updates["display_name"] = *input.DisplayName
	}
	if input.DriverProfile != nil {
		if principal.Role != models.RoleDriver {
			return nil, fmt.Errorf("only drivers carry a driver profile: %w", models.ErrUnauthorized)
		}
		updates["driver_profile"] = input.DriverProfile
	}
	if len(updates) == 0 {
		return s.users.GetByID(ctx, principal.UserID)
	}

	if err := s.users.Update(ctx, principal.UserID, updates); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	s.invalidateUser(ctx, user)
	return user, nil
}

func (s *userService) UploadDriverDocument(ctx context.Context, principal models.Principal, name string, reader io.Reader, size int64, contentType string) (*models.User, error) {
	if principal.Role != models.RoleDriver {
		return nil, fmt.Errorf("documents belong to driver onboarding: %w", models.ErrUnauthorized)
	}
	if s.storage == nil {
		return nil, fmt.Errorf("document storage is not configured")
	}

	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	key := path.Join("drivers", principal.UserID.Hex(), name+"-"+uuid.NewString())
	uploaded, err := s.storage.Upload(ctx, &storage.UploadRequest{
		Key:         key,
		Reader:      reader,
		Size:        size,
		ContentType: contentType,
		Metadata:    map[string]string{"driver_id": principal.UserID.Hex()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	profile := user.DriverProfile
	if profile == nil {
		profile = &models.DriverProfile{}
	}
	if profile.Documents == nil {
		profile.Documents = map[string]string{}
	}
	profile.Documents[name] = uploaded.URL

	if err := s.users.Update(ctx, principal.UserID, map[string]interface{}{"driver_profile": profile}); err != nil {
		return nil, err
	}
	updated, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}
	s.invalidateUser(ctx, updated)
	s.logger.WithUserID(principal.UserID).WithField("document", name).Info("driver document uploaded")
	return updated, nil
}

func (s *userService) ApproveDriver(ctx context.Context, principal models.Principal, driverID primitive.ObjectID, approved bool) (*models.User, error) {
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("driver approval is an admin action: %w", models.ErrUnauthorized)
	}

	driver, err := s.users.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.Role != models.RoleDriver {
		return nil, fmt.Errorf("user %s is not a driver", driverID.Hex())
	}

	if err := s.users.Update(ctx, driverID, map[string]interface{}{"approved": approved}); err != nil {
		return nil, err
	}

	if err := s.identity.SetRoleClaims(ctx, driver.ProviderUID, driver.Role, approved); err != nil {
		s.logger.WithError(err).WithUserID(driverID).Warn("failed to push approval claims")
	}

	updated, err := s.users.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	s.invalidateUser(ctx, updated)
	s.logger.WithUserID(driverID).WithField("approved", approved).Info("driver approval updated")
	return updated, nil
}

func (s *userService) ListDrivers(ctx context.Context, principal models.Principal, approved *bool, params *utils.PaginationParams) ([]*models.User, int64, error) {
	if !principal.IsAdmin() {
		return nil, 0, fmt.Errorf("driver listing is an admin view: %w", models.ErrUnauthorized)
	}
	return s.users.ListDrivers(ctx, approved, params)
}

func (s *userService) invalidateUser(ctx context.Context, user *models.User) {
	if s.cache != nil {
		s.cache.InvalidateUser(ctx, user.ProviderUID)
	}
}
