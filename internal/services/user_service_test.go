package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"uberapp/internal/models"
	"uberapp/internal/repositories/memory"
	"uberapp/internal/utils"
	"uberapp/pkg/identity"
	"uberapp/pkg/logger"
	"uberapp/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// claimRecorder is an identity provider that records SetRoleClaims calls.
type claimRecorder struct {
	mu     sync.Mutex
	claims map[string]bool // subject -> approved
}

func newClaimRecorder() *claimRecorder {
	return &claimRecorder{claims: make(map[string]bool)}
}

func (c *claimRecorder) VerifyToken(ctx context.Context, rawToken string) (*identity.Token, error) {
	return &identity.Token{Subject: rawToken}, nil
}

func (c *claimRecorder) SetRoleClaims(ctx context.Context, subject string, role models.UserRole, approved bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claims[subject] = approved
	return nil
}

func (c *claimRecorder) approvedClaim(subject string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	approved, ok := c.claims[subject]
	return approved, ok
}

type userFixture struct {
	store    *memory.Store
	identity *claimRecorder
	service  UserService
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()

	log, err := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel})
	require.NoError(t, err)

	blobs, err := storage.NewLocalStorage(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)

	recorder := newClaimRecorder()
	store := memory.NewStore()
	return &userFixture{
		store:    store,
		identity: recorder,
		service:  NewUserService(store.Users(), recorder, blobs, nil, log),
	}
}

func TestSignupCustomer(t *testing.T) {
	f := newUserFixture(t)
	token := &identity.Token{Subject: "uid-customer", Email: "jane@example.com"}

	user, err := f.service.Signup(context.Background(), token, &SignupInput{DisplayName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.True(t, user.Approved)
	assert.Equal(t, "jane@example.com", user.Email)

	_, err = f.service.Signup(context.Background(), token, &SignupInput{DisplayName: "Jane"})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestSignupDriverStartsUnapproved(t *testing.T) {
	f := newUserFixture(t)
	token := &identity.Token{Subject: "uid-driver", Email: "john@example.com"}

	user, err := f.service.Signup(context.Background(), token, &SignupInput{
		DisplayName:   "John",
		Role:          models.RoleDriver,
		DriverProfile: &models.DriverProfile{PlateNumber: "KDA 123X", VehicleType: "sedan", SeatCount: 4},
	})
	require.NoError(t, err)
	assert.False(t, user.Approved)
	assert.False(t, user.CanDrive())

	approved, ok := f.identity.approvedClaim("uid-driver")
	assert.True(t, ok)
	assert.False(t, approved)
}

func TestSignupRejectsAdminRole(t *testing.T) {
	f := newUserFixture(t)
	token := &identity.Token{Subject: "uid-sneaky"}

	_, err := f.service.Signup(context.Background(), token, &SignupInput{
		DisplayName: "Sneaky",
		Role:        models.RoleAdmin,
	})
	assert.Error(t, err)
}

func TestApproveDriver(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	driver, err := f.service.Signup(ctx, &identity.Token{Subject: "uid-driver"}, &SignupInput{
		DisplayName: "John",
		Role:        models.RoleDriver,
	})
	require.NoError(t, err)

	admin := &models.User{ProviderUID: "uid-admin", DisplayName: "Admin", Role: models.RoleAdmin, Approved: true}
	require.NoError(t, f.store.Users().Create(ctx, admin))
	adminPrincipal := models.Principal{UserID: admin.ID, Role: models.RoleAdmin}

	updated, err := f.service.ApproveDriver(ctx, adminPrincipal, driver.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Approved)
	assert.True(t, updated.CanDrive())

	approved, ok := f.identity.approvedClaim("uid-driver")
	assert.True(t, ok)
	assert.True(t, approved)

	// Approval is admin-only.
	driverPrincipal := models.Principal{UserID: driver.ID, Role: models.RoleDriver}
	_, err = f.service.ApproveDriver(ctx, driverPrincipal, driver.ID, true)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// Revocation goes through the same path.
	updated, err = f.service.ApproveDriver(ctx, adminPrincipal, driver.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Approved)
}

func TestApproveDriverRejectsNonDriver(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	customer, err := f.service.Signup(ctx, &identity.Token{Subject: "uid-c"}, &SignupInput{DisplayName: "Jane"})
	require.NoError(t, err)

	admin := &models.User{ProviderUID: "uid-admin", DisplayName: "Admin", Role: models.RoleAdmin, Approved: true}
	require.NoError(t, f.store.Users().Create(ctx, admin))

	_, err = f.service.ApproveDriver(ctx, models.Principal{UserID: admin.ID, Role: models.RoleAdmin}, customer.ID, true)
	assert.Error(t, err)
}

func TestUploadDriverDocument(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	driver, err := f.service.Signup(ctx, &identity.Token{Subject: "uid-driver"}, &SignupInput{
		DisplayName: "John",
		Role:        models.RoleDriver,
	})
	require.NoError(t, err)
	principal := models.Principal{UserID: driver.ID, Role: models.RoleDriver}

	content := strings.NewReader("licence scan bytes")
	updated, err := f.service.UploadDriverDocument(ctx, principal, "licence", content, int64(content.Len()), "image/png")
	require.NoError(t, err)
	require.NotNil(t, updated.DriverProfile)
	assert.Contains(t, updated.DriverProfile.Documents, "licence")
	assert.Contains(t, updated.DriverProfile.Documents["licence"], "drivers/"+driver.ID.Hex())

	// Customers have no document slot.
	customer, err := f.service.Signup(ctx, &identity.Token{Subject: "uid-c"}, &SignupInput{DisplayName: "Jane"})
	require.NoError(t, err)
	_, err = f.service.UploadDriverDocument(ctx,
		models.Principal{UserID: customer.ID, Role: models.RoleCustomer},
		"licence", strings.NewReader("x"), 1, "image/png")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestResolvePrincipal(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	user, err := f.service.Signup(ctx, &identity.Token{Subject: "uid-x", Email: "x@example.com"}, &SignupInput{DisplayName: "X"})
	require.NoError(t, err)

	principal, resolved, err := f.service.ResolvePrincipal(ctx, &identity.Token{Subject: "uid-x"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, models.RoleCustomer, principal.Role)
	assert.Equal(t, user.ID, resolved.ID)

	_, _, err = f.service.ResolvePrincipal(ctx, &identity.Token{Subject: "uid-unknown"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListDriversAdminOnly(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	for _, subject := range []string{"d1", "d2"} {
		_, err := f.service.Signup(ctx, &identity.Token{Subject: subject}, &SignupInput{
			DisplayName: "Driver " + subject,
			Role:        models.RoleDriver,
		})
		require.NoError(t, err)
	}

	admin := &models.User{ProviderUID: "uid-admin", DisplayName: "Admin", Role: models.RoleAdmin, Approved: true}
	require.NoError(t, f.store.Users().Create(ctx, admin))

	pending := false
	drivers, total, err := f.service.ListDrivers(ctx,
		models.Principal{UserID: admin.ID, Role: models.RoleAdmin},
		&pending, utils.DefaultPagination())
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, drivers, 2)

	_, _, err = f.service.ListDrivers(ctx,
		models.Principal{UserID: drivers[0].ID, Role: models.RoleDriver},
		nil, utils.DefaultPagination())
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
