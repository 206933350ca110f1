package middleware

import (
	"errors"
	"net/http"
	"strings"

	"uberapp/internal/models"
	"uberapp/internal/services"
	"uberapp/internal/utils"
	"uberapp/pkg/identity"

	"github.com/gin-gonic/gin"
)

const (
	ContextPrincipal = "principal"
	ContextUser      = "user"
	ContextToken     = "identity_token"
)

// AuthRequired verifies the bearer token and resolves the caller to a
// principal backed by the user record. Handlers read the principal from the
// context; nothing downstream touches the raw token.
func AuthRequired(provider identity.Provider, users services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := verifyBearer(c, provider)
		if !ok {
			return
		}

		principal, user, err := users.ResolvePrincipal(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				utils.ErrorResponse(c, http.StatusForbidden, "ACCOUNT_REQUIRED", "Complete signup before using this endpoint")
			} else {
				utils.InternalServerErrorResponse(c)
			}
			c.Abort()
			return
		}

		c.Set(ContextToken, token)
		c.Set(ContextPrincipal, principal)
		c.Set(ContextUser, user)
		c.Next()
	}
}

// TokenRequired verifies the bearer token without requiring an account.
// Signup uses it: the caller has an identity but no user record yet.
func TokenRequired(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := verifyBearer(c, provider)
		if !ok {
			return
		}
		c.Set(ContextToken, token)
		c.Next()
	}
}

func verifyBearer(c *gin.Context, provider identity.Provider) (*identity.Token, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		utils.UnauthorizedResponse(c)
		c.Abort()
		return nil, false
	}

	raw := strings.TrimPrefix(authHeader, "Bearer ")
	if raw == authHeader {
		utils.UnauthorizedResponse(c)
		c.Abort()
		return nil, false
	}

	token, err := provider.VerifyToken(c.Request.Context(), raw)
	if err != nil {
		utils.UnauthorizedResponse(c)
		c.Abort()
		return nil, false
	}
	return token, true
}

// RoleRequired gates a route group to the given roles. Must run after
// AuthRequired.
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			utils.UnauthorizedResponse(c)
			c.Abort()
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}
		utils.ForbiddenResponse(c)
		c.Abort()
	}
}

func AdminRequired() gin.HandlerFunc {
	return RoleRequired(models.RoleAdmin)
}

func DriverRequired() gin.HandlerFunc {
	return RoleRequired(models.RoleDriver)
}

func CustomerRequired() gin.HandlerFunc {
	return RoleRequired(models.RoleCustomer)
}

// GetPrincipal reads the authenticated principal from the request context.
func GetPrincipal(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get(ContextPrincipal)
	if !exists {
		return models.Principal{}, false
	}
	principal, ok := value.(models.Principal)
	return principal, ok
}

// GetToken reads the verified identity token from the request context.
func GetToken(c *gin.Context) (*identity.Token, bool) {
	value, exists := c.Get(ContextToken)
	if !exists {
		return nil, false
	}
	token, ok := value.(*identity.Token)
	return token, ok
}
