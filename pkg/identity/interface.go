package identity

import (
	"context"

	"uberapp/internal/models"
)

// Token is a verified identity assertion: a stable subject plus the role
// claims the provider attached to it.
type Token struct {
	Subject  string
	Email    string
	Role     models.UserRole
	Approved bool
}

// Provider verifies bearer credentials and manages role claims. The rest of
// the system treats identity as "given credentials, return a principal".
type Provider interface {
	VerifyToken(ctx context.Context, rawToken string) (*Token, error)

	// SetRoleClaims pushes role/approved onto the subject's identity so
	// fresh tokens carry them. Providers without custom claims may no-op.
	SetRoleClaims(ctx context.Context, subject string, role models.UserRole, approved bool) error
}
