package identity

import (
	"context"
	"fmt"
	"time"

	"uberapp/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is the local token payload used when running without Firebase.
type JWTClaims struct {
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	Approved bool   `json:"approved"`
	jwt.RegisteredClaims
}

// JWTProvider signs and verifies HMAC tokens locally. Meant for development
// and tests; role claims live only inside the token, so SetRoleClaims is a
// no-op and callers must mint a fresh token after approval.
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTProvider(secret string, ttl time.Duration) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), ttl: ttl}
}

func (p *JWTProvider) VerifyToken(ctx context.Context, rawToken string) (*Token, error) {
	token, err := jwt.ParseWithClaims(rawToken, &JWTClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	role := models.UserRole(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role claim: %q", claims.Role)
	}

	return &Token{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Role:     role,
		Approved: claims.Approved,
	}, nil
}

func (p *JWTProvider) SetRoleClaims(ctx context.Context, subject string, role models.UserRole, approved bool) error {
	return nil
}

// IssueToken mints a signed token for the subject. Used by local tooling
// and tests.
func (p *JWTProvider) IssueToken(subject, email string, role models.UserRole, approved bool) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Email:    email,
		Role:     string(role),
		Approved: approved,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}
