package identity

import (
	"context"
	"fmt"

	"uberapp/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

type FirebaseProvider struct {
	client *auth.Client
}

func NewFirebaseProvider(ctx context.Context, credentialsFile string) (*FirebaseProvider, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}

	return &FirebaseProvider{client: client}, nil
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, rawToken string) (*Token, error) {
	decoded, err := p.client.VerifyIDToken(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	token := &Token{
		Subject: decoded.UID,
		Role:    models.RoleCustomer,
	}

	if email, ok := decoded.Claims["email"].(string); ok {
		token.Email = email
	}
	if role, ok := decoded.Claims["role"].(string); ok && models.UserRole(role).Valid() {
		token.Role = models.UserRole(role)
	}
	if approved, ok := decoded.Claims["approved"].(bool); ok {
		token.Approved = approved
	}

	return token, nil
}

func (p *FirebaseProvider) SetRoleClaims(ctx context.Context, subject string, role models.UserRole, approved bool) error {
	claims := map[string]interface{}{
		"role":     string(role),
		"approved": approved,
	}
	if err := p.client.SetCustomUserClaims(ctx, subject, claims); err != nil {
		return fmt.Errorf("failed to set custom claims: %w", err)
	}
	return nil
}
