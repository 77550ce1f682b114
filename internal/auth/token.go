package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agrinet/agrichat/internal/domain"
)

// Claims mirrors the marketplace's access-token payload.
type Claims struct {
	UserID   string `json:"id"`
	UserType string `json:"userType"`
	jwt.RegisteredClaims
}

// Identity is who this client acts as, read from the configured bearer
// token.
type Identity struct {
	UserID string
	Role   domain.Role
}

// FromToken extracts the identity from a marketplace access token. The
// signature is not verified here: the token was issued to us and every call
// carrying it is validated server-side anyway; we only need the role and
// user id to shape the session.
func FromToken(token string) (*Identity, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user id")
	}

	role := domain.Role(claims.UserType)
	switch role {
	case domain.RoleFarmer, domain.RoleExpert:
	default:
		return nil, fmt.Errorf("unsupported user type %q", claims.UserType)
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("token expired at %s", claims.ExpiresAt.Time.Format(time.RFC3339))
	}

	return &Identity{UserID: claims.UserID, Role: role}, nil
}
