package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims represents the bearer token issued to mobile clients by the
// identity provider. The subject carries the user id.
type AccessTokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *AccessTokenClaims) UserID() (uuid.UUID, error) {
	if c == nil || c.Subject == "" {
		return uuid.Nil, fmt.Errorf("token subject is empty")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("token subject is not a user id: %w", err)
	}
	return id, nil
}
