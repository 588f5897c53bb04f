package auth

import (
	"docroute-api/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims represents the custom JWT claims the identity provider embeds
// into issued tokens. Subject carries the identity UID.
type CustomClaims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsRoot   bool   `json:"isRoot"`
	OfficeID string `json:"officeId,omitempty"`
	jwt.RegisteredClaims
}

// Validate performs additional validation on custom claims
func (c *CustomClaims) Validate() error {
	if c.Subject == "" {
		return jwt.ErrTokenInvalidClaims
	}
	if c.Email == "" {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// ActorClaims converts the token claims to the domain actor shape used by the
// authorization rule table.
func (c *CustomClaims) ActorClaims() domain.ActorClaims {
	return domain.ActorClaims{
		UID:    c.Subject,
		Email:  c.Email,
		Role:   domain.Role(c.Role),
		IsRoot: c.IsRoot,
	}
}
