package auth

import (
	"context"

	"docroute-api/internal/domain"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	authContextKey   contextKey = "auth_context"
)

// AuthContext carries the authenticated identity through the request.
// ActorType is "user" for JWT-authenticated requests and "service" for S2S.
type AuthContext struct {
	ActorID    string
	Email      string
	Role       domain.Role
	IsRoot     bool
	OfficeID   string
	ActorType  string
	AuthMethod string
	Client     string
	Issuer     string
}

// Actor returns the domain actor shape for authorization checks.
func (a *AuthContext) Actor() domain.ActorClaims {
	return domain.ActorClaims{
		UID:    a.ActorID,
		Email:  a.Email,
		Role:   a.Role,
		IsRoot: a.IsRoot,
	}
}

// GetClaims retrieves the raw JWT claims from context
func GetClaims(ctx context.Context) (*CustomClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*CustomClaims)
	return claims, ok
}

// GetAuthContext retrieves the auth context from context
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey).(*AuthContext)
	return authCtx, ok
}
