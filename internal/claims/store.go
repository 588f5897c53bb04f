// Package claims talks to the Claims Store: the external token service holding
// the authoritative role/isRoot pair the identity provider embeds into issued
// tokens. Writes here take effect on the next token mint; readers must treat
// claims as authoritative for role/isRoot and the profile record as
// authoritative for status/office, never assume the two agree instantaneously.
package claims

import (
	"context"
	"errors"

	"docroute-api/internal/domain"
)

// ErrNotFound indicates no claims have been set for the identity yet.
var ErrNotFound = errors.New("claims not found for identity")

// Store is the Claims Store contract. Set overwrites the full claims record
// for an identity; re-applying the same claims is a no-op in effect, so
// callers may retry freely.
type Store interface {
	Get(ctx context.Context, uid string) (domain.Claims, error)
	Set(ctx context.Context, uid string, claims domain.Claims) error
}
