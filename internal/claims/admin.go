package claims

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"docroute-api/internal/domain"
	httpclient "docroute-api/internal/http/client"
)

// AdminAPIStore is a Claims Store backed by the identity provider's admin API.
// Used when the deployment delegates token minting to a hosted provider
// instead of reading claims out of Redis directly.
type AdminAPIStore struct {
	baseURL    string
	s2sToken   string
	httpClient *http.Client
}

// NewAdminAPIStore creates an AdminAPIStore for the admin API at baseURL.
// Requests authenticate with the shared S2S token.
func NewAdminAPIStore(baseURL, s2sToken string) *AdminAPIStore {
	return &AdminAPIStore{
		baseURL:    baseURL,
		s2sToken:   s2sToken,
		httpClient: httpclient.NewInternalHTTPClient(),
	}
}

type claimsPayload struct {
	Role   string `json:"role"`
	IsRoot bool   `json:"isRoot"`
}

// Get retrieves the claims record for an identity.
func (s *AdminAPIStore) Get(ctx context.Context, uid string) (domain.Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.claimsURL(uid), nil)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("build claims request for %s: %w", uid, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.s2sToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("get claims for %s: %w", uid, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.Claims{}, ErrNotFound
	default:
		return domain.Claims{}, fmt.Errorf("get claims for %s: admin API returned %d", uid, resp.StatusCode)
	}

	var payload claimsPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err != nil {
		return domain.Claims{}, fmt.Errorf("decode claims for %s: %w", uid, err)
	}
	return domain.Claims{Role: domain.Role(payload.Role), IsRoot: payload.IsRoot}, nil
}

// Set overwrites the claims record for an identity.
func (s *AdminAPIStore) Set(ctx context.Context, uid string, claims domain.Claims) error {
	body, err := json.Marshal(claimsPayload{Role: claims.Role.String(), IsRoot: claims.IsRoot})
	if err != nil {
		return fmt.Errorf("encode claims for %s: %w", uid, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.claimsURL(uid), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build claims request for %s: %w", uid, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.s2sToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("set claims for %s: %w", uid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("set claims for %s: admin API returned %d", uid, resp.StatusCode)
	}
	return nil
}

func (s *AdminAPIStore) claimsURL(uid string) string {
	return s.baseURL + "/admin/v1/identities/" + url.PathEscape(uid) + "/claims"
}
