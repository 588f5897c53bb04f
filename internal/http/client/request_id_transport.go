package client

import (
	"net/http"

	"docroute-api/internal/observability/requestid"
)

// RequestIDTransport is an http.RoundTripper that propagates the X-Request-Id
// header from context to outbound HTTP requests, so the claims admin API and
// other collaborators can be correlated with the inbound request.
type RequestIDTransport struct {
	base http.RoundTripper
}

// NewRequestIDTransport creates a new RequestIDTransport wrapping the base
// transport. If base is nil, defaults to http.DefaultTransport.
func NewRequestIDTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RequestIDTransport{base: base}
}

// RoundTrip sets X-Request-Id from the request context unless the caller
// already set one explicitly.
func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("X-Request-Id") != "" {
		return t.base.RoundTrip(req)
	}

	reqID := requestid.GetRequestID(req.Context())
	if reqID == "" {
		// Background jobs have no request scope; proceed without the header.
		return t.base.RoundTrip(req)
	}

	// Headers are shared; clone before mutating.
	clonedReq := req.Clone(req.Context())
	clonedReq.Header.Set("X-Request-Id", reqID)

	return t.base.RoundTrip(clonedReq)
}
