package client

import (
	"net/http"
	"time"
)

// NewInternalHTTPClient creates an http.Client with sane defaults for calls to
// collaborating services (the identity provider's admin API, webhooks).
//
// Includes request ID propagation via RequestIDTransport, deterministic
// timeouts, and connection pooling via DefaultTransport. http.DefaultClient
// has zero timeouts and can hang a request forever.
func NewInternalHTTPClient() *http.Client {
	baseTransport := http.DefaultTransport.(*http.Transport).Clone()
	transport := NewRequestIDTransport(baseTransport)

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// NewCustomHTTPClient creates an http.Client with a custom timeout but the
// same request ID propagation.
func NewCustomHTTPClient(timeout time.Duration) *http.Client {
	baseTransport := http.DefaultTransport.(*http.Transport).Clone()
	transport := NewRequestIDTransport(baseTransport)

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
