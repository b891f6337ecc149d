package auth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoCredential           = errors.New("no stored credential")
	ErrCredentialExpiringSoon = errors.New("stored credential is expired or about to expire")
	ErrAuthorizationPending   = errors.New("authorization pending")
	ErrSlowDown               = errors.New("slow down")
	ErrAuthorizationDenied    = errors.New("authorization denied")
	ErrDeviceSessionExpired   = errors.New("device session expired")
	ErrMalformedStore         = errors.New("malformed credential store")
)

// ProviderError is an error response from the identity provider. Code holds the
// OAuth2 error string (e.g. "access_denied") when the body carried one.
type ProviderError struct {
	Code        string
	Description string
	StatusCode  int
}

func (e *ProviderError) Error() string {
	code := e.Code
	if code == "" {
		code = "unexpected response"
	}
	if e.Description != "" {
		return fmt.Sprintf("identity provider error %s (HTTP %d): %s", code, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("identity provider error %s (HTTP %d)", code, e.StatusCode)
}

// Unwrap maps well-known OAuth2 error codes onto the package sentinels so callers
// can use errors.Is. Pending and slow_down only count on a 400 response.
func (e *ProviderError) Unwrap() error {
	switch e.Code {
	case "authorization_pending":
		if e.StatusCode == http.StatusBadRequest {
			return ErrAuthorizationPending
		}
	case "slow_down":
		if e.StatusCode == http.StatusBadRequest {
			return ErrSlowDown
		}
	case "access_denied":
		return ErrAuthorizationDenied
	case "expired_token":
		return ErrDeviceSessionExpired
	}
	return nil
}

// TransportError reports a request that never produced an HTTP response, after
// retries were exhausted.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
