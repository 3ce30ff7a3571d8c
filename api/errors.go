package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors surfaced by the client and the refresh coordinator.
var (
	// ErrAuthorization is a 401 that survived the refresh pipeline.
	ErrAuthorization = errors.New("authorization failed")
	// ErrMissingRefreshToken means a refresh was attempted with no stored
	// refresh token; no network call is made in that case.
	ErrMissingRefreshToken = errors.New("no refresh token stored")
)

// genericErrorMessage is shown when the server gives no usable detail.
const genericErrorMessage = "something went wrong, please try again"

// NetworkError is a transport-level failure: the request never produced an
// HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RefreshError means the token refresh itself failed; it is the only error
// that can end a session automatically.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// ValidationError is a domain-level 4xx (bad credentials, rejected payload).
// Detail carries the server's human-readable message when one was provided.
type ValidationError struct {
	StatusCode int
	Detail     string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return genericErrorMessage
}

// errorFromResponse maps a non-2xx response to a typed error.
func errorFromResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthorization
	}
	return &ValidationError{
		StatusCode: resp.StatusCode,
		Detail:     decodeDetail(body),
	}
}

// decodeDetail extracts a human-readable message from a DRF-style error
// body: either {"detail": "..."} or a field-error map such as
// {"email": ["..."]}.
func decodeDetail(body []byte) string {
	var withDetail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &withDetail); err == nil && withDetail.Detail != "" {
		return withDetail.Detail
	}

	var fieldErrors map[string][]string
	if err := json.Unmarshal(body, &fieldErrors); err == nil {
		for field, messages := range fieldErrors {
			if len(messages) > 0 {
				return fmt.Sprintf("%s: %s", field, messages[0])
			}
		}
	}
	return ""
}
