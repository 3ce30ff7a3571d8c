// Package api is the REST client for the CRM backend. All requests flow
// through Transport, which owns bearer-credential injection and the
// 401-refresh-retry pipeline.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-crm-client/credentials"
	"github.com/jrsteele09/go-crm-client/users"
)

const defaultTimeout = 15 * time.Second

// Client issues requests against the CRM API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	transport  *Transport
	logger     zerolog.Logger
	timeout    time.Duration
	baseRT     http.RoundTripper
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by the client and its pipeline.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithBaseTransport overrides the underlying RoundTripper (for tests).
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.baseRT = rt }
}

// New creates a Client whose requests carry the credential held in creds.
func New(baseURL string, creds credentials.Repo, options ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[api.New] baseURL is required")
	}
	if creds == nil {
		return nil, errors.New("[api.New] credentials repo is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  zerolog.Nop(),
		timeout: defaultTimeout,
	}
	for _, opt := range options {
		opt(c)
	}

	c.transport = &Transport{
		Base:   c.baseRT,
		Creds:  creds,
		Logger: c.logger,
	}
	c.httpClient = &http.Client{
		Transport: c.transport,
		Timeout:   c.timeout,
	}
	return c, nil
}

// SetRefresher installs the refresh coordinator on the pipeline. Until one is
// installed, 401 responses are surfaced without a refresh attempt.
func (c *Client) SetRefresher(r Refresher) {
	c.transport.Refresher = r
}

// AuthResponse is the payload returned by the login and register endpoints.
type AuthResponse struct {
	Access  string            `json:"access"`
	Refresh string            `json:"refresh,omitempty"`
	User    users.UserProfile `json:"user"`
}

// Login exchanges credentials for tokens and the account profile.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login/", nil, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, email, password, firstName, lastName string) (*AuthResponse, error) {
	payload := map[string]string{
		"email":      email,
		"password":   password,
		"first_name": firstName,
		"last_name":  lastName,
	}
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register/", nil, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me fetches the current account profile.
func (c *Client) Me(ctx context.Context) (*users.UserProfile, error) {
	var profile users.UserProfile
	if err := c.do(ctx, http.MethodGet, "/auth/me/", nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies a partial profile update and returns the result.
func (c *Client) UpdateProfile(ctx context.Context, update users.ProfileUpdate) (*users.UserProfile, error) {
	var profile users.UserProfile
	if err := c.do(ctx, http.MethodPatch, "/auth/me/", nil, update, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// RefreshToken exchanges a refresh token for a new credential pair. Called by
// the refresh coordinator only; Transport deliberately skips the refresh
// endpoint so this call can never recurse into another refresh.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (credentials.Credential, error) {
	payload := map[string]string{"refresh": refreshToken}
	var resp struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh/", nil, payload, &resp); err != nil {
		return credentials.Credential{}, err
	}
	return credentials.Credential{
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
	}, nil
}

// do issues one JSON request. A nil payload sends no body; a nil out discards
// the response body. Errors are always one of the package's typed errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "[Client.do] Marshal")
		}
		body = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "[Client.do] NewRequest")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errorFromResponse(resp, raw)
	}
	if out == nil || len(raw) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "[Client.do] Unmarshal %s %s", method, path)
	}
	return nil
}

// transportError unwraps errors returned through http.Client. Typed refresh
// failures raised inside the pipeline are passed through; anything else is a
// transport-level failure.
func (c *Client) transportError(method, path string, err error) error {
	var refreshErr *RefreshError
	if errors.As(err, &refreshErr) {
		return refreshErr
	}
	if errors.Is(err, ErrMissingRefreshToken) {
		return ErrMissingRefreshToken
	}
	return &NetworkError{Op: method + " " + path, Err: err}
}
