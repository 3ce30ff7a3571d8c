package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-crm-client/credentials"
)

// Refresher exchanges the stored refresh token for a fresh credential.
// Implemented by refresh.Coordinator; the pipeline never talks to the
// refresh endpoint directly.
type Refresher interface {
	Refresh(ctx context.Context) (credentials.Credential, error)
}

// retriedKey marks a request that has already been resubmitted once after a
// refresh. The marker lives on the context rather than on the request so the
// original request object is never mutated.
type retriedKey struct{}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func alreadyRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey{}).(bool)
	return retried
}

// Transport is the client pipeline: it attaches the bearer credential to
// every outbound request and converts a first-time 401 into a refresh plus a
// transparent retry. A 401 from the refresh endpoint itself, or from a
// request that was already retried, passes through untouched.
type Transport struct {
	Base      http.RoundTripper
	Creds     credentials.Repo
	Refresher Refresher
	Logger    zerolog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	out := req.Clone(req.Context())
	if out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", uuid.NewString())
	}
	if cred, err := t.Creds.Load(); err == nil && cred != nil && !cred.Anonymous() {
		out.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	resp, err := base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if t.Refresher == nil || isRefreshRequest(req) || alreadyRetried(req.Context()) {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	t.Logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("authorization failure, attempting token refresh")

	if _, err := t.Refresher.Refresh(req.Context()); err != nil {
		return nil, err
	}

	retry := req.Clone(markRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.RoundTrip(retry)
}

func isRefreshRequest(req *http.Request) bool {
	return strings.HasSuffix(req.URL.Path, "/auth/refresh/")
}
