// Package refresh serializes token refreshes: however many requests hit an
// authorization failure at once, at most one refresh call reaches the
// network, and every caller shares its outcome.
package refresh

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-crm-client/api"
	"github.com/jrsteele09/go-crm-client/credentials"
)

// RefreshFunc performs the actual refresh network call.
type RefreshFunc func(ctx context.Context, refreshToken string) (credentials.Credential, error)

type outcome struct {
	cred credentials.Credential
	err  error
}

// Coordinator is a single-flight refresh gate. While a refresh is in flight,
// further callers are queued and resolved, in order, with the in-flight
// result.
type Coordinator struct {
	creds     credentials.Repo
	refreshFn RefreshFunc
	onFailure func(error)
	logger    zerolog.Logger

	lock       sync.Mutex
	refreshing bool
	waiters    []chan outcome
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFailureHook registers a callback invoked once per failed refresh,
// after the credential store has been cleared. The session machine uses it
// to run its guarded automatic logout.
func WithFailureHook(fn func(error)) Option {
	return func(c *Coordinator) { c.onFailure = fn }
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator creates a Coordinator over the given store and refresh call.
func NewCoordinator(creds credentials.Repo, refreshFn RefreshFunc, options ...Option) (*Coordinator, error) {
	if creds == nil {
		return nil, errors.New("[refresh.NewCoordinator] credentials repo is required")
	}
	if refreshFn == nil {
		return nil, errors.New("[refresh.NewCoordinator] refresh function is required")
	}

	c := &Coordinator{
		creds:     creds,
		refreshFn: refreshFn,
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Refresh obtains a fresh credential. The first caller while idle performs
// the network call; concurrent callers block until that call completes and
// share its result. Callers whose context expires stop waiting, but the
// refresh itself carries on for the remaining waiters.
func (c *Coordinator) Refresh(ctx context.Context) (credentials.Credential, error) {
	c.lock.Lock()
	if c.refreshing {
		ch := make(chan outcome, 1)
		c.waiters = append(c.waiters, ch)
		c.lock.Unlock()

		select {
		case o := <-ch:
			return o.cred, o.err
		case <-ctx.Done():
			return credentials.Credential{}, ctx.Err()
		}
	}
	c.refreshing = true
	c.lock.Unlock()

	cred, err := c.refreshOnce(ctx)

	c.lock.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.lock.Unlock()

	for _, ch := range waiters {
		ch <- outcome{cred: cred, err: err}
	}
	return cred, err
}

func (c *Coordinator) refreshOnce(ctx context.Context) (credentials.Credential, error) {
	stored, err := c.creds.Load()
	if err != nil {
		return credentials.Credential{}, c.fail(errors.Wrap(err, "[Coordinator.Refresh] Load"))
	}
	if stored == nil || !stored.Refreshable() {
		// Hard failure with no network call: nothing to refresh with.
		return credentials.Credential{}, c.fail(api.ErrMissingRefreshToken)
	}

	cred, err := c.refreshFn(ctx, stored.RefreshToken)
	if err != nil {
		var refreshErr *api.RefreshError
		if !errors.As(err, &refreshErr) {
			err = &api.RefreshError{Err: err}
		}
		return credentials.Credential{}, c.fail(err)
	}

	if cred.RefreshToken == "" {
		// Server did not rotate; keep the token we refreshed with.
		cred.RefreshToken = stored.RefreshToken
	}
	if err := c.creds.Save(cred); err != nil {
		return credentials.Credential{}, c.fail(errors.Wrap(err, "[Coordinator.Refresh] Save"))
	}

	c.logger.Debug().Msg("access token refreshed")
	return cred, nil
}

// fail clears the stored credential and notifies the failure hook, then
// hands the error back for the waiters.
func (c *Coordinator) fail(err error) error {
	c.logger.Warn().Err(err).Msg("token refresh failed")
	if clearErr := c.creds.Clear(); clearErr != nil {
		c.logger.Error().Err(clearErr).Msg("clearing credentials after failed refresh")
	}
	if c.onFailure != nil {
		c.onFailure(err)
	}
	return err
}
