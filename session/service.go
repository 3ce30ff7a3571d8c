// Package session is the session lifecycle core: it owns the credential
// store, drives the refresh coordinator, and runs the inactivity and
// proactive-refresh timers behind a small state machine
// (anonymous / initializing / authenticated).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-crm-client/api"
	"github.com/jrsteele09/go-crm-client/credentials"
	"github.com/jrsteele09/go-crm-client/internal/config"
	"github.com/jrsteele09/go-crm-client/refresh"
	"github.com/jrsteele09/go-crm-client/users"
)

// Service is the session state machine. All exported methods are safe for
// concurrent use.
type Service struct {
	cfg       config.Config
	creds     credentials.Repo
	apiClient *api.Client
	refresher *refresh.Coordinator
	logger    zerolog.Logger

	// isUserInteracting is the activity guard: automatic logouts are
	// suppressed while it reports true. Supplied by the UI layer; a CLI or
	// test leaves the default (never interacting). Not a security boundary.
	isUserInteracting func() bool
	newTimer          TimerFactory
	nowTime           func() time.Time
	qualifying        map[string]bool

	lock        sync.Mutex
	state       State
	user        *users.UserProfile
	initialized bool
	inactivity  timerSlot
	proactive   timerSlot
}

// Option defines a function type to modify the Service instance.
type Option func(*Service)

// WithLogger sets the logger used by the service, client and coordinator.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithInteractionProbe installs the activity-guard predicate.
func WithInteractionProbe(probe func() bool) Option {
	return func(s *Service) { s.isUserInteracting = probe }
}

// WithTimerFactory replaces timer scheduling (primarily for testing).
func WithTimerFactory(factory TimerFactory) Option {
	return func(s *Service) { s.newTimer = factory }
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Service) { s.nowTime = nowFunc }
}

// New wires a Service together with its API client and refresh coordinator.
func New(cfg config.Config, creds credentials.Repo, options ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("[session.New] config is required")
	}
	if creds == nil {
		return nil, errors.New("[session.New] credentials repo is required")
	}

	s := &Service{
		cfg:               cfg,
		creds:             creds,
		logger:            zerolog.Nop(),
		isUserInteracting: func() bool { return false },
		newTimer:          afterFunc,
		nowTime:           time.Now,
		state:             StateAnonymous,
		qualifying:        map[string]bool{},
	}
	for _, opt := range options {
		opt(s)
	}
	for _, event := range cfg.GetInteractionEvents() {
		s.qualifying[event] = true
	}

	client, err := api.New(cfg.GetBaseURL(), creds,
		api.WithLogger(s.logger),
		api.WithTimeout(cfg.GetRequestTimeout()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[session.New] api.New")
	}

	coordinator, err := refresh.NewCoordinator(creds, client.RefreshToken,
		refresh.WithLogger(s.logger),
		refresh.WithFailureHook(s.handleRefreshFailure),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[session.New] refresh.NewCoordinator")
	}
	client.SetRefresher(coordinator)

	s.apiClient = client
	s.refresher = coordinator
	return s, nil
}

// API exposes the underlying client for domain calls (leads, activities).
// Requests made through it share this session's credential and refresh
// pipeline.
func (s *Service) API() *api.Client {
	return s.apiClient
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// User returns a copy of the authenticated profile, or nil.
func (s *Service) User() *users.UserProfile {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

// Initialize restores a previous session. With a stored access token the
// service enters StateInitializing and validates the token with a profile
// fetch; otherwise it settles as anonymous. Runs once per Service; later
// calls are no-ops.
func (s *Service) Initialize(ctx context.Context) error {
	s.lock.Lock()
	if s.initialized {
		s.lock.Unlock()
		return nil
	}
	s.initialized = true

	cred, err := s.creds.Load()
	if err != nil || cred == nil || cred.Anonymous() {
		s.state = StateAnonymous
		s.lock.Unlock()
		return errors.Wrap(err, "[Service.Initialize] Load")
	}
	s.state = StateInitializing
	s.lock.Unlock()

	profile, err := s.apiClient.Me(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("stored session rejected, starting anonymous")
		s.lock.Lock()
		s.clearSessionLocked()
		s.lock.Unlock()
		return errors.Wrap(err, "[Service.Initialize] Me")
	}
	if !profile.Valid() {
		s.logger.Warn().Msg("stored session returned an incomplete profile, starting anonymous")
		s.lock.Lock()
		s.clearSessionLocked()
		s.lock.Unlock()
		return errors.New("[Service.Initialize] incomplete profile")
	}

	s.lock.Lock()
	s.setAuthenticatedLocked(*profile)
	s.lock.Unlock()
	s.logger.Info().Str("email", profile.Email).Msg("session restored")
	return nil
}

// Login authenticates with the API and starts an authenticated session.
// On failure the session state is left untouched.
func (s *Service) Login(ctx context.Context, email, password string) (*users.UserProfile, error) {
	resp, err := s.apiClient.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.startSession(resp)
}

// Register creates an account and starts an authenticated session, with the
// same failure contract as Login.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*users.UserProfile, error) {
	resp, err := s.apiClient.Register(ctx, email, password, firstName, lastName)
	if err != nil {
		return nil, err
	}
	return s.startSession(resp)
}

func (s *Service) startSession(resp *api.AuthResponse) (*users.UserProfile, error) {
	if !resp.User.Valid() {
		return nil, errors.New("[Service.startSession] auth response has an incomplete profile")
	}
	cred := credentials.Credential{
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
	}
	if err := s.creds.Save(cred); err != nil {
		return nil, errors.Wrap(err, "[Service.startSession] Save")
	}

	s.lock.Lock()
	s.initialized = true
	s.setAuthenticatedLocked(resp.User)
	s.lock.Unlock()

	s.logger.Info().Str("email", resp.User.Email).Msg("authenticated")
	user := resp.User
	return &user, nil
}

// Logout is the explicit, user-initiated logout. It is never suppressed by
// the activity guard.
func (s *Service) Logout() error {
	s.lock.Lock()
	err := s.clearSessionLocked()
	s.lock.Unlock()
	s.logger.Info().Msg("logged out")
	return err
}

// UpdateProfile applies a partial profile update and replaces the cached
// profile. Failures leave the prior state intact and never end the session.
func (s *Service) UpdateProfile(ctx context.Context, update users.ProfileUpdate) (*users.UserProfile, error) {
	s.lock.Lock()
	if s.state != StateAuthenticated {
		s.lock.Unlock()
		return nil, errors.New("[Service.UpdateProfile] not authenticated")
	}
	s.lock.Unlock()

	profile, err := s.apiClient.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	if s.state == StateAuthenticated { // session may have ended mid-flight
		user := *profile
		s.user = &user
	}
	s.lock.Unlock()
	return profile, nil
}

// RecordInteraction feeds a UI event into the inactivity tracking. Events
// outside the configured qualifying set are ignored; qualifying events
// restart the inactivity timer from zero while authenticated.
func (s *Service) RecordInteraction(event string) {
	if !s.qualifying[event] {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != StateAuthenticated {
		return
	}
	s.inactivity.arm(s.newTimer, s.cfg.GetInactivityTimeout(), s.onInactivity)
}

// setAuthenticatedLocked installs the profile and (re)arms both timers.
func (s *Service) setAuthenticatedLocked(profile users.UserProfile) {
	user := profile
	s.state = StateAuthenticated
	s.user = &user
	s.inactivity.arm(s.newTimer, s.cfg.GetInactivityTimeout(), s.onInactivity)
	s.armProactiveLocked()
}

// clearSessionLocked drops to anonymous: both tokens removed together, both
// timers cancelled.
func (s *Service) clearSessionLocked() error {
	s.state = StateAnonymous
	s.user = nil
	s.inactivity.cancel()
	s.proactive.cancel()
	if err := s.creds.Clear(); err != nil {
		return errors.Wrap(err, "[Service.clearSession] Clear")
	}
	return nil
}

// armProactiveLocked schedules the next proactive refresh.
func (s *Service) armProactiveLocked() {
	s.proactive.arm(s.newTimer, s.refreshDelay(), s.onProactiveRefresh)
}

// refreshDelay derives the proactive-refresh delay from the access token's
// exp claim (the API issues JWTs) minus the configured leeway, falling back
// to the fixed interval when the token is opaque or already near expiry.
func (s *Service) refreshDelay() time.Duration {
	cred, err := s.creds.Load()
	if err != nil || cred == nil || cred.Anonymous() {
		return s.cfg.GetRefreshInterval()
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(cred.AccessToken, claims); err != nil {
		return s.cfg.GetRefreshInterval()
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return s.cfg.GetRefreshInterval()
	}

	delay := exp.Time.Sub(s.nowTime()) - s.cfg.GetRefreshLeeway()
	if delay < time.Second {
		delay = time.Second
	}
	return delay
}

// onInactivity fires when the idle duration elapses with no qualifying
// interaction. A suppressed logout re-arms the timer so the attempt repeats
// on the usual schedule.
func (s *Service) onInactivity(gen uint64) {
	s.lock.Lock()
	if gen != s.inactivity.gen || s.state != StateAuthenticated {
		s.lock.Unlock()
		return
	}
	s.lock.Unlock()

	if !s.autoLogout("inactivity timeout") {
		s.lock.Lock()
		if s.state == StateAuthenticated {
			s.inactivity.arm(s.newTimer, s.cfg.GetInactivityTimeout(), s.onInactivity)
		}
		s.lock.Unlock()
	}
}

// onProactiveRefresh refreshes ahead of token expiry. On success the timer
// is re-armed; on failure it is not, leaving recovery to the reactive 401
// path (the coordinator's failure hook has already run).
func (s *Service) onProactiveRefresh(gen uint64) {
	s.lock.Lock()
	if gen != s.proactive.gen || s.state != StateAuthenticated {
		s.lock.Unlock()
		return
	}
	s.lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetRequestTimeout())
	defer cancel()

	if _, err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("proactive refresh failed")
		return
	}

	s.lock.Lock()
	if s.state == StateAuthenticated {
		s.armProactiveLocked()
	}
	s.lock.Unlock()
}

// handleRefreshFailure runs once per failed refresh, after the coordinator
// has cleared the store.
func (s *Service) handleRefreshFailure(err error) {
	s.lock.Lock()
	authenticated := s.state == StateAuthenticated || s.state == StateInitializing
	s.lock.Unlock()
	if !authenticated {
		return
	}
	// Dropped when suppressed, by decision: no re-attempt is scheduled for
	// this trigger. The inactivity timer remains armed and will end the
	// session on its own schedule.
	s.autoLogout("token refresh failed")
}

// autoLogout is the guarded, non-user-initiated logout. Returns true when
// the logout went through.
func (s *Service) autoLogout(reason string) bool {
	if s.isUserInteracting() {
		s.logger.Info().Str("reason", reason).Msg("automatic logout suppressed while user is interacting")
		return false
	}

	s.lock.Lock()
	err := s.clearSessionLocked()
	s.lock.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Msg("clearing session")
	}
	s.logger.Info().Str("reason", reason).Msg("session ended")
	return true
}
