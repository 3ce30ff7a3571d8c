package config

import "time"

// Config is everything the client and CLI need to run.
type Config interface {
	EnvConfig
	SessionConfig
}

// EnvConfig covers process-level settings.
type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetCredentialsDir() string
}

// SessionConfig covers the session-lifecycle tunables.
type SessionConfig interface {
	// GetInactivityTimeout is how long the session may sit idle before an
	// automatic logout is attempted.
	GetInactivityTimeout() time.Duration
	// GetRefreshInterval is the fallback proactive-refresh interval, used
	// when the access token does not expose its own expiry.
	GetRefreshInterval() time.Duration
	// GetRefreshLeeway is how far ahead of the access token's expiry the
	// proactive refresh should run.
	GetRefreshLeeway() time.Duration
	GetRequestTimeout() time.Duration
	// GetInteractionEvents is the set of UI event names that count as
	// evidence of user presence and restart the inactivity timer.
	GetInteractionEvents() []string
}
