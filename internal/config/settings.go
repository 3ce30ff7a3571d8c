package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

var _ Config = (*Settings)(nil)

// Settings is the environment-backed Config implementation.
type Settings struct {
	AppName        string `env:"CRM_APP_NAME" envDefault:"CRM Client"`
	BaseURL        string `env:"CRM_BASE_URL" envDefault:"http://localhost:8000/api"`
	CredentialsDir string `env:"CRM_CREDENTIALS_DIR"`

	InactivityTimeout time.Duration `env:"CRM_INACTIVITY_TIMEOUT" envDefault:"10m"`
	RefreshInterval   time.Duration `env:"CRM_REFRESH_INTERVAL" envDefault:"4m"`
	RefreshLeeway     time.Duration `env:"CRM_REFRESH_LEEWAY" envDefault:"30s"`
	RequestTimeout    time.Duration `env:"CRM_REQUEST_TIMEOUT" envDefault:"15s"`

	InteractionEvents []string `env:"CRM_INTERACTION_EVENTS" envSeparator:"," envDefault:"pointerdown,pointermove,keypress,scroll,touchstart,click"`
}

// New loads configuration from environment variables, falling back to the
// defaults above. The credentials directory defaults to a per-user config
// location when not set explicitly.
func New() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, errors.Wrap(err, "[config.New] env.Parse")
	}
	if s.CredentialsDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, errors.Wrap(err, "[config.New] UserConfigDir")
		}
		s.CredentialsDir = filepath.Join(base, "crm-client")
	}
	return &s, nil
}

func (s *Settings) GetAppName() string { return s.AppName }

func (s *Settings) GetBaseURL() string { return s.BaseURL }

func (s *Settings) GetCredentialsDir() string { return s.CredentialsDir }

func (s *Settings) GetInactivityTimeout() time.Duration { return s.InactivityTimeout }

func (s *Settings) GetRefreshInterval() time.Duration { return s.RefreshInterval }

func (s *Settings) GetRefreshLeeway() time.Duration { return s.RefreshLeeway }

func (s *Settings) GetRequestTimeout() time.Duration { return s.RequestTimeout }

func (s *Settings) GetInteractionEvents() []string { return s.InteractionEvents }
