package push

import (
	"context"
	"errors"
	"time"

	"teamup/internal/domain"
)

// ErrTokenInvalid marks provider responses meaning the token is
// permanently dead (unregistered, expired registration). Providers wrap
// it; the engine reacts by invalidating the token in the registry. Any
// other error is transient and only logged.
var ErrTokenInvalid = errors.New("push: token permanently invalid")

// Provider delivers one payload to one device token of its platform.
type Provider interface {
	Send(ctx context.Context, token string, p domain.Payload) error
}

// Config carries provider credentials. A platform with absent credentials
// is silently disabled for the process lifetime; that is a feature flag,
// not an error.
type Config struct {
	APNs APNsConfig
	FCM  FCMConfig

	// SendTimeout bounds each per-device provider call.
	SendTimeout time.Duration
}

type APNsConfig struct {
	KeyPath    string
	KeyID      string
	TeamID     string
	BundleID   string
	Production bool
}

func (c APNsConfig) Configured() bool {
	return c.KeyPath != "" && c.KeyID != "" && c.TeamID != "" && c.BundleID != ""
}

type FCMConfig struct {
	ProjectID       string
	CredentialsFile string
}

func (c FCMConfig) Configured() bool {
	return c.ProjectID != "" && c.CredentialsFile != ""
}
