// Package push fans one channel-agnostic payload out to every device of
// a user across the configured platform providers, invalidating tokens
// the providers report as dead.
package push

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"teamup/internal/domain"
	"teamup/internal/tokens"
	logx "teamup/pkg/logx"
)

type Engine struct {
	registry  *tokens.Registry
	log       logx.Logger
	providers map[domain.Platform]Provider
	timeout   time.Duration
}

// New builds the engine, enabling each platform only when its credentials
// are present. Initialization failures of one provider disable that
// platform but never fail the engine.
func New(cfg Config, registry *tokens.Registry, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		registry:  registry,
		log:       log,
		providers: map[domain.Platform]Provider{},
		timeout:   cfg.SendTimeout,
	}
	if e.timeout <= 0 {
		e.timeout = 10 * time.Second
	}

	if cfg.APNs.Configured() {
		p, err := newAPNsProvider(cfg.APNs)
		if err != nil {
			log.Error("apns provider init failed, ios push disabled", logx.Err(err))
		} else {
			e.providers[domain.PlatformIOS] = p
			log.Info("ios push enabled", logx.String("bundle", cfg.APNs.BundleID))
		}
	} else {
		log.Info("ios push disabled (no credentials)")
	}

	if cfg.FCM.Configured() {
		p, err := newFCMProvider(cfg.FCM)
		if err != nil {
			log.Error("fcm provider init failed, android push disabled", logx.Err(err))
		} else {
			e.providers[domain.PlatformAndroid] = p
			log.Info("android push enabled", logx.String("project", cfg.FCM.ProjectID))
		}
	} else {
		log.Info("android push disabled (no credentials)")
	}

	return e
}

// NewWithProviders wires explicit providers; used by tests and by setups
// that bring their own clients.
func NewWithProviders(providers map[domain.Platform]Provider, registry *tokens.Registry, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if providers == nil {
		providers = map[domain.Platform]Provider{}
	}
	return &Engine{registry: registry, log: log, providers: providers, timeout: 10 * time.Second}
}

// SendToUser delivers p to every device of userID and returns the number
// of devices that accepted it. Platform sub-engines run concurrently; a
// failing device never aborts delivery to the others. The call never
// fails for a bad token or an unconfigured platform: worst case is 0.
func (e *Engine) SendToUser(ctx context.Context, userID int64, p domain.Payload) int {
	devices, err := e.registry.List(ctx, userID)
	if err != nil {
		e.log.Warn("token listing failed", logx.Int64("user", userID), logx.Err(err))
		return 0
	}
	if len(devices) == 0 {
		return 0
	}

	byPlatform := map[domain.Platform][]domain.DeviceToken{}
	for _, d := range devices {
		byPlatform[d.Platform] = append(byPlatform[d.Platform], d)
	}

	var delivered atomic.Int64
	var wg sync.WaitGroup
	for platform, list := range byPlatform {
		provider, ok := e.providers[platform]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(platform domain.Platform, provider Provider, list []domain.DeviceToken) {
			defer wg.Done()
			for _, d := range list {
				if e.sendOne(ctx, provider, platform, d, p) {
					delivered.Add(1)
				}
			}
		}(platform, provider, list)
	}
	wg.Wait()

	return int(delivered.Load())
}

func (e *Engine) sendOne(ctx context.Context, provider Provider, platform domain.Platform, d domain.DeviceToken, p domain.Payload) bool {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	err := provider.Send(cctx, d.Token, p)
	cancel()
	if err == nil {
		return true
	}

	if errors.Is(err, ErrTokenInvalid) {
		// Self-healing registry: dead tokens are removed on the spot, no
		// separate cleanup job.
		if ierr := e.registry.Invalidate(ctx, d.Token); ierr != nil {
			e.log.Warn("token invalidation failed", logx.Int64("user", d.UserID), logx.Err(ierr))
		}
		return false
	}

	e.log.Debug("push send failed",
		logx.Int64("user", d.UserID),
		logx.String("platform", string(platform)),
		logx.Err(err))
	return false
}
