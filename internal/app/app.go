// Package app wires configuration, storage, the bot channel, the push
// engine and the periodic jobs into one process. Embedding applications
// construct App with their own domain reader; the standalone binary feeds
// it a file-backed directory.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"teamup/internal/alert"
	"teamup/internal/botchan"
	"teamup/internal/botrouter"
	"teamup/internal/config"
	"teamup/internal/directory"
	"teamup/internal/domain"
	"teamup/internal/engine"
	"teamup/internal/locality"
	"teamup/internal/otp"
	"teamup/internal/pinned"
	"teamup/internal/prefs"
	"teamup/internal/push"
	"teamup/internal/storage"
	"teamup/internal/tokens"
	"teamup/internal/visibility"
	logx "teamup/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
	cron "github.com/robfig/cron/v3"
)

const defaultPinnedSchedule = "@every 1h"

// Deps are the host-provided collaborators. Reader may be left nil when
// the config names a directory file; Invites and Auth are optional.
type Deps struct {
	Reader  domain.Reader
	Invites domain.InviteResponder
	Auth    domain.Authenticator
}

type App struct {
	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter *botchan.Adapter
	router  *botrouter.Router

	resolver *prefs.Resolver
	gate     *visibility.Gate
	registry *tokens.Registry
	pusher   *push.Engine
	otp      *otp.Service
	alerts   *alert.Reporter
	engine   *engine.Service
	pinned   *pinned.Refresher

	auth domain.Authenticator
	cron *cron.Cron

	pinnedEnabled  bool
	pinnedSchedule string

	updates chan botchan.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string, deps Deps) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	sc := storage.Config{Driver: "memory"}
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		sc = storage.Config{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path, BusyTimeout: busy}
	} else {
		log.Warn("no storage section; using volatile in-memory store")
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	reader := deps.Reader
	if reader == nil && cfg.Directory != nil {
		dir, err := directory.Load(cfg.Directory.Path, log.With(logx.String("comp", "directory")))
		if err != nil {
			return nil, err
		}
		reader = dir
	}
	if reader == nil {
		return nil, fmt.Errorf("app: no domain reader (set directory.path or inject Deps.Reader)")
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := botchan.NewAdapter(botchan.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	resolver := prefs.NewResolver(store, reader, log.With(logx.String("comp", "prefs")))
	gate := visibility.NewGate(store, log.With(logx.String("comp", "mutes")))
	registry := tokens.NewRegistry(store, resolver, log.With(logx.String("comp", "tokens")))

	pusher := push.New(push.Config{
		APNs: push.APNsConfig{
			KeyPath:    cfg.Push.APNs.KeyPath,
			KeyID:      cfg.Push.APNs.KeyID,
			TeamID:     cfg.Push.APNs.TeamID,
			BundleID:   cfg.Push.APNs.BundleID,
			Production: cfg.Push.APNs.Production,
		},
		FCM: push.FCMConfig{
			ProjectID:       cfg.Push.FCM.ProjectID,
			CredentialsFile: cfg.Push.FCM.CredentialsFile,
		},
	}, registry, log.With(logx.String("comp", "push")))

	otpSvc := otp.NewService(store, adapter, log.With(logx.String("comp", "otp")))
	alerts := alert.NewReporter(adapter, reader, cfg.Alerts.Enabled, log.With(logx.String("comp", "alerts")))
	loc := locality.NewCache(reader, log.With(logx.String("comp", "locality")))
	eng := engine.New(reader, resolver, gate, pusher, adapter, loc, log.With(logx.String("comp", "engine")))
	router := botrouter.New(adapter, reader, deps.Invites, otpSvc, log.With(logx.String("comp", "router")))
	pin := pinned.NewRefresher(reader, store, adapter, loc, log.With(logx.String("comp", "pinned")))

	schedule := cfg.Pinned.Schedule
	if schedule == "" {
		schedule = defaultPinnedSchedule
	}

	return &App{
		cfgm:           cfgm,
		log:            log,
		logs:           logSvc,
		store:          store,
		adapter:        adapter,
		router:         router,
		resolver:       resolver,
		gate:           gate,
		registry:       registry,
		pusher:         pusher,
		otp:            otpSvc,
		alerts:         alerts,
		engine:         eng,
		pinned:         pin,
		auth:           deps.Auth,
		cron:           cron.New(),
		pinnedEnabled:  cfg.Pinned.Enabled,
		pinnedSchedule: schedule,
		updates:        make(chan botchan.Update, 256),
	}, nil
}

// Engine exposes the notification entry points to the embedding host.
func (a *App) Engine() *engine.Service { return a.engine }

// Tokens exposes device token registration to the embedding host.
func (a *App) Tokens() *tokens.Registry { return a.registry }

// Prefs exposes preference resolution and seeding.
func (a *App) Prefs() *prefs.Resolver { return a.resolver }

// Mutes exposes the mute gate for chat mute toggles.
func (a *App) Mutes() *visibility.Gate { return a.gate }

// Alerts exposes the throttled critical-alert reporter.
func (a *App) Alerts() *alert.Reporter { return a.alerts }

// VerifyLogin checks a submitted OTP code. On success the telegram
// identity is linked through the host authenticator (when configured) and
// the confirmed identity is returned.
func (a *App) VerifyLogin(ctx context.Context, code string) (int64, bool, error) {
	telegramID, ok, err := a.otp.Verify(ctx, code)
	if err != nil || !ok {
		return 0, false, err
	}
	if a.auth != nil {
		if err := a.auth.Link(ctx, telegramID); err != nil {
			return 0, false, err
		}
	}
	return telegramID, true, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return cfg.Validate()
	})

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()

	if _, err := a.cron.AddFunc("@every 1m", func() { a.otp.Sweep(runCtx) }); err != nil {
		cancel()
		return err
	}
	if a.pinnedEnabled {
		if _, err := a.cron.AddFunc(a.pinnedSchedule, func() { a.pinned.Refresh(runCtx) }); err != nil {
			cancel()
			return fmt.Errorf("pinned.schedule: %w", err)
		}
	}
	a.cron.Start()

	// Hot reload applies logging changes only; credentials and storage are
	// start-time decisions.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
				a.log.Info("config reloaded")
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()

	a.notifyReady(runCtx)

	a.log.Info("app started")
	return nil
}

// notifyReady signals systemd readiness and keeps the watchdog fed when
// one is configured. No-ops outside a systemd unit.
func (a *App) notifyReady(ctx context.Context) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify unavailable", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.log.Info("stopping")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.cancel()

	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("stop deadline reached; leaving goroutines behind")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close", logx.Err(err))
	}

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
