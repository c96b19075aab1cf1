package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "teamup/pkg/logx"
)

const (
	debounceDelay   = 250 * time.Millisecond
	watchBackoffMin = 250 * time.Millisecond
	watchBackoffMax = 5 * time.Second
)

// Manager owns the config lifecycle: strict parsing, the committed
// snapshot, change subscriptions, and the fsnotify watch that keeps the
// snapshot current while the process runs.
type Manager struct {
	path string

	mu       sync.RWMutex
	cur      *Config
	lastHash uint64 // content hash of the committed snapshot

	// subsMu guards the subscriber list; publish sends under it so a
	// channel is never written after Unsubscribe closed it.
	subsMu sync.Mutex
	subs   []chan *Config

	log       logx.Logger
	validator func(ctx context.Context, cfg *Config) error
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop()}
}

func (m *Manager) SetLogger(log logx.Logger) {
	if log.IsZero() {
		log = logx.Nop()
	}
	m.log = log
}

// SetValidator installs the check Watch runs before committing a reload.
// A config the validator rejects is dropped; the prior snapshot stays.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validator = fn
}

// Parse reads and strictly decodes the file without committing it. YAML
// files are funneled through the same DisallowUnknownFields decode as
// JSON, so a typoed key fails loudly in either format.
func (m *Manager) Parse() (*Config, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(m.path, raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	switch err := dec.Decode(&struct{}{}); err {
	case io.EOF:
	case nil:
		return nil, fmt.Errorf("invalid config: trailing data")
	default:
		return nil, err
	}
	return &cfg, nil
}

// Commit makes cfg the current snapshot.
func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cur = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

// Load is Parse followed by Commit.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

// Get returns the committed snapshot, nil before the first Load.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

// Subscribe registers a buffered channel that receives every committed
// reload. Callers must Unsubscribe before discarding the channel.
func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (m *Manager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s != ch {
			continue
		}
		m.subs[i] = m.subs[len(m.subs)-1]
		m.subs = m.subs[:len(m.subs)-1]
		close(ch)
		return
	}
}

// publish pushes cfg to every subscriber without blocking the watch
// loop. A full buffer loses its oldest entry first, so a slow subscriber
// always ends up with the newest snapshot.
func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		if ch == nil {
			continue
		}
		select {
		case ch <- cfg:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			m.log.Debug("config update dropped", logx.Int("queue_cap", cap(ch)))
		}
	}
}

// reload backs the watch loop: parse, skip when content is unchanged,
// validate, then commit and publish.
func (m *Manager) reload(ctx context.Context) {
	cfg, err := m.Parse()
	if err != nil {
		m.log.Warn("config parse failed", logx.String("path", m.path), logx.Err(err))
		return
	}

	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		m.log.Debug("config unchanged, skipping publish", logx.String("path", m.path))
		return
	}

	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.validator(vctx, cfg)
		cancel()
		if err != nil {
			m.log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
			return
		}
	}

	m.Commit(cfg)
	m.publish(cfg)
	m.log.Info("config reloaded", logx.String("path", m.path))
}

// Watch blocks until ctx is done, reloading on file changes. Events are
// debounced so editors that save in several writes trigger one reload. A
// watcher that breaks is recreated with jittered exponential backoff.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	backoff := watchBackoffMin

	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			m.log.Warn("config watch setup failed", logx.String("dir", dir), logx.Err(err))
			if !sleepCtx(ctx, nextBackoff(rng, &backoff)) {
				return nil
			}
			continue
		}

		backoff = watchBackoffMin
		m.log.Debug("config watcher started", logx.String("path", m.path))
		m.watchEvents(ctx, w, file)
		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}

		wait := nextBackoff(rng, &backoff)
		m.log.Warn("config watcher stopped, restarting",
			logx.String("path", m.path), logx.Duration("backoff", wait))
		if !sleepCtx(ctx, wait) {
			return nil
		}
	}
	return nil
}

// watchEvents consumes watcher channels until the watcher breaks or ctx
// is done.
func (m *Manager) watchEvents(ctx context.Context, w *fsnotify.Watcher, file string) {
	debounce := time.NewTimer(debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()
	armed := false

	arm := func() {
		if armed && !debounce.Stop() {
			<-debounce.C
		}
		debounce.Reset(debounceDelay)
		armed = true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-debounce.C:
			armed = false
			m.reload(ctx)
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			// Match by basename: editors and deploy tooling report the
			// event path in whatever form they opened it with.
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			// Rename/remove cover atomic-save editors, chmod covers
			// copy-into-place deploys.
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) == 0 {
				continue
			}
			arm()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			msg := strings.ToLower(err.Error())
			if strings.Contains(msg, "overflow") {
				// Events were dropped; reload once rather than trust
				// the stream.
				m.log.Warn("config watch overflow, forcing reload", logx.Err(err))
				arm()
				continue
			}
			m.log.Warn("config watch error", logx.Err(err))
			if strings.Contains(msg, "closed") {
				return
			}
		}
	}
}

func nextBackoff(rng *rand.Rand, backoff *time.Duration) time.Duration {
	wait := *backoff + time.Duration(rng.Int63n(int64(*backoff/2)+1))
	if *backoff < watchBackoffMax {
		*backoff *= 2
		if *backoff > watchBackoffMax {
			*backoff = watchBackoffMax
		}
	}
	return wait
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
