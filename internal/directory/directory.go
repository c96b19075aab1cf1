// Package directory provides a file-backed domain.Reader for standalone
// deployments. The roster file is a YAML snapshot of recipients, localities
// and games; embedding applications supply their own Reader instead and
// never load this package.
package directory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"teamup/internal/domain"
	logx "teamup/pkg/logx"

	yaml "go.yaml.in/yaml/v3"
)

type rosterFile struct {
	Recipients []recipientEntry `yaml:"recipients"`
	Localities []localityEntry  `yaml:"localities"`
	Games      []gameEntry      `yaml:"games"`
}

type recipientEntry struct {
	ID         int64        `yaml:"id"`
	TelegramID int64        `yaml:"telegram_id"`
	Language   string       `yaml:"language"`
	LocalityID int64        `yaml:"locality_id"`
	Operator   bool         `yaml:"operator"`
	Legacy     *legacyFlags `yaml:"legacy_prefs"`
}

type legacyFlags struct {
	Invites        bool `yaml:"invites"`
	DirectMessages bool `yaml:"direct_messages"`
	Reminders      bool `yaml:"reminders"`
	Wallet         bool `yaml:"wallet"`
	Generic        bool `yaml:"generic"`
}

type localityEntry struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
	ChatID   int64  `yaml:"chat_id"`
}

type gameEntry struct {
	ID           int64              `yaml:"id"`
	Title        string             `yaml:"title"`
	Status       string             `yaml:"status"`
	ParentID     int64              `yaml:"parent_id"`
	LocalityID   int64              `yaml:"locality_id"`
	StartsAt     time.Time          `yaml:"starts_at"`
	Participants []participantEntry `yaml:"participants"`
}

type participantEntry struct {
	UserID int64  `yaml:"user_id"`
	Role   string `yaml:"role"`
	Status string `yaml:"status"`
}

// Directory is an immutable-after-Reload snapshot of the roster file.
type Directory struct {
	path string
	log  logx.Logger

	mu         sync.RWMutex
	recipients map[int64]domain.Recipient
	byTelegram map[int64]int64
	localities map[int64]domain.Locality
	games      map[int64]domain.GameView

	now func() time.Time
}

func Load(path string, log logx.Logger) (*Directory, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Directory{path: path, log: log, now: time.Now}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload re-reads the roster file and swaps the snapshot atomically.
func (d *Directory) Reload() error {
	b, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("directory: read %s: %w", d.path, err)
	}
	var f rosterFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("directory: parse %s: %w", d.path, err)
	}

	recipients := make(map[int64]domain.Recipient, len(f.Recipients))
	byTelegram := make(map[int64]int64, len(f.Recipients))
	for _, e := range f.Recipients {
		rec := domain.Recipient{
			ID:         e.ID,
			TelegramID: e.TelegramID,
			Language:   e.Language,
			LocalityID: e.LocalityID,
			Operator:   e.Operator,
		}
		if e.Legacy != nil {
			rec.LegacyFlags = &domain.PreferenceFlags{
				Invites:        e.Legacy.Invites,
				DirectMessages: e.Legacy.DirectMessages,
				Reminders:      e.Legacy.Reminders,
				Wallet:         e.Legacy.Wallet,
				Generic:        e.Legacy.Generic,
			}
		}
		recipients[rec.ID] = rec
		if rec.TelegramID != 0 {
			byTelegram[rec.TelegramID] = rec.ID
		}
	}

	localities := make(map[int64]domain.Locality, len(f.Localities))
	for _, e := range f.Localities {
		localities[e.ID] = domain.Locality{ID: e.ID, Name: e.Name, Timezone: e.Timezone, ChatID: e.ChatID}
	}

	games := make(map[int64]domain.GameView, len(f.Games))
	for _, e := range f.Games {
		g := domain.GameView{
			ID:         e.ID,
			Title:      e.Title,
			Status:     domain.GameStatus(e.Status),
			ParentID:   e.ParentID,
			LocalityID: e.LocalityID,
			StartsAt:   e.StartsAt,
		}
		for _, p := range e.Participants {
			g.Participants = append(g.Participants, domain.ParticipantView{
				UserID: p.UserID,
				Role:   domain.ParticipantRole(p.Role),
				Status: domain.ParticipantStatus(p.Status),
			})
		}
		games[g.ID] = g
	}

	d.mu.Lock()
	d.recipients = recipients
	d.byTelegram = byTelegram
	d.localities = localities
	d.games = games
	d.mu.Unlock()

	d.log.Info("directory loaded",
		logx.Int("recipients", len(recipients)),
		logx.Int("localities", len(localities)),
		logx.Int("games", len(games)))
	return nil
}

func (d *Directory) Recipient(_ context.Context, id int64) (domain.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.recipients[id]
	if !ok {
		return domain.Recipient{}, domain.ErrNotFound
	}
	return rec, nil
}

func (d *Directory) RecipientByTelegram(_ context.Context, telegramID int64) (domain.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byTelegram[telegramID]
	if !ok {
		return domain.Recipient{}, domain.ErrNotFound
	}
	return d.recipients[id], nil
}

func (d *Directory) Game(_ context.Context, id int64) (domain.GameView, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.games[id]
	if !ok {
		return domain.GameView{}, domain.ErrNotFound
	}
	return g, nil
}

func (d *Directory) Locality(_ context.Context, id int64) (domain.Locality, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	loc, ok := d.localities[id]
	if !ok {
		return domain.Locality{}, domain.ErrNotFound
	}
	return loc, nil
}

func (d *Directory) Localities(_ context.Context) ([]domain.Locality, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Locality, 0, len(d.localities))
	for _, loc := range d.localities {
		out = append(out, loc)
	}
	return out, nil
}

func (d *Directory) UpcomingGames(_ context.Context, localityID int64, within time.Duration) ([]domain.GameView, error) {
	now := d.now()
	horizon := now.Add(within)
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.GameView
	for _, g := range d.games {
		if g.LocalityID != localityID {
			continue
		}
		if g.Status != domain.GameAnnounced && g.Status != domain.GameStarted {
			continue
		}
		if g.StartsAt.Before(now) || g.StartsAt.After(horizon) {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (d *Directory) Operators(_ context.Context) ([]domain.Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []domain.Recipient
	for _, rec := range d.recipients {
		if rec.Operator {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (d *Directory) ListingAudience(_ context.Context, l domain.ListingView) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []int64
	for _, rec := range d.recipients {
		if rec.LocalityID == l.LocalityID {
			out = append(out, rec.ID)
		}
	}
	return out, nil
}
