// Package engine is the notification fan-out entry point: it decides per
// recipient which channels may carry an event, builds one channel-
// agnostic payload, and dispatches push and bot delivery in parallel.
package engine

import (
	"context"
	"sync"

	"teamup/internal/botchan"
	"teamup/internal/domain"
	"teamup/internal/locality"
	"teamup/internal/prefs"
	"teamup/internal/visibility"
	logx "teamup/pkg/logx"
	"teamup/pkg/botui"
)

// PushSender is the push delivery engine surface the fan-out needs.
type PushSender interface {
	SendToUser(ctx context.Context, userID int64, p domain.Payload) int
}

// Options tweak a single Notify call.
type Options struct {
	// PreferChannel restricts delivery to one channel when set.
	PreferChannel domain.Channel
}

// Delivery summarizes where one notification ended up.
type Delivery struct {
	PushDevices int
	Bot         bool
}

type Service struct {
	reader   domain.Reader
	prefs    *prefs.Resolver
	gate     *visibility.Gate
	push     PushSender
	msgr     botchan.Messenger
	locality *locality.Cache
	log      logx.Logger
}

func New(reader domain.Reader, prefs *prefs.Resolver, gate *visibility.Gate, push PushSender, msgr botchan.Messenger, loc *locality.Cache, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{reader: reader, prefs: prefs, gate: gate, push: push, msgr: msgr, locality: loc, log: log}
}

// Notify dispatches one payload to one recipient across the allowed
// channels. Delivery failures are contained: the result is a summary,
// never an error that would block the triggering domain action.
func (s *Service) Notify(ctx context.Context, recipientID int64, p domain.Payload, opts Options) Delivery {
	rec, err := s.reader.Recipient(ctx, recipientID)
	if err != nil {
		// Unknown recipient: disallow all, fail closed.
		return Delivery{}
	}
	return s.deliver(ctx, rec, p, opts)
}

func (s *Service) deliver(ctx context.Context, rec domain.Recipient, p domain.Payload, opts Options) Delivery {
	cat, ok := domain.CategoryOf(p.Type)
	if !ok {
		s.log.Error("notification type has no category", logx.String("type", string(p.Type)))
		return Delivery{}
	}

	wantPush := opts.PreferChannel == "" || opts.PreferChannel == domain.ChannelPush
	wantBot := opts.PreferChannel == "" || opts.PreferChannel == domain.ChannelBot

	var (
		wg  sync.WaitGroup
		out Delivery
		mu  sync.Mutex
	)

	if wantPush && s.prefs.AllowsFor(ctx, rec, domain.ChannelPush, cat) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := s.push.SendToUser(ctx, rec.ID, p)
			mu.Lock()
			out.PushDevices = n
			mu.Unlock()
		}()
	}

	if wantBot && s.prefs.AllowsFor(ctx, rec, domain.ChannelBot, cat) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.sendBot(ctx, rec, p); err != nil {
				s.log.Debug("bot delivery failed", logx.Int64("user", rec.ID), logx.Err(err))
				return
			}
			mu.Lock()
			out.Bot = true
			mu.Unlock()
		}()
	}

	wg.Wait()
	return out
}

func (s *Service) sendBot(ctx context.Context, rec domain.Recipient, p domain.Payload) error {
	text := botui.B(p.Title)
	if p.Body != "" {
		text += "\n" + botui.Esc(botui.TruncRunes(p.Body, 500))
	}

	var rows [][]botchan.Button
	if len(p.Actions) > 0 {
		row := make([]botchan.Button, 0, len(p.Actions))
		for _, a := range p.Actions {
			row = append(row, botchan.Button{Label: a.Label, Data: a.Data})
		}
		rows = append(rows, row)
	}

	_, err := s.msgr.Send(ctx, rec.TelegramID, text, rows)
	return err
}

// fanOut delivers a per-recipient payload to a set of user ids
// concurrently and returns aggregate counts for the summary log. Order
// across recipients is unspecified.
func (s *Service) fanOut(ctx context.Context, ids []int64, build func(rec domain.Recipient) (domain.Payload, bool)) (pushed, botSent, skipped int) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			rec, err := s.reader.Recipient(ctx, id)
			if err != nil {
				mu.Lock()
				skipped++
				mu.Unlock()
				return
			}
			p, ok := build(rec)
			if !ok {
				mu.Lock()
				skipped++
				mu.Unlock()
				return
			}
			d := s.deliver(ctx, rec, p, Options{})
			mu.Lock()
			pushed += d.PushDevices
			if d.Bot {
				botSent++
			}
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return pushed, botSent, skipped
}
