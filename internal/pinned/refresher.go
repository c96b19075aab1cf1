// Package pinned maintains one pinned summary message per locality chat,
// listing today's upcoming games. The message is edited in place; when
// the stored ref is gone (message deleted, chat migrated), the refresher
// falls back to send-and-pin and stores the new ref.
package pinned

import (
	"context"
	"strings"
	"time"

	"teamup/internal/botchan"
	"teamup/internal/domain"
	"teamup/internal/i18n"
	"teamup/internal/locality"
	"teamup/internal/storage"
	logx "teamup/pkg/logx"
	"teamup/pkg/botui"
)

const lookahead = 24 * time.Hour

type Refresher struct {
	reader   domain.Reader
	store    storage.Store
	msgr     botchan.Messenger
	locality *locality.Cache
	log      logx.Logger
}

func NewRefresher(reader domain.Reader, store storage.Store, msgr botchan.Messenger, loc *locality.Cache, log logx.Logger) *Refresher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Refresher{reader: reader, store: store, msgr: msgr, locality: loc, log: log}
}

// Refresh updates every locality's pinned summary. Per-locality failures
// are logged and do not stop the sweep.
func (r *Refresher) Refresh(ctx context.Context) {
	locs, err := r.reader.Localities(ctx)
	if err != nil {
		r.log.Warn("locality listing failed", logx.Err(err))
		return
	}
	for _, loc := range locs {
		if loc.ChatID == 0 {
			continue
		}
		if err := r.refreshOne(ctx, loc); err != nil {
			r.log.Warn("pinned refresh failed", logx.Int64("locality", loc.ID), logx.Err(err))
		}
	}
}

func (r *Refresher) refreshOne(ctx context.Context, loc domain.Locality) error {
	games, err := r.reader.UpcomingGames(ctx, loc.ID, lookahead)
	if err != nil {
		return err
	}
	text := r.render(ctx, loc, games)

	ref, ok, err := r.store.GetPinnedRef(ctx, loc.ID)
	if err != nil {
		return err
	}
	if ok {
		err := r.msgr.Edit(ctx, botchan.MessageRef{ChatID: ref.ChatID, MessageID: ref.MessageID}, text, nil)
		if err == nil {
			return nil
		}
		// "message is not modified" and similar edit refusals are fine to
		// retry with a fresh message; anything stateful is logged below.
		r.log.Debug("pinned edit failed, re-sending", logx.Int64("locality", loc.ID), logx.Err(err))
	}

	sent, err := r.msgr.Send(ctx, loc.ChatID, text, nil)
	if err != nil {
		return err
	}
	if err := r.msgr.Pin(ctx, sent); err != nil {
		r.log.Debug("pin failed", logx.Int64("locality", loc.ID), logx.Err(err))
	}
	return r.store.PutPinnedRef(ctx, storage.PinnedRef{
		LocalityID: loc.ID,
		ChatID:     sent.ChatID,
		MessageID:  sent.MessageID,
	})
}

func (r *Refresher) render(ctx context.Context, loc domain.Locality, games []domain.GameView) string {
	var b strings.Builder
	b.WriteString(botui.B(i18n.Translate("pinned.header", "")))
	if len(games) == 0 {
		b.WriteString("\n")
		b.WriteString(botui.Esc(i18n.Translate("pinned.empty", "")))
		return b.String()
	}
	for _, g := range games {
		b.WriteString("\n• ")
		b.WriteString(botui.Esc(botui.TruncRunes(g.Title, 60)))
		b.WriteString(" — ")
		b.WriteString(r.locality.TimeLabel(ctx, loc.ID, g.StartsAt))
	}
	return b.String()
}
