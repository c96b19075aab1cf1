package engine

import (
	"context"

	"teamup/internal/domain"
	"teamup/internal/visibility"
	logx "teamup/pkg/logx"
)

// Per-event entry points: each computes its recipient set through the
// visibility gate before dispatching, and contains delivery failures.

// ChatMessagePosted fans a game chat message out to every visible,
// unmuted participant, plus parent-game admins. A mute only suppresses
// ambient notifications; explicit mentions still go through.
func (s *Service) ChatMessagePosted(ctx context.Context, msg domain.MessageView) {
	game, err := s.reader.Game(ctx, msg.GameID)
	if err != nil {
		s.log.Warn("game lookup failed", logx.Int64("game", msg.GameID), logx.Err(err))
		return
	}
	var parent *domain.GameView
	if game.ParentID != 0 {
		if pg, err := s.reader.Game(ctx, game.ParentID); err == nil {
			parent = &pg
		}
	}

	candidates := visibility.ChatCandidates(game, parent, msg)

	mutedSkips := 0
	ids := make([]int64, 0, len(candidates))
	byID := make(map[int64]visibility.Candidate, len(candidates))
	for _, c := range candidates {
		if !c.Mentioned && s.gate.IsMuted(ctx, c.UserID, domain.MuteGame, game.ID) {
			mutedSkips++
			continue
		}
		ids = append(ids, c.UserID)
		byID[c.UserID] = c
	}

	pushed, botSent, skipped := s.fanOut(ctx, ids, func(rec domain.Recipient) (domain.Payload, bool) {
		return s.chatPayload(rec, game, msg, byID[rec.ID].Mentioned), true
	})

	s.log.Debug("chat fan-out",
		logx.Int64("game", game.ID),
		logx.Int("candidates", len(candidates)),
		logx.Int("muted", mutedSkips),
		logx.Int("skipped", skipped),
		logx.Int("pushed_devices", pushed),
		logx.Int("bot_sent", botSent))
}

// InviteCreated notifies one invitee with accept/decline actions.
func (s *Service) InviteCreated(ctx context.Context, inviteeID, gameID int64) {
	game, err := s.reader.Game(ctx, gameID)
	if err != nil {
		s.log.Warn("game lookup failed", logx.Int64("game", gameID), logx.Err(err))
		return
	}
	rec, err := s.reader.Recipient(ctx, inviteeID)
	if err != nil {
		return
	}
	s.deliver(ctx, rec, s.invitePayload(ctx, rec, game), Options{})
}

// GameReminder notifies everyone actively playing before the game starts.
func (s *Service) GameReminder(ctx context.Context, gameID int64) {
	s.toPlayers(ctx, gameID, "reminder fan-out", func(rec domain.Recipient, game domain.GameView) (domain.Payload, bool) {
		return s.reminderPayload(ctx, rec, game), true
	})
}

// RoundStarted notifies everyone actively playing in the game.
func (s *Service) RoundStarted(ctx context.Context, gameID int64) {
	s.toPlayers(ctx, gameID, "round fan-out", func(rec domain.Recipient, game domain.GameView) (domain.Payload, bool) {
		return s.roundPayload(rec, game), true
	})
}

// GameFinished notifies every participant, regardless of playing status.
func (s *Service) GameFinished(ctx context.Context, gameID int64) {
	game, err := s.reader.Game(ctx, gameID)
	if err != nil {
		s.log.Warn("game lookup failed", logx.Int64("game", gameID), logx.Err(err))
		return
	}
	ids := make([]int64, 0, len(game.Participants))
	for _, p := range game.Participants {
		ids = append(ids, p.UserID)
	}
	pushed, botSent, skipped := s.fanOut(ctx, ids, func(rec domain.Recipient) (domain.Payload, bool) {
		return s.finishedPayload(rec, game), true
	})
	s.log.Debug("finished fan-out", logx.Int64("game", gameID),
		logx.Int("recipients", len(ids)), logx.Int("skipped", skipped),
		logx.Int("pushed_devices", pushed), logx.Int("bot_sent", botSent))
}

// BetResolved notifies the bettor about the outcome.
func (s *Service) BetResolved(ctx context.Context, bet domain.BetView) {
	game, err := s.reader.Game(ctx, bet.GameID)
	if err != nil {
		s.log.Warn("game lookup failed", logx.Int64("game", bet.GameID), logx.Err(err))
		return
	}
	rec, err := s.reader.Recipient(ctx, bet.UserID)
	if err != nil {
		return
	}
	s.deliver(ctx, rec, s.betPayload(rec, bet, game), Options{})
}

// TransactionPosted notifies the wallet owner.
func (s *Service) TransactionPosted(ctx context.Context, tx domain.TransactionView) {
	rec, err := s.reader.Recipient(ctx, tx.UserID)
	if err != nil {
		return
	}
	s.deliver(ctx, rec, s.transactionPayload(rec, tx), Options{})
}

// ListingPosted notifies the marketplace audience of the listing's
// locality, excluding the seller.
func (s *Service) ListingPosted(ctx context.Context, l domain.ListingView) {
	audience, err := s.reader.ListingAudience(ctx, l)
	if err != nil {
		s.log.Warn("listing audience lookup failed", logx.Int64("listing", l.ID), logx.Err(err))
		return
	}
	ids := audience[:0]
	for _, id := range audience {
		if id != l.SellerID {
			ids = append(ids, id)
		}
	}
	pushed, botSent, skipped := s.fanOut(ctx, ids, func(rec domain.Recipient) (domain.Payload, bool) {
		return s.listingPayload(rec, l), true
	})
	s.log.Debug("listing fan-out", logx.Int64("listing", l.ID),
		logx.Int("recipients", len(ids)), logx.Int("skipped", skipped),
		logx.Int("pushed_devices", pushed), logx.Int("bot_sent", botSent))
}

func (s *Service) toPlayers(ctx context.Context, gameID int64, what string, build func(domain.Recipient, domain.GameView) (domain.Payload, bool)) {
	game, err := s.reader.Game(ctx, gameID)
	if err != nil {
		s.log.Warn("game lookup failed", logx.Int64("game", gameID), logx.Err(err))
		return
	}
	ids := make([]int64, 0, len(game.Participants))
	for _, p := range game.Participants {
		if p.Status == domain.StatusPlaying {
			ids = append(ids, p.UserID)
		}
	}
	pushed, botSent, skipped := s.fanOut(ctx, ids, func(rec domain.Recipient) (domain.Payload, bool) {
		return build(rec, game)
	})
	s.log.Debug(what, logx.Int64("game", gameID),
		logx.Int("recipients", len(ids)), logx.Int("skipped", skipped),
		logx.Int("pushed_devices", pushed), logx.Int("bot_sent", botSent))
}
