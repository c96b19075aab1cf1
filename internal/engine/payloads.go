package engine

import (
	"context"
	"strconv"

	"teamup/internal/botchan"
	"teamup/internal/domain"
	"teamup/internal/i18n"
)

// One payload builder per event type, consumed unchanged by both the
// push and the bot delivery paths. Keeping a single builder per event
// prevents channel drift.

func (s *Service) chatPayload(rec domain.Recipient, game domain.GameView, msg domain.MessageView, mentioned bool) domain.Payload {
	lang := rec.Language
	typ := domain.TypeChatMessage
	title := i18n.Translatef("chat.message", lang, game.Title)
	if mentioned {
		typ = domain.TypeMention
		title = i18n.Translatef("chat.mention", lang, game.Title)
	}
	return domain.Payload{
		Type:  typ,
		Title: title,
		Body:  msg.Text,
		Data: map[string]string{
			"game_id":    strconv.FormatInt(game.ID, 10),
			"message_id": strconv.FormatInt(msg.ID, 10),
		},
		Actions: []domain.Action{
			action(i18n.Translate("action.reply", lang), botchan.ReplyPrompt{GameID: game.ID}),
			action(i18n.Translate("action.show", lang), botchan.ShowEntity{Kind: "game", ID: game.ID}),
		},
		Sound: "default",
	}
}

func (s *Service) invitePayload(ctx context.Context, rec domain.Recipient, game domain.GameView) domain.Payload {
	lang := rec.Language
	return domain.Payload{
		Type:  domain.TypeInvite,
		Title: i18n.Translatef("invite.created", lang, game.Title),
		Body:  i18n.Translatef("game.reminder", lang, game.Title, s.locality.TimeLabel(ctx, game.LocalityID, game.StartsAt)),
		Data:  map[string]string{"game_id": strconv.FormatInt(game.ID, 10)},
		Actions: []domain.Action{
			action(i18n.Translate("invite.accept", lang), botchan.InviteAccept{GameID: game.ID}),
			action(i18n.Translate("invite.decline", lang), botchan.InviteDecline{GameID: game.ID}),
		},
		Sound: "default",
	}
}

func (s *Service) reminderPayload(ctx context.Context, rec domain.Recipient, game domain.GameView) domain.Payload {
	lang := rec.Language
	return domain.Payload{
		Type:  domain.TypeGameReminder,
		Title: i18n.Translatef("game.reminder", lang, game.Title, s.locality.TimeLabel(ctx, game.LocalityID, game.StartsAt)),
		Data:  map[string]string{"game_id": strconv.FormatInt(game.ID, 10)},
		Actions: []domain.Action{
			action(i18n.Translate("action.show", lang), botchan.ShowEntity{Kind: "game", ID: game.ID}),
		},
		Sound: "default",
	}
}

func (s *Service) roundPayload(rec domain.Recipient, game domain.GameView) domain.Payload {
	lang := rec.Language
	return domain.Payload{
		Type:  domain.TypeRoundStarted,
		Title: i18n.Translatef("round.started", lang, game.Title),
		Data:  map[string]string{"game_id": strconv.FormatInt(game.ID, 10)},
		Sound: "default",
	}
}

func (s *Service) finishedPayload(rec domain.Recipient, game domain.GameView) domain.Payload {
	lang := rec.Language
	return domain.Payload{
		Type:  domain.TypeGameFinished,
		Title: i18n.Translatef("game.finished", lang, game.Title),
		Data:  map[string]string{"game_id": strconv.FormatInt(game.ID, 10)},
		Actions: []domain.Action{
			action(i18n.Translate("action.show", lang), botchan.ShowEntity{Kind: "game", ID: game.ID}),
		},
	}
}

func (s *Service) betPayload(rec domain.Recipient, bet domain.BetView, game domain.GameView) domain.Payload {
	lang := rec.Language
	title := i18n.Translatef("bet.lost", lang, game.Title)
	if bet.Won {
		title = i18n.Translatef("bet.won", lang, formatAmount(bet.Payout), game.Title)
	}
	return domain.Payload{
		Type:  domain.TypeBetResolved,
		Title: title,
		Data: map[string]string{
			"bet_id":  strconv.FormatInt(bet.ID, 10),
			"game_id": strconv.FormatInt(bet.GameID, 10),
		},
	}
}

func (s *Service) transactionPayload(rec domain.Recipient, tx domain.TransactionView) domain.Payload {
	lang := rec.Language
	return domain.Payload{
		Type:  domain.TypeTransaction,
		Title: i18n.Translatef("wallet.transaction", lang, tx.Title),
		Body:  formatAmount(tx.Amount),
		Data:  map[string]string{"transaction_id": strconv.FormatInt(tx.ID, 10)},
	}
}

func (s *Service) listingPayload(rec domain.Recipient, l domain.ListingView) domain.Payload {
	lang := rec.Language
	return domain.Payload{
		Type:  domain.TypeNewListing,
		Title: i18n.Translatef("listing.new", lang, l.Title),
		Body:  formatAmount(l.Price),
		Data:  map[string]string{"listing_id": strconv.FormatInt(l.ID, 10)},
		Actions: []domain.Action{
			action(i18n.Translate("action.show", lang), botchan.ShowEntity{Kind: "listing", ID: l.ID}),
		},
	}
}

func action(label string, a botchan.Action) domain.Action {
	data, err := botchan.EncodeAction(a)
	if err != nil {
		return domain.Action{Label: label}
	}
	return domain.Action{Label: label, Data: data}
}

func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return sign + strconv.FormatInt(minor/100, 10) + "." + pad2(minor%100)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
