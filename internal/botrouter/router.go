// Package botrouter consumes inbound bot updates, parses callback
// actions once at the boundary, authorizes them against the acting
// telegram identity, and dispatches to the domain.
package botrouter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"teamup/internal/botchan"
	"teamup/internal/domain"
	"teamup/internal/i18n"
	"teamup/internal/otp"
	logx "teamup/pkg/logx"
)

// CodeIssuer starts the OTP flow for a telegram identity.
type CodeIssuer interface {
	Issue(ctx context.Context, telegramID, chatID int64) error
}

type Router struct {
	msgr    botchan.Messenger
	reader  domain.Reader
	invites domain.InviteResponder
	issuer  CodeIssuer
	log     logx.Logger
}

func New(msgr botchan.Messenger, reader domain.Reader, invites domain.InviteResponder, issuer CodeIssuer, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{msgr: msgr, reader: reader, invites: invites, issuer: issuer, log: log}
}

// Run processes updates until ctx is done or in is closed.
func (r *Router) Run(ctx context.Context, in <-chan botchan.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-in:
			if !ok {
				return
			}
			switch up.Kind {
			case botchan.UpdateCallback:
				if up.Callback != nil {
					r.handleCallback(ctx, *up.Callback)
				}
			case botchan.UpdateMessage:
				if up.Message != nil {
					r.handleMessage(ctx, *up.Message)
				}
			}
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, m botchan.Message) {
	switch strings.TrimSpace(m.Text) {
	case "/login", "/start":
		r.issueCode(ctx, m.ChatID, m.FromID, "")
	}
}

func (r *Router) handleCallback(ctx context.Context, cb botchan.Callback) {
	action, err := botchan.ParseAction(cb.Data)
	if err != nil {
		// Unknown and malformed actions are answered so the button's
		// spinner resolves; they are never silently ignored.
		r.log.Warn("unparseable callback", logx.String("data", cb.Data), logx.Err(err))
		r.answer(ctx, cb, i18n.Translate("callback.unknown", ""))
		return
	}

	// Authorization on every callback, not just on message send: the
	// button must be pressed in the presser's own private chat.
	if cb.ChatID != cb.FromID {
		r.answer(ctx, cb, i18n.Translate("callback.denied", ""))
		return
	}

	// OTP actions run before the recipient lookup; the identity is not
	// linked to a user yet while the flow is in progress.
	if _, ok := action.(botchan.NewCode); ok {
		r.issueCode(ctx, cb.ChatID, cb.FromID, cb.ID)
		return
	}

	rec, err := r.reader.RecipientByTelegram(ctx, cb.FromID)
	if err != nil {
		r.answer(ctx, cb, i18n.Translate("callback.denied", ""))
		return
	}
	lang := rec.Language

	switch v := action.(type) {
	case botchan.InviteAccept:
		if r.invites == nil {
			r.answer(ctx, cb, i18n.Translate("callback.unavailable", lang))
			return
		}
		if err := r.invites.Accept(ctx, rec.ID, v.GameID); err != nil {
			r.log.Warn("invite accept failed", logx.Int64("user", rec.ID), logx.Int64("game", v.GameID), logx.Err(err))
			r.answer(ctx, cb, i18n.Translate("callback.unknown", lang))
			return
		}
		r.answer(ctx, cb, i18n.Translate("invite.accept", lang))
	case botchan.InviteDecline:
		if r.invites == nil {
			r.answer(ctx, cb, i18n.Translate("callback.unavailable", lang))
			return
		}
		if err := r.invites.Decline(ctx, rec.ID, v.GameID); err != nil {
			r.log.Warn("invite decline failed", logx.Int64("user", rec.ID), logx.Int64("game", v.GameID), logx.Err(err))
			r.answer(ctx, cb, i18n.Translate("callback.unknown", lang))
			return
		}
		r.answer(ctx, cb, i18n.Translate("invite.decline", lang))
	case botchan.ShowEntity:
		r.answer(ctx, cb, fmt.Sprintf("teamup://%s/%d", v.Kind, v.ID))
	case botchan.ReplyPrompt:
		r.answer(ctx, cb, fmt.Sprintf("teamup://game/%d/chat", v.GameID))
	default:
		// The action set is closed; reaching this means ParseAction and
		// this switch went out of sync.
		r.log.Error("unhandled action", logx.String("action", fmt.Sprintf("%T", action)))
		r.answer(ctx, cb, i18n.Translate("callback.unknown", lang))
	}
}

func (r *Router) issueCode(ctx context.Context, chatID, telegramID int64, callbackID string) {
	err := r.issuer.Issue(ctx, telegramID, chatID)
	switch {
	case err == nil:
		if callbackID != "" {
			_ = r.msgr.AnswerCallback(ctx, callbackID, "")
		}
	case errors.Is(err, otp.ErrCooldown):
		if callbackID != "" {
			_ = r.msgr.AnswerCallback(ctx, callbackID, i18n.Translate("otp.cooldown", ""))
		} else {
			_, _ = r.msgr.Send(ctx, chatID, i18n.Translate("otp.cooldown", ""), nil)
		}
	default:
		r.log.Warn("code issue failed", logx.Int64("identity", telegramID), logx.Err(err))
	}
}

func (r *Router) answer(ctx context.Context, cb botchan.Callback, text string) {
	if err := r.msgr.AnswerCallback(ctx, cb.ID, text); err != nil {
		r.log.Debug("callback answer failed", logx.Err(err))
	}
}
