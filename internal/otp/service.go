// Package otp implements the ephemeral one-time-code flow binding a
// telegram identity to an authentication attempt.
//
// Invariant: at most one active (non-expired, non-consumed) record exists
// per identity. Issue clears all prior records first, and Verify/expiry
// always remove the consumed record, so the table never accumulates
// stale active rows.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"teamup/internal/botchan"
	"teamup/internal/i18n"
	"teamup/internal/storage"
	logx "teamup/pkg/logx"
)

const (
	codeTTL     = 5 * time.Minute
	issueWindow = 60 * time.Second
	codeDigits  = 6
)

// ErrCooldown rejects an Issue within 60s of the previous one for the
// same identity. It is a "try later" signal, not a failure.
var ErrCooldown = errors.New("otp: code recently issued")

type Service struct {
	store storage.Store
	msgr  botchan.Messenger
	log   logx.Logger
	now   func() time.Time
}

func NewService(store storage.Store, msgr botchan.Messenger, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, msgr: msgr, log: log, now: time.Now}
}

// Issue sends a fresh prompt and code message to chatID and persists the
// record with a 5 minute TTL. All prior records for the identity are
// deleted first, along with their now-stale conversation messages, so at
// most one code is ever active per identity.
func (s *Service) Issue(ctx context.Context, telegramID, chatID int64) error {
	now := s.now()

	prior, err := s.store.OtpByIdentity(ctx, telegramID)
	if err != nil {
		return err
	}
	for _, rec := range prior {
		if now.Sub(rec.CreatedAt) < issueWindow {
			return ErrCooldown
		}
	}
	for _, rec := range prior {
		s.deleteMessages(ctx, rec)
		if err := s.store.DeleteOtp(ctx, rec.ID); err != nil {
			return err
		}
	}

	code, err := randomCode(codeDigits)
	if err != nil {
		return err
	}

	kb := [][]botchan.Button{}
	if data, err := botchan.EncodeAction(botchan.NewCode{}); err == nil {
		kb = append(kb, []botchan.Button{{Label: i18n.Translate("otp.new", ""), Data: data}})
	}

	prompt, err := s.msgr.Send(ctx, chatID, i18n.Translate("otp.prompt", ""), kb)
	if err != nil {
		return err
	}
	codeMsg, err := s.msgr.Send(ctx, chatID, "<code>"+code+"</code>", nil)
	if err != nil {
		// Leave no half-issued state behind: drop the prompt again.
		_ = s.msgr.Delete(ctx, prompt)
		return err
	}

	_, err = s.store.InsertOtp(ctx, storage.OtpRecord{
		Code:            code,
		TelegramID:      telegramID,
		ChatID:          chatID,
		PromptMessageID: prompt.MessageID,
		CodeMessageID:   codeMsg.MessageID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(codeTTL),
	})
	return err
}

// Verify consumes a code. ok=false means wrong or expired code, a valid
// outcome the caller presents as "invalid code", not an error. On success
// the record and both its conversation messages are gone and the bound
// telegram identity is returned for the external handshake.
func (s *Service) Verify(ctx context.Context, code string) (telegramID int64, ok bool, err error) {
	rec, found, err := s.store.OtpByCode(ctx, code, s.now())
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}

	s.deleteMessages(ctx, rec)
	if err := s.store.DeleteOtp(ctx, rec.ID); err != nil {
		return 0, false, err
	}

	_, _ = s.msgr.Send(ctx, rec.ChatID, i18n.Translate("otp.linked", ""), nil)
	return rec.TelegramID, true, nil
}

// Sweep deletes expired records and, best-effort, their conversation
// messages. Message deletion failures are swallowed; the platform's own
// retention self-heals the history eventually.
func (s *Service) Sweep(ctx context.Context) {
	expired, err := s.store.ExpiredOtp(ctx, s.now())
	if err != nil {
		s.log.Warn("otp sweep query failed", logx.Err(err))
		return
	}
	for _, rec := range expired {
		s.deleteMessages(ctx, rec)
		if err := s.store.DeleteOtp(ctx, rec.ID); err != nil {
			s.log.Warn("otp record delete failed", logx.Int64("id", rec.ID), logx.Err(err))
		}
	}
	if len(expired) > 0 {
		s.log.Debug("otp sweep", logx.Int("expired", len(expired)))
	}
}

func (s *Service) deleteMessages(ctx context.Context, rec storage.OtpRecord) {
	for _, id := range []int{rec.PromptMessageID, rec.CodeMessageID} {
		if id == 0 {
			continue
		}
		if err := s.msgr.Delete(ctx, botchan.MessageRef{ChatID: rec.ChatID, MessageID: id}); err != nil {
			s.log.Debug("otp message delete failed", logx.Int("msg", id), logx.Err(err))
		}
	}
}

func randomCode(digits int) (string, error) {
	maxExclusive := big.NewInt(1)
	for i := 0; i < digits; i++ {
		maxExclusive.Mul(maxExclusive, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, maxExclusive)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
