package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"teamup/internal/domain"
	logx "teamup/pkg/logx"
)

// runStores runs fn once against the memory store and once against a
// throwaway sqlite file, so both backends honor the same contract.
func runStores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		s, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for sqlite without a path")
	}
}

func TestTokens(t *testing.T) {
	t.Parallel()
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		tok := domain.DeviceToken{UserID: 1, Token: "abc", Platform: domain.PlatformIOS, DeviceID: "d1"}
		if err := s.UpsertToken(ctx, tok); err != nil {
			t.Fatalf("UpsertToken: %v", err)
		}
		// Same (user, token) pair updates metadata instead of duplicating.
		tok.DeviceID = "d2"
		if err := s.UpsertToken(ctx, tok); err != nil {
			t.Fatalf("UpsertToken update: %v", err)
		}
		got, err := s.TokensByUser(ctx, 1)
		if err != nil {
			t.Fatalf("TokensByUser: %v", err)
		}
		if len(got) != 1 || got[0].DeviceID != "d2" {
			t.Fatalf("tokens = %+v, want one token with device d2", got)
		}

		if err := s.UpsertToken(ctx, domain.DeviceToken{UserID: 1, Token: "def", Platform: domain.PlatformAndroid}); err != nil {
			t.Fatalf("UpsertToken second: %v", err)
		}
		if n, err := s.CountTokens(ctx, 1); err != nil || n != 2 {
			t.Fatalf("CountTokens = %d, %v, want 2", n, err)
		}

		// Renew swaps the value in place.
		renewed, err := s.RenewToken(ctx, 1, "abc", "abc2")
		if err != nil || !renewed {
			t.Fatalf("RenewToken = %v, %v", renewed, err)
		}
		if renewed, err := s.RenewToken(ctx, 1, "gone", "x"); err != nil || renewed {
			t.Fatalf("RenewToken of unknown token = %v, %v, want false", renewed, err)
		}

		// Delete by value reports the owner.
		owner, found, err := s.DeleteTokenValue(ctx, "abc2")
		if err != nil || !found || owner != 1 {
			t.Fatalf("DeleteTokenValue = %d, %v, %v", owner, found, err)
		}
		if _, found, err := s.DeleteTokenValue(ctx, "abc2"); err != nil || found {
			t.Fatalf("DeleteTokenValue repeat should not find the token")
		}

		ok, err := s.DeleteToken(ctx, 1, "def")
		if err != nil || !ok {
			t.Fatalf("DeleteToken = %v, %v", ok, err)
		}
		if n, _ := s.CountTokens(ctx, 1); n != 0 {
			t.Fatalf("CountTokens after deletes = %d, want 0", n)
		}

		if err := s.UpsertToken(ctx, domain.DeviceToken{UserID: 2, Token: "t1", Platform: domain.PlatformIOS}); err != nil {
			t.Fatalf("UpsertToken: %v", err)
		}
		if err := s.DeleteUserTokens(ctx, 2); err != nil {
			t.Fatalf("DeleteUserTokens: %v", err)
		}
		if n, _ := s.CountTokens(ctx, 2); n != 0 {
			t.Fatalf("CountTokens after DeleteUserTokens = %d, want 0", n)
		}
	})
}

func TestPreferences(t *testing.T) {
	t.Parallel()
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if _, ok, err := s.GetPreference(ctx, 1, domain.ChannelPush); err != nil || ok {
			t.Fatalf("GetPreference on empty store = ok=%v, err=%v", ok, err)
		}

		f := domain.PreferenceFlags{Invites: true, Reminders: true}
		if err := s.PutPreference(ctx, 1, domain.ChannelPush, f); err != nil {
			t.Fatalf("PutPreference: %v", err)
		}
		got, ok, err := s.GetPreference(ctx, 1, domain.ChannelPush)
		if err != nil || !ok || got != f {
			t.Fatalf("GetPreference = %+v, %v, %v; want stored flags", got, ok, err)
		}

		// Upsert replaces the row.
		f.Wallet = true
		if err := s.PutPreference(ctx, 1, domain.ChannelPush, f); err != nil {
			t.Fatalf("PutPreference update: %v", err)
		}
		got, _, _ = s.GetPreference(ctx, 1, domain.ChannelPush)
		if !got.Wallet {
			t.Fatalf("updated flags not persisted: %+v", got)
		}

		// Channels are independent rows.
		if _, ok, _ := s.GetPreference(ctx, 1, domain.ChannelBot); ok {
			t.Fatalf("bot channel row should not exist")
		}

		if err := s.DeletePreference(ctx, 1, domain.ChannelPush); err != nil {
			t.Fatalf("DeletePreference: %v", err)
		}
		if _, ok, _ := s.GetPreference(ctx, 1, domain.ChannelPush); ok {
			t.Fatalf("row survived DeletePreference")
		}
		// Deleting an absent row is not an error.
		if err := s.DeletePreference(ctx, 1, domain.ChannelPush); err != nil {
			t.Fatalf("DeletePreference repeat: %v", err)
		}
	})
}

func TestMutes(t *testing.T) {
	t.Parallel()
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		m := domain.Mute{UserID: 1, Context: domain.MuteGame, ContextID: 7}
		if muted, err := s.IsMuted(ctx, 1, domain.MuteGame, 7); err != nil || muted {
			t.Fatalf("IsMuted before PutMute = %v, %v", muted, err)
		}
		if err := s.PutMute(ctx, m); err != nil {
			t.Fatalf("PutMute: %v", err)
		}
		// Upsert tolerates repeats.
		if err := s.PutMute(ctx, m); err != nil {
			t.Fatalf("PutMute repeat: %v", err)
		}
		if muted, _ := s.IsMuted(ctx, 1, domain.MuteGame, 7); !muted {
			t.Fatalf("IsMuted = false after PutMute")
		}
		// Distinct context kinds do not collide on the id.
		if muted, _ := s.IsMuted(ctx, 1, domain.MuteUserChat, 7); muted {
			t.Fatalf("mute leaked across context kinds")
		}
		if err := s.DeleteMute(ctx, m); err != nil {
			t.Fatalf("DeleteMute: %v", err)
		}
		if muted, _ := s.IsMuted(ctx, 1, domain.MuteGame, 7); muted {
			t.Fatalf("IsMuted = true after DeleteMute")
		}
		if err := s.DeleteMute(ctx, m); err != nil {
			t.Fatalf("DeleteMute repeat: %v", err)
		}
	})
}

func TestOtpRecords(t *testing.T) {
	t.Parallel()
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

		live := OtpRecord{
			Code: "111111", TelegramID: 10, ChatID: 100,
			PromptMessageID: 1, CodeMessageID: 2,
			CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
		}
		dead := OtpRecord{
			Code: "222222", TelegramID: 11, ChatID: 101,
			CreatedAt: now.Add(-10 * time.Minute), ExpiresAt: now.Add(-5 * time.Minute),
		}
		liveID, err := s.InsertOtp(ctx, live)
		if err != nil {
			t.Fatalf("InsertOtp: %v", err)
		}
		if _, err := s.InsertOtp(ctx, dead); err != nil {
			t.Fatalf("InsertOtp dead: %v", err)
		}

		got, ok, err := s.OtpByCode(ctx, "111111", now)
		if err != nil || !ok {
			t.Fatalf("OtpByCode = %v, %v", ok, err)
		}
		if got.TelegramID != 10 || got.PromptMessageID != 1 || got.CodeMessageID != 2 {
			t.Fatalf("OtpByCode record = %+v", got)
		}
		// Expired codes are invisible to the code lookup.
		if _, ok, _ := s.OtpByCode(ctx, "222222", now); ok {
			t.Fatalf("OtpByCode returned an expired code")
		}

		byID, err := s.OtpByIdentity(ctx, 10)
		if err != nil || len(byID) != 1 {
			t.Fatalf("OtpByIdentity = %d records, %v; want 1", len(byID), err)
		}

		expired, err := s.ExpiredOtp(ctx, now)
		if err != nil || len(expired) != 1 || expired[0].Code != "222222" {
			t.Fatalf("ExpiredOtp = %+v, %v; want the dead record", expired, err)
		}

		if err := s.DeleteOtp(ctx, liveID); err != nil {
			t.Fatalf("DeleteOtp: %v", err)
		}
		if _, ok, _ := s.OtpByCode(ctx, "111111", now); ok {
			t.Fatalf("deleted code still resolvable")
		}
	})
}

func TestPinnedRefs(t *testing.T) {
	t.Parallel()
	runStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if _, ok, err := s.GetPinnedRef(ctx, 1); err != nil || ok {
			t.Fatalf("GetPinnedRef on empty store = %v, %v", ok, err)
		}
		if err := s.PutPinnedRef(ctx, PinnedRef{LocalityID: 1, ChatID: 500, MessageID: 7}); err != nil {
			t.Fatalf("PutPinnedRef: %v", err)
		}
		// One ref per locality; the new message replaces the old.
		if err := s.PutPinnedRef(ctx, PinnedRef{LocalityID: 1, ChatID: 500, MessageID: 8}); err != nil {
			t.Fatalf("PutPinnedRef update: %v", err)
		}
		ref, ok, err := s.GetPinnedRef(ctx, 1)
		if err != nil || !ok {
			t.Fatalf("GetPinnedRef = %v, %v", ok, err)
		}
		if ref.ChatID != 500 || ref.MessageID != 8 {
			t.Fatalf("ref = %+v, want latest message", ref)
		}
	})
}
