package storage

import (
	"context"
	"sync"
	"time"

	"teamup/internal/domain"
)

// memoryStore is a dependency-free Store used by tests and dev runs.
// Semantics mirror the sqlite driver exactly.
type memoryStore struct {
	mu sync.Mutex

	tokens []domain.DeviceToken
	prefs  map[prefKey]domain.PreferenceFlags
	mutes  map[domain.Mute]struct{}
	otps   map[int64]OtpRecord
	otpSeq int64
	pinned map[int64]PinnedRef
}

type prefKey struct {
	userID  int64
	channel domain.Channel
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memoryStore{
		prefs:  map[prefKey]domain.PreferenceFlags{},
		mutes:  map[domain.Mute]struct{}{},
		otps:   map[int64]OtpRecord{},
		pinned: map[int64]PinnedRef{},
	}
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) UpsertToken(_ context.Context, t domain.DeviceToken) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tokens {
		if s.tokens[i].UserID == t.UserID && s.tokens[i].Token == t.Token {
			s.tokens[i] = t
			return nil
		}
	}
	s.tokens = append(s.tokens, t)
	return nil
}

func (s *memoryStore) DeleteToken(_ context.Context, userID int64, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tokens {
		if s.tokens[i].UserID == userID && s.tokens[i].Token == token {
			s.tokens = append(s.tokens[:i], s.tokens[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) DeleteUserTokens(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.tokens[:0]
	for _, t := range s.tokens {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	s.tokens = kept
	return nil
}

func (s *memoryStore) DeleteTokenValue(_ context.Context, token string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owner int64
	found := false
	kept := s.tokens[:0]
	for _, t := range s.tokens {
		if t.Token == token {
			owner = t.UserID
			found = true
			continue
		}
		kept = append(kept, t)
	}
	s.tokens = kept
	return owner, found, nil
}

func (s *memoryStore) RenewToken(_ context.Context, userID int64, oldToken, newToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tokens {
		if s.tokens[i].UserID == userID && s.tokens[i].Token == oldToken {
			s.tokens[i].Token = newToken
			s.tokens[i].UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) TokensByUser(_ context.Context, userID int64) ([]domain.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DeviceToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memoryStore) CountTokens(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) GetPreference(_ context.Context, userID int64, ch domain.Channel) (domain.PreferenceFlags, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.prefs[prefKey{userID, ch}]
	return f, ok, nil
}

func (s *memoryStore) PutPreference(_ context.Context, userID int64, ch domain.Channel, f domain.PreferenceFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[prefKey{userID, ch}] = f
	return nil
}

func (s *memoryStore) DeletePreference(_ context.Context, userID int64, ch domain.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prefs, prefKey{userID, ch})
	return nil
}

func (s *memoryStore) PutMute(_ context.Context, m domain.Mute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutes[m] = struct{}{}
	return nil
}

func (s *memoryStore) DeleteMute(_ context.Context, m domain.Mute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mutes, m)
	return nil
}

func (s *memoryStore) IsMuted(_ context.Context, userID int64, mc domain.MuteContext, contextID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.mutes[domain.Mute{UserID: userID, Context: mc, ContextID: contextID}]
	return ok, nil
}

func (s *memoryStore) InsertOtp(_ context.Context, rec OtpRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otpSeq++
	rec.ID = s.otpSeq
	s.otps[rec.ID] = rec
	return rec.ID, nil
}

func (s *memoryStore) OtpByCode(_ context.Context, code string, now time.Time) (OtpRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.otps {
		if rec.Code == code && rec.ExpiresAt.After(now) {
			return rec, true, nil
		}
	}
	return OtpRecord{}, false, nil
}

func (s *memoryStore) OtpByIdentity(_ context.Context, telegramID int64) ([]OtpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OtpRecord
	for _, rec := range s.otps {
		if rec.TelegramID == telegramID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memoryStore) DeleteOtp(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otps, id)
	return nil
}

func (s *memoryStore) ExpiredOtp(_ context.Context, now time.Time) ([]OtpRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OtpRecord
	for _, rec := range s.otps {
		if !rec.ExpiresAt.After(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memoryStore) GetPinnedRef(_ context.Context, localityID int64) (PinnedRef, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.pinned[localityID]
	return ref, ok, nil
}

func (s *memoryStore) PutPinnedRef(_ context.Context, ref PinnedRef) error {
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[ref.LocalityID] = ref
	return nil
}
