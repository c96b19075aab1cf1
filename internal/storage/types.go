package storage

import (
	"context"
	"errors"
	"time"

	"teamup/internal/domain"
)

var (
	ErrDisabled = errors.New("storage disabled")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": in-process store, used by tests and credential-less dev runs
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// OtpRecord is one ephemeral authentication code bound to a telegram
// identity, with back-references to the two conversation messages that
// must be deleted alongside it.
type OtpRecord struct {
	ID              int64
	Code            string
	TelegramID      int64
	ChatID          int64
	PromptMessageID int
	CodeMessageID   int
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// PinnedRef locates the pinned summary message of one locality.
type PinnedRef struct {
	LocalityID int64
	ChatID     int64
	MessageID  int
	UpdatedAt  time.Time
}

// Store is the persistence API used by the engine components.
//
// All mutations are simple keyed upserts/deletes; concurrency control is
// delegated to the backing store. Cascades (last token removed => drop the
// push preference row) are computed by callers from post-mutation counts.
type Store interface {
	// Device tokens, unique per (userID, token).
	UpsertToken(ctx context.Context, t domain.DeviceToken) error
	DeleteToken(ctx context.Context, userID int64, token string) (bool, error)
	DeleteUserTokens(ctx context.Context, userID int64) error
	// DeleteTokenValue removes a token by value alone (provider-reported
	// dead token) and returns the owning user, if the token was known.
	DeleteTokenValue(ctx context.Context, token string) (ownerID int64, found bool, err error)
	RenewToken(ctx context.Context, userID int64, oldToken, newToken string) (bool, error)
	TokensByUser(ctx context.Context, userID int64) ([]domain.DeviceToken, error)
	CountTokens(ctx context.Context, userID int64) (int, error)

	// Channel preferences, one row per (userID, channel).
	GetPreference(ctx context.Context, userID int64, ch domain.Channel) (domain.PreferenceFlags, bool, error)
	PutPreference(ctx context.Context, userID int64, ch domain.Channel, f domain.PreferenceFlags) error
	DeletePreference(ctx context.Context, userID int64, ch domain.Channel) error

	// Mutes, unique per (userID, context, contextID). Put is an upsert,
	// Delete tolerates absence.
	PutMute(ctx context.Context, m domain.Mute) error
	DeleteMute(ctx context.Context, m domain.Mute) error
	IsMuted(ctx context.Context, userID int64, mc domain.MuteContext, contextID int64) (bool, error)

	// OTP records.
	InsertOtp(ctx context.Context, rec OtpRecord) (int64, error)
	OtpByCode(ctx context.Context, code string, now time.Time) (OtpRecord, bool, error)
	OtpByIdentity(ctx context.Context, telegramID int64) ([]OtpRecord, error)
	DeleteOtp(ctx context.Context, id int64) error
	ExpiredOtp(ctx context.Context, now time.Time) ([]OtpRecord, error)

	// Pinned summary message refs.
	GetPinnedRef(ctx context.Context, localityID int64) (PinnedRef, bool, error)
	PutPinnedRef(ctx context.Context, ref PinnedRef) error

	Close() error
}
