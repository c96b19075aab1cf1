// Package tokens owns the lifecycle of per-device push tokens and the
// coupling between token availability and the push preference row.
package tokens

import (
	"context"
	"errors"
	"strings"

	"teamup/internal/domain"
	"teamup/internal/prefs"
	"teamup/internal/storage"
	logx "teamup/pkg/logx"
)

var (
	// ErrNotFound signals renew callers to fall back to Register.
	ErrNotFound = errors.New("tokens: token not found")
	// ErrInvalid carries a stable reason for the API layer.
	ErrInvalid = errors.New("tokens: invalid registration")
)

type Registry struct {
	store storage.Store
	prefs *prefs.Resolver
	log   logx.Logger
}

func NewRegistry(store storage.Store, prefs *prefs.Resolver, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{store: store, prefs: prefs, log: log}
}

// Register upserts a token by (userID, token). Re-registering the same
// pair updates platform/device metadata instead of duplicating. On
// success the push preference row is created if absent, because the
// channel just became available.
func (r *Registry) Register(ctx context.Context, userID int64, token string, platform domain.Platform, deviceID string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.Join(ErrInvalid, errors.New("empty token"))
	}
	if !domain.KnownPlatform(platform) {
		return errors.Join(ErrInvalid, errors.New("unknown platform "+string(platform)))
	}

	if err := r.store.UpsertToken(ctx, domain.DeviceToken{
		UserID:   userID,
		Token:    token,
		Platform: platform,
		DeviceID: deviceID,
	}); err != nil {
		return err
	}
	if err := r.prefs.EnsureDefault(ctx, userID, domain.ChannelPush); err != nil {
		r.log.Warn("default push preference not created", logx.Int64("user", userID), logx.Err(err))
	}
	return nil
}

// Remove deletes one token. When the user's remaining token count drops
// to zero the push preference row is deleted; a preference must never
// outlive channel availability.
func (r *Registry) Remove(ctx context.Context, userID int64, token string) error {
	if _, err := r.store.DeleteToken(ctx, userID, token); err != nil {
		return err
	}
	return r.cascadeIfEmpty(ctx, userID)
}

// RemoveAll deletes every token of the user and the push preference row.
func (r *Registry) RemoveAll(ctx context.Context, userID int64) error {
	if err := r.store.DeleteUserTokens(ctx, userID); err != nil {
		return err
	}
	return r.cascadeIfEmpty(ctx, userID)
}

// Renew atomically replaces oldToken with newToken, preserving identity
// metadata. Returns ErrNotFound when oldToken is unknown for the user so
// the caller can fall back to Register.
func (r *Registry) Renew(ctx context.Context, userID int64, oldToken, newToken string) error {
	newToken = strings.TrimSpace(newToken)
	if newToken == "" {
		return errors.Join(ErrInvalid, errors.New("empty token"))
	}
	ok, err := r.store.RenewToken(ctx, userID, oldToken, newToken)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Invalidate removes a provider-reported dead token by value alone; the
// provider guarantees token uniqueness across users. The owning user gets
// the same zero-count cascade as an explicit removal.
func (r *Registry) Invalidate(ctx context.Context, token string) error {
	ownerID, found, err := r.store.DeleteTokenValue(ctx, token)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	r.log.Info("dead push token removed", logx.Int64("user", ownerID))
	return r.cascadeIfEmpty(ctx, ownerID)
}

// List returns the user's registered devices.
func (r *Registry) List(ctx context.Context, userID int64) ([]domain.DeviceToken, error) {
	return r.store.TokensByUser(ctx, userID)
}

// cascadeIfEmpty re-reads the count after the mutation; computing it
// before would race a concurrent register and strand a preference row.
func (r *Registry) cascadeIfEmpty(ctx context.Context, userID int64) error {
	n, err := r.store.CountTokens(ctx, userID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return r.store.DeletePreference(ctx, userID, domain.ChannelPush)
}
