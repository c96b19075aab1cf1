// Package prefs answers whether a notification category is allowed for a
// user on a given channel.
//
// Availability comes first: a channel with no devices (push) or no linked
// telegram identity (bot) is never allowed, regardless of stored flags.
// After that the per-channel preference row wins, then the migration-era
// legacy flat flags, then a hard-coded allow-all default.
package prefs

import (
	"context"

	"teamup/internal/domain"
	"teamup/internal/storage"
	logx "teamup/pkg/logx"
)

type Resolver struct {
	store  storage.Store
	reader domain.Reader
	log    logx.Logger
}

func NewResolver(store storage.Store, reader domain.Reader, log logx.Logger) *Resolver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{store: store, reader: reader, log: log}
}

// Allows reports whether the category may be delivered to userID over ch.
// Unknown users and lookup failures fail closed.
func (r *Resolver) Allows(ctx context.Context, userID int64, ch domain.Channel, cat domain.Category) bool {
	rec, err := r.reader.Recipient(ctx, userID)
	if err != nil {
		return false
	}
	return r.allowsFor(ctx, rec, ch, cat)
}

// AllowsFor is Allows with an already-fetched recipient snapshot, used by
// the engine to avoid a second domain read per channel.
func (r *Resolver) AllowsFor(ctx context.Context, rec domain.Recipient, ch domain.Channel, cat domain.Category) bool {
	return r.allowsFor(ctx, rec, ch, cat)
}

func (r *Resolver) allowsFor(ctx context.Context, rec domain.Recipient, ch domain.Channel, cat domain.Category) bool {
	avail, err := r.available(ctx, rec, ch)
	if err != nil || !avail {
		return false
	}

	flags, ok, err := r.store.GetPreference(ctx, rec.ID, ch)
	if err != nil {
		r.log.Warn("preference lookup failed", logx.Int64("user", rec.ID), logx.Err(err))
		return false
	}
	if ok {
		return flags.Allows(cat)
	}
	if rec.LegacyFlags != nil {
		return rec.LegacyFlags.Allows(cat)
	}
	return domain.AllowAll().Allows(cat)
}

func (r *Resolver) available(ctx context.Context, rec domain.Recipient, ch domain.Channel) (bool, error) {
	switch ch {
	case domain.ChannelPush:
		n, err := r.store.CountTokens(ctx, rec.ID)
		if err != nil {
			return false, err
		}
		return n > 0, nil
	case domain.ChannelBot:
		return rec.TelegramID != 0, nil
	default:
		return false, nil
	}
}

// EnsureDefault lazily creates the preference row when ch first becomes
// available. The row is seeded from the richest profile among the user's
// other channels (to approximate prior intent), then from legacy flags,
// then from the allow-all default. Existing rows are left untouched.
func (r *Resolver) EnsureDefault(ctx context.Context, userID int64, ch domain.Channel) error {
	_, ok, err := r.store.GetPreference(ctx, userID, ch)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	seed := domain.AllowAll()
	if rec, err := r.reader.Recipient(ctx, userID); err == nil && rec.LegacyFlags != nil {
		seed = *rec.LegacyFlags
	}
	best := -1
	for _, other := range []domain.Channel{domain.ChannelPush, domain.ChannelBot} {
		if other == ch {
			continue
		}
		f, ok, err := r.store.GetPreference(ctx, userID, other)
		if err != nil || !ok {
			continue
		}
		if n := f.EnabledCount(); n > best {
			best = n
			seed = f
		}
	}

	return r.store.PutPreference(ctx, userID, ch, seed)
}
