// Package storage persists the engine's own state: device push tokens,
// per-channel notification preferences, chat mutes, ephemeral OTP records
// and pinned summary message refs.
//
// Domain entities (games, users, listings) are NOT stored here; the engine
// consumes them read-only through domain.Reader.
package storage
