// Package visibility is the single source of truth for whether a chat
// participant may see a given message. CanSee is pure (no I/O) so the
// same policy serves push fan-out, bot fan-out and UI rendering alike.
package visibility

import (
	"context"

	"teamup/internal/domain"
	"teamup/internal/storage"
	logx "teamup/pkg/logx"
)

// CanSee decides whether p may see a message of the given chat type in
// game. parentAdmin marks viewers who are admin/owner of a hierarchically
// containing game. Unknown chat types are not visible.
func CanSee(p domain.ParticipantView, game domain.GameView, chat domain.ChatType, parentAdmin bool) bool {
	switch chat {
	case domain.ChatPublic:
		return true
	case domain.ChatPrivate:
		return p.Status == domain.StatusPlaying
	case domain.ChatAdmins:
		return p.Role == domain.RoleOwner || p.Role == domain.RoleAdmin || parentAdmin
	case domain.ChatPhotos:
		return game.Status != domain.GameAnnounced
	default:
		return false
	}
}

// Candidate is one potential notification recipient for a chat message.
type Candidate struct {
	UserID      int64
	Mentioned   bool
	ParentAdmin bool
}

// ChatCandidates computes the recipient set for a game chat message:
// visible participants plus admins/owners of the parent game who are not
// already participants, deduplicated, author excluded. When the message
// carries explicit mentions, only mentioned candidates remain.
func ChatCandidates(game domain.GameView, parent *domain.GameView, msg domain.MessageView) []Candidate {
	mentioned := map[int64]bool{}
	for _, id := range msg.Mentions {
		mentioned[id] = true
	}

	isParentAdmin := func(userID int64) bool {
		return parent != nil && parent.IsAdminOrOwner(userID)
	}

	seen := map[int64]bool{msg.AuthorID: true}
	var out []Candidate

	for _, p := range game.Participants {
		if seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		if !CanSee(p, game, msg.ChatType, isParentAdmin(p.UserID)) {
			continue
		}
		out = append(out, Candidate{UserID: p.UserID, Mentioned: mentioned[p.UserID], ParentAdmin: isParentAdmin(p.UserID)})
	}

	if parent != nil {
		for _, p := range parent.Participants {
			if seen[p.UserID] {
				continue
			}
			if p.Role != domain.RoleOwner && p.Role != domain.RoleAdmin {
				continue
			}
			seen[p.UserID] = true
			// Not a participant of the child game: visibility is judged
			// with the parent-admin flag and no local role/status.
			if !CanSee(domain.ParticipantView{UserID: p.UserID}, game, msg.ChatType, true) {
				continue
			}
			out = append(out, Candidate{UserID: p.UserID, Mentioned: mentioned[p.UserID], ParentAdmin: true})
		}
	}

	if len(msg.Mentions) > 0 {
		kept := out[:0]
		for _, c := range out {
			if c.Mentioned {
				kept = append(kept, c)
			}
		}
		out = kept
	}
	return out
}

// Gate couples the pure visibility policy with mute state.
type Gate struct {
	store storage.Store
	log   logx.Logger
}

func NewGate(store storage.Store, log logx.Logger) *Gate {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gate{store: store, log: log}
}

// IsMuted reports whether userID muted the context. Lookup failures are
// treated as not muted so a storage hiccup never silences a mention-free
// chat wholesale; mutes only suppress ambient noise.
func (g *Gate) IsMuted(ctx context.Context, userID int64, mc domain.MuteContext, contextID int64) bool {
	muted, err := g.store.IsMuted(ctx, userID, mc, contextID)
	if err != nil {
		g.log.Warn("mute lookup failed", logx.Int64("user", userID), logx.Err(err))
		return false
	}
	return muted
}

// Mute records an idempotent mute.
func (g *Gate) Mute(ctx context.Context, m domain.Mute) error {
	return g.store.PutMute(ctx, m)
}

// Unmute removes a mute; absent mutes are not an error.
func (g *Gate) Unmute(ctx context.Context, m domain.Mute) error {
	return g.store.DeleteMute(ctx, m)
}
