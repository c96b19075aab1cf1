package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Reader lookups for unknown ids.
var ErrNotFound = errors.New("domain: not found")

// ChatType is the declared audience of a game chat message.
type ChatType string

const (
	ChatPublic  ChatType = "public"
	ChatPrivate ChatType = "private"
	ChatAdmins  ChatType = "admins"
	ChatPhotos  ChatType = "photos"
)

// GameStatus is the lifecycle stage of a game.
type GameStatus string

const (
	GameAnnounced GameStatus = "announced"
	GameStarted   GameStatus = "started"
	GameFinished  GameStatus = "finished"
	GameCanceled  GameStatus = "canceled"
)

// ParticipantRole within a game.
type ParticipantRole string

const (
	RoleOwner  ParticipantRole = "owner"
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// ParticipantStatus within a game.
type ParticipantStatus string

const (
	StatusPlaying ParticipantStatus = "playing"
	StatusInvited ParticipantStatus = "invited"
	StatusDropped ParticipantStatus = "dropped"
)

// ParticipantView is the minimal participant slice the visibility gate needs.
type ParticipantView struct {
	UserID int64
	Role   ParticipantRole
	Status ParticipantStatus
}

// GameView is the engine's read-only slice of a game.
type GameView struct {
	ID           int64
	Title        string
	Status       GameStatus
	ParentID     int64 // hierarchically containing game, 0 if none
	LocalityID   int64
	StartsAt     time.Time
	Participants []ParticipantView
}

// Participant returns the participant row for userID, if any.
func (g GameView) Participant(userID int64) (ParticipantView, bool) {
	for _, p := range g.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return ParticipantView{}, false
}

// IsAdminOrOwner reports whether userID holds an owner/admin role in g.
func (g GameView) IsAdminOrOwner(userID int64) bool {
	p, ok := g.Participant(userID)
	return ok && (p.Role == RoleOwner || p.Role == RoleAdmin)
}

// MessageView is the engine's read-only slice of a chat message.
type MessageView struct {
	ID       int64
	GameID   int64
	ChatType ChatType
	AuthorID int64
	Text     string
	Mentions []int64 // explicit @-mention targets, empty for ambient messages
}

// TransactionView is the wallet slice used by transaction notifications.
type TransactionView struct {
	ID     int64
	UserID int64
	Amount int64 // minor units, negative for debits
	Title  string
}

// BetView is the slice used by bet-outcome notifications.
type BetView struct {
	ID     int64
	UserID int64
	GameID int64
	Won    bool
	Payout int64
}

// ListingView is the marketplace slice used by new-listing notifications.
type ListingView struct {
	ID         int64
	SellerID   int64
	LocalityID int64
	Title      string
	Price      int64
}

// Locality carries the timezone and announcement chat for one locality group.
type Locality struct {
	ID       int64
	Name     string
	Timezone string // IANA name, e.g. "Europe/Berlin"
	ChatID   int64  // bot announcement chat, 0 if none
}

// Reader is the read-only domain API the engine consumes. Implementations
// live in the application's persistence layer; the engine never writes
// domain state through it.
type Reader interface {
	Recipient(ctx context.Context, id int64) (Recipient, error)
	RecipientByTelegram(ctx context.Context, telegramID int64) (Recipient, error)
	Game(ctx context.Context, id int64) (GameView, error)
	Locality(ctx context.Context, id int64) (Locality, error)
	Localities(ctx context.Context) ([]Locality, error)
	UpcomingGames(ctx context.Context, localityID int64, within time.Duration) ([]GameView, error)
	Operators(ctx context.Context) ([]Recipient, error)
	ListingAudience(ctx context.Context, l ListingView) ([]int64, error)
}

// InviteResponder completes invite accept/decline actions triggered from
// bot callbacks. Implemented by the domain layer.
type InviteResponder interface {
	Accept(ctx context.Context, userID, gameID int64) error
	Decline(ctx context.Context, userID, gameID int64) error
}

// Authenticator completes the external OTP handshake once a code is
// verified and bound to a telegram identity.
type Authenticator interface {
	Link(ctx context.Context, telegramID int64) error
}
