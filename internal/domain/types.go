package domain

import "time"

// Channel is a delivery transport.
type Channel string

const (
	ChannelPush Channel = "push"
	ChannelBot  Channel = "bot"
)

// Platform identifies the mobile push provider a token belongs to.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// KnownPlatform reports whether p is a platform this engine can deliver to.
func KnownPlatform(p Platform) bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// DeviceToken is one installed app instance of a user.
// Unique per (UserID, Token); re-registering the same pair updates metadata.
type DeviceToken struct {
	UserID    int64
	Token     string
	Platform  Platform
	DeviceID  string
	UpdatedAt time.Time
}

// Category groups notification types sharing one preference flag.
type Category string

const (
	CategoryInvites        Category = "invites"
	CategoryDirectMessages Category = "direct_messages"
	CategoryReminders      Category = "reminders"
	CategoryWallet         Category = "wallet"
	CategoryGeneric        Category = "generic"
)

// PreferenceFlags holds one boolean per category for one (user, channel).
type PreferenceFlags struct {
	Invites        bool
	DirectMessages bool
	Reminders      bool
	Wallet         bool
	Generic        bool
}

// AllowAll is the hard-coded default applied when a user has no stored
// preference row and no legacy flags.
func AllowAll() PreferenceFlags {
	return PreferenceFlags{Invites: true, DirectMessages: true, Reminders: true, Wallet: true, Generic: true}
}

// Allows returns the flag for cat. Unknown categories are denied.
func (f PreferenceFlags) Allows(cat Category) bool {
	switch cat {
	case CategoryInvites:
		return f.Invites
	case CategoryDirectMessages:
		return f.DirectMessages
	case CategoryReminders:
		return f.Reminders
	case CategoryWallet:
		return f.Wallet
	case CategoryGeneric:
		return f.Generic
	default:
		return false
	}
}

// EnabledCount counts set flags. Used to pick the richest profile when
// seeding a newly available channel from the user's other channels.
func (f PreferenceFlags) EnabledCount() int {
	n := 0
	for _, b := range []bool{f.Invites, f.DirectMessages, f.Reminders, f.Wallet, f.Generic} {
		if b {
			n++
		}
	}
	return n
}

// MuteContext is the kind of chat context a mute applies to.
type MuteContext string

const (
	MuteGame     MuteContext = "game"
	MuteUserChat MuteContext = "user_chat"
	MuteBug      MuteContext = "bug"
	MuteGroup    MuteContext = "group"
)

// Mute suppresses ambient notifications from one chat context.
// Unique per (UserID, Context, ContextID).
type Mute struct {
	UserID    int64
	Context   MuteContext
	ContextID int64
}

// Recipient is the engine's read-only snapshot of a user for delivery
// purposes. The domain layer owns the real entity.
type Recipient struct {
	ID         int64
	TelegramID int64 // 0 when no bot identity is linked
	Language   string
	LocalityID int64
	Operator   bool // receives critical-alert reports

	// LegacyFlags is the migration-era flat per-user flag set. Consulted
	// only when no per-channel preference row exists; see prefs.Resolver.
	LegacyFlags *PreferenceFlags
}

// Action is one interactive button attached to a notification.
// Data is the encoded callback token ("verb:id[:extra]").
type Action struct {
	Label string
	Data  string
}

// Payload is the channel-agnostic notification value. It is never
// persisted; built per event and consumed immediately by delivery.
type Payload struct {
	Type    NotificationType
	Title   string
	Body    string
	Data    map[string]string
	Actions []Action
	Sound   string
	Badge   int
}
