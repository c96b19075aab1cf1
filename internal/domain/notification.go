package domain

// NotificationType discriminates domain events on the wire. Client apps
// route taps on the "type" field of the data payload, so values are
// schema-stable.
type NotificationType string

const (
	TypeChatMessage    NotificationType = "chat_message"
	TypeDirectMessage  NotificationType = "direct_message"
	TypeMention        NotificationType = "mention"
	TypeInvite         NotificationType = "invite"
	TypeInviteAccepted NotificationType = "invite_accepted"
	TypeInviteDeclined NotificationType = "invite_declined"
	TypeGameReminder   NotificationType = "game_reminder"
	TypeRoundStarted   NotificationType = "round_started"
	TypeGameFinished   NotificationType = "game_finished"
	TypeBetResolved    NotificationType = "bet_resolved"
	TypeTransaction    NotificationType = "transaction"
	TypeNewListing     NotificationType = "new_listing"
)

// categoryByType maps every notification type to exactly one preference
// category. The mapping must stay total; TestCategoryMappingTotal guards it.
var categoryByType = map[NotificationType]Category{
	TypeChatMessage:    CategoryGeneric,
	TypeDirectMessage:  CategoryDirectMessages,
	TypeMention:        CategoryDirectMessages,
	TypeInvite:         CategoryInvites,
	TypeInviteAccepted: CategoryInvites,
	TypeInviteDeclined: CategoryInvites,
	TypeGameReminder:   CategoryReminders,
	TypeRoundStarted:   CategoryReminders,
	TypeGameFinished:   CategoryGeneric,
	TypeBetResolved:    CategoryWallet,
	TypeTransaction:    CategoryWallet,
	TypeNewListing:     CategoryGeneric,
}

// AllTypes lists every notification type the engine emits.
func AllTypes() []NotificationType {
	out := make([]NotificationType, 0, len(categoryByType))
	for t := range categoryByType {
		out = append(out, t)
	}
	return out
}

// CategoryOf resolves the preference category of a notification type.
// ok is false for types outside the fixed table; callers must treat
// those as disallowed.
func CategoryOf(t NotificationType) (Category, bool) {
	c, ok := categoryByType[t]
	return c, ok
}
