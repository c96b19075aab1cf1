// Package i18n resolves notification strings per recipient language.
// Unresolved keys are returned verbatim so a missing translation never
// breaks delivery.
package i18n

import "fmt"

const defaultLang = "en"

var tables = map[string]map[string]string{
	"en": {
		"chat.message":         "New message in %s",
		"chat.mention":         "You were mentioned in %s",
		"chat.direct":          "New direct message",
		"invite.created":       "You are invited to %s",
		"invite.accept":        "Accept",
		"invite.decline":       "Decline",
		"invite.accepted":      "%s accepted your invite",
		"invite.declined":      "%s declined your invite",
		"game.reminder":        "%s starts at %s",
		"game.finished":        "%s has finished",
		"round.started":        "A new round started in %s",
		"bet.won":              "You won %s on %s",
		"bet.lost":             "You lost your bet on %s",
		"wallet.transaction":   "Wallet update: %s",
		"listing.new":          "New listing: %s",
		"action.show":          "Open",
		"action.reply":         "Reply",
		"otp.prompt":           "Your login code, valid for 5 minutes:",
		"otp.new":              "New code",
		"otp.cooldown":         "Please wait a minute before requesting another code.",
		"otp.invalid":          "Invalid or expired code.",
		"otp.linked":           "Signed in. You can return to the app.",
		"callback.denied":      "This button is not yours.",
		"callback.unknown":     "This button is no longer supported.",
		"callback.unavailable": "This action is not available right now.",
		"pinned.header":        "Today's games",
		"pinned.empty":         "No upcoming games today.",
	},
	"de": {
		"chat.message":   "Neue Nachricht in %s",
		"chat.mention":   "Du wurdest in %s erwähnt",
		"chat.direct":    "Neue Direktnachricht",
		"invite.created": "Du bist zu %s eingeladen",
		"invite.accept":  "Annehmen",
		"invite.decline": "Ablehnen",
		"game.reminder":  "%s beginnt um %s",
		"game.finished":  "%s ist beendet",
		"listing.new":    "Neues Inserat: %s",
		"otp.prompt":     "Dein Login-Code, 5 Minuten gültig:",
		"otp.invalid":    "Ungültiger oder abgelaufener Code.",
	},
}

// Translate resolves key in lang, falling back to English, then to the
// key itself.
func Translate(key, lang string) string {
	if t, ok := tables[lang]; ok {
		if s, ok := t[key]; ok {
			return s
		}
	}
	if s, ok := tables[defaultLang][key]; ok {
		return s
	}
	return key
}

// Translatef is Translate followed by Sprintf when args are given.
func Translatef(key, lang string, args ...any) string {
	s := Translate(key, lang)
	if len(args) == 0 {
		return s
	}
	return fmt.Sprintf(s, args...)
}
