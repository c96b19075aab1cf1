package i18n

import "testing"

func TestTranslateFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, lang string
		want      string
	}{
		{"invite.accept", "de", "Annehmen"},
		{"invite.accept", "en", "Accept"},
		// de table has no entry, falls back to English.
		{"invite.accepted", "de", "%s accepted your invite"},
		// Unknown language falls back to English wholesale.
		{"otp.prompt", "fr", "Your login code, valid for 5 minutes:"},
		// Unknown key comes back verbatim.
		{"no.such.key", "en", "no.such.key"},
		{"no.such.key", "", "no.such.key"},
	}
	for _, tt := range tests {
		if got := Translate(tt.key, tt.lang); got != tt.want {
			t.Fatalf("Translate(%q, %q) = %q, want %q", tt.key, tt.lang, got, tt.want)
		}
	}
}

func TestTranslatef(t *testing.T) {
	t.Parallel()

	if got := Translatef("game.reminder", "de", "Pokalfinale", "18:00"); got != "Pokalfinale beginnt um 18:00" {
		t.Fatalf("Translatef = %q", got)
	}
	// No args means no Sprintf, verbs survive untouched.
	if got := Translatef("chat.message", "en"); got != "New message in %s" {
		t.Fatalf("Translatef without args = %q", got)
	}
}

func TestEveryKeyHasEnglish(t *testing.T) {
	t.Parallel()

	for lang, table := range tables {
		if lang == defaultLang {
			continue
		}
		for key := range table {
			if _, ok := tables[defaultLang][key]; !ok {
				t.Fatalf("key %q exists in %q but not in %q", key, lang, defaultLang)
			}
		}
	}
}
