// Package botui holds small presentation helpers for the bot channel:
// HTML-safe text assembly, callback-data packing within Telegram's size
// limit, and rune-aware truncation.
package botui

import (
	"errors"
	"html"
	"strings"
	"unicode/utf8"
)

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
// It bounds the full "verb:id[:extra]" string.
const MaxCallbackDataLen = 64

var ErrCallbackDataTooLong = errors.New("botui: callback_data too long")

// Pack formats callback data as "verb:id" or "verb:id:extra". Segments
// must not contain the delimiter; violating segments are rejected, since
// a stray colon would silently shift parsing.
func Pack(verb, id, extra string) (string, error) {
	for _, seg := range []string{verb, id, extra} {
		if strings.Contains(seg, ":") {
			return "", errors.New("botui: callback segment contains delimiter")
		}
	}
	s := verb + ":" + id
	if extra != "" {
		s += ":" + extra
	}
	if len(s) > MaxCallbackDataLen {
		return "", ErrCallbackDataTooLong
	}
	return s, nil
}

// Split is the inverse of Pack: (verb, id, extra). extra is empty for
// two-segment data.
func Split(data string) (verb, id, extra string, err error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 {
		return "", "", "", errors.New("botui: malformed callback data")
	}
	verb, id = parts[0], parts[1]
	if len(parts) == 3 {
		extra = parts[2]
	}
	return verb, id, extra, nil
}

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) string { return html.EscapeString(s) }

// B wraps s in bold tags, escaping the content.
func B(s string) string { return "<b>" + Esc(s) + "</b>" }

// TruncRunes returns s truncated to at most n runes, appending an
// ellipsis when truncated.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	cut := 0
	for i, r := range s {
		count++
		if count == n {
			cut = i + utf8.RuneLen(r)
			continue
		}
		if count > n {
			if cut <= 0 {
				cut = i
			}
			return s[:cut] + "…"
		}
	}
	return s
}
