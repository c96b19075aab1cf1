package alert

import "regexp"

// Reports travel to external operator chats, so anything that looks like
// a credential is substituted before sending.
var redactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*\S+`),
	regexp.MustCompile(`(?i)(token|secret|api[-_]?key)\s*[=:]\s*\S+`),
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/-]+=*`),
	regexp.MustCompile(`\b\d{6,}:[A-Za-z0-9_-]{30,}\b`), // telegram bot tokens
}

// Redact replaces credential-shaped substrings with a placeholder.
func Redact(s string) string {
	for _, re := range redactPatterns {
		s = re.ReplaceAllString(s, "[redacted]")
	}
	return s
}
