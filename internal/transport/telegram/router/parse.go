package router

import (
	"strings"
	"unicode"
)

// parseCommandLine splits "/name@bot rest" into the lowercased name and the
// trimmed rest. ok is false for text that is not a command.
func parseCommandLine(text string) (name, rest string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	word := text[1:]
	if i := strings.IndexFunc(word, unicode.IsSpace); i >= 0 {
		word, rest = word[:i], strings.TrimSpace(word[i:])
	}
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", "", false
	}
	return strings.ToLower(word), rest, true
}

// SplitN splits s into at most n whitespace-separated fields. The last field
// keeps the remainder of s verbatim apart from leading space.
func SplitN(s string, n int) []string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if n <= 0 || s == "" {
		return nil
	}
	out := make([]string, 0, n)
	for len(out) < n-1 {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = strings.TrimLeftFunc(s[i:], unicode.IsSpace)
		if s == "" {
			return out
		}
	}
	return append(out, strings.TrimRightFunc(s, unicode.IsSpace))
}

// sanitizeTelegramCommand converts an alias into a Telegram-safe bot command
// name, restricted to [a-z0-9_]{1,32}.
func sanitizeTelegramCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || unicode.IsSpace(r) || r == '/':
			// separators collapse to one underscore
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}
