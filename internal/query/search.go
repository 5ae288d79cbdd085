package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxSearchLen = 100

// Search renders a search clause for a user supplied term. Empty or
// whitespace-only terms yield "".
func Search(term string) string {
	term = NormalizeTerm(term)
	if term == "" {
		return ""
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(term)
	return `search "` + escaped + `";`
}

// NormalizeTerm applies NFC, drops control characters, collapses runs of
// whitespace and truncates to a sane length.
func NormalizeTerm(term string) string {
	term = norm.NFC.String(term)

	var b strings.Builder
	space := false
	for _, r := range term {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	out := []rune(b.String())
	if len(out) > maxSearchLen {
		out = out[:maxSearchLen]
	}
	return strings.TrimSpace(string(out))
}
