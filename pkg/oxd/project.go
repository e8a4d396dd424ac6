package oxd

import (
	"strings"
	"unicode"
)

// sanitizeName drops symbols from a display name and collapses whitespace.
func sanitizeName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, name)
	return strings.Join(strings.Fields(clean), " ")
}

// Slugify lower-cases name and replaces every run of non-alphanumeric
// characters with a single dash.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}
