package domain

import "strings"

// =============================================================================
// Project Names
// =============================================================================

// Slugify reduces a name to the form accepted for project identifiers:
// lowercase letters, digits, and hyphens. Uppercase letters are lowered,
// spaces become hyphens, everything else is dropped. Project identifiers
// end up in ownership labels and container names, so they must stay within
// the character set every runtime accepts.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// IsSlug reports whether name is already in slug form and non-empty.
func IsSlug(name string) bool {
	return name != "" && Slugify(name) == name
}
