// Package normalize cleans user supplied text such as photo names, labels and
// search terms so that equal-looking strings compare equal.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Label returns s in Unicode NFC with null bytes and control characters dropped,
// surrounding space trimmed and inner whitespace runs collapsed to one space.
// Case is preserved: labels are matched exactly.
func Label(s string) string {
	s = sanitizeString(s)
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Labels normalises every entry, dropping empties and duplicates while keeping order.
func Labels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = Label(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ObjectName returns an object name in NFC form. Object names are otherwise
// left untouched since they address bytes in a bucket.
func ObjectName(s string) string {
	return norm.NFC.String(s)
}

// sanitizeString removes null bytes and other control characters, which some
// camera firmware leaves in file names.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 || (unicode.IsControl(r) && !unicode.IsSpace(r)) {
			return -1
		}
		return r
	}, s)
}
