package w3c

import "strings"

// NormalizeSpace collapses every run of whitespace in s into a single space
// and removes leading and trailing whitespace. It is idempotent and maps the
// empty string to itself.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
