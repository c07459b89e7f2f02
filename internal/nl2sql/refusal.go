package nl2sql

import "strings"

var refusalToken = strings.ToLower(RefusalPhrase)

// IsRefusal reports whether candidate text is the model declining to answer.
// Matching is a case-insensitive substring test.
func IsRefusal(candidate string) bool {
	return strings.Contains(strings.ToLower(candidate), refusalToken)
}
