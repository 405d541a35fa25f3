package utils

import (
	"strings"
)

// IDFilter drops records whose ID was already accepted. Not safe for concurrent use.
type IDFilter struct {
	seenIDs map[string]string
}

// NewIDFilter creates an empty filter sized for about n IDs
func NewIDFilter(n int) *IDFilter {
	return &IDFilter{seenIDs: make(map[string]string, n)}
}

// ShouldInclude reports whether id is new and remembers source as its origin.
// Returns false and the first source when id is a duplicate.
func (f *IDFilter) ShouldInclude(id, source string) (bool, string) {
	key := strings.TrimSpace(id)
	if first, seen := f.seenIDs[key]; seen {
		return false, first
	}
	f.seenIDs[key] = source
	return true, ""
}
