package utils

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ValidateQuery rejects query text the front ends should not pass on: invalid UTF-8,
// control characters and text longer than maxRunes (0 disables the length check).
func ValidateQuery(s string, maxRunes int) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("query is not valid UTF-8")
	}
	if maxRunes > 0 {
		if n := utf8.RuneCountInString(s); n > maxRunes {
			return fmt.Errorf("query is %d characters long, maximum is %d", n, maxRunes)
		}
	}
	if ContainsControl(s) {
		return fmt.Errorf("query contains control characters")
	}
	return nil
}

// ContainsControl checks for control runes other than plain whitespace
func ContainsControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}
