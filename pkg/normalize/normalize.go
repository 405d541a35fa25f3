/*
Package normalize turns place names and queries into comparable tokens.

The same function runs over corpus names at index time and over the raw query at
request time, so any query that is a prefix of a name stays a prefix after
normalization:

	Tokens("Dresden")          -> ["dresden"]
	Tokens("dresd")            -> ["dresd"]
	Tokens("Zürich-Altstetten") -> ["zurich", "altstetten"]
	Tokens("  Saint  Étienne ") -> ["saint", "etienne"]

Diacritics are removed by decomposing to NFD and dropping nonspacing marks.
Letters that have no decomposition (ß, æ, ø, ...) are folded through a small table.
Everything that is not a letter or a digit separates tokens.
*/
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// transform chains keep internal state, one per goroutine
var stripPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

// letters without a canonical decomposition
var foldTable = map[rune]string{
	'ß': "ss",
	'æ': "ae",
	'ø': "o",
	'œ': "oe",
	'ł': "l",
	'đ': "d",
	'ð': "d",
	'þ': "th",
	'ı': "i",
}

// StripDiacritics removes combining marks, keeping case.
func StripDiacritics(s string) string {
	t := stripPool.Get().(transform.Transformer)
	defer stripPool.Put(t)

	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokens returns the normalized tokens of raw in order. Empty tokens are never returned.
func Tokens(raw string) []string {
	if raw == "" {
		return nil
	}
	folded := StripDiacritics(raw)

	var tokens []string
	var b strings.Builder
	b.Grow(len(folded))

	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}

	for _, r := range folded {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		r = unicode.ToLower(r)
		if repl, ok := foldTable[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return tokens
}

// Key joins the tokens of raw with single spaces.
func Key(raw string) string {
	return strings.Join(Tokens(raw), " ")
}

// RuneLen counts runes of an already normalized key.
func RuneLen(key string) int {
	n := 0
	for range key {
		n++
	}
	return n
}
