package suggest

import (
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// postingsOf converts a trie item back to its posting list.
func postingsOf(item patricia.Item) []int32 {
	ords, ok := item.([]int32)
	if !ok {
		log.Errorf("Unknown trie item type: %T", item)
		return nil
	}
	return ords
}

// visitPrefix calls fn for every indexed token starting with prefix.
func (idx *Index) visitPrefix(prefix string, fn func(token string, ords []int32)) {
	err := idx.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, item patricia.Item) error {
		fn(string(p), postingsOf(item))
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting trie subtree: %v", err)
	}
}

// exact returns the posting list of token, nil when it is not indexed.
func (idx *Index) exact(token string) []int32 {
	item := idx.trie.Get(patricia.Prefix(token))
	if item == nil {
		return nil
	}
	return postingsOf(item)
}

// visitFuzzyCandidates walks the tokens a fuzzy lookup of query may consider.
// With sameFirstRune only the subtree sharing the query's first rune is visited.
func (idx *Index) visitFuzzyCandidates(query string, sameFirstRune bool, fn func(token string, ords []int32)) {
	if sameFirstRune {
		_, size := utf8.DecodeRuneInString(query)
		idx.visitPrefix(query[:size], fn)
		return
	}
	err := idx.trie.Visit(func(p patricia.Prefix, item patricia.Item) error {
		fn(string(p), postingsOf(item))
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting trie: %v", err)
	}
}
