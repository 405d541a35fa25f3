package suggest

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bastiangx/placeserve/pkg/normalize"
	"github.com/bastiangx/placeserve/pkg/place"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

var generations atomic.Uint64

// entry is a record plus its normalized form, computed once per build.
type entry struct {
	rec    place.Record
	tokens []string
	key    string
	keyLen int
}

func (e *entry) hasToken(tok string) bool {
	for _, t := range e.tokens {
		if t == tok {
			return true
		}
	}
	return false
}

func (e *entry) hasAll(toks []string) bool {
	for _, tok := range toks {
		if !e.hasToken(tok) {
			return false
		}
	}
	return true
}

// Index is one immutable snapshot. The trie maps every distinct name token to the
// ordinals of the records carrying it, ordinals ascending.
type Index struct {
	trie       *patricia.Trie
	entries    []entry
	tokens     int
	skipped    int
	generation uint64
	builtAt    time.Time
}

// Build normalizes every record and indexes each of its tokens. Records without an ID,
// with a duplicate ID or whose name has no tokens are skipped and reported as
// *IngestionError; they never fail the build.
func Build(records []place.Record) (*Index, []error) {
	idx := &Index{
		trie:    patricia.NewTrie(),
		entries: make([]entry, 0, len(records)),
	}

	var skipped []error
	seen := make(map[string]struct{}, len(records))
	postings := make(map[string][]int32)

	for _, rec := range records {
		if rec.ID == "" {
			skipped = append(skipped, &IngestionError{Reason: fmt.Sprintf("missing id for name %q", rec.Name)})
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			skipped = append(skipped, &IngestionError{RecordID: rec.ID, Reason: "duplicate id"})
			continue
		}
		tokens := dedupeTokens(normalize.Tokens(rec.Name))
		if len(tokens) == 0 {
			skipped = append(skipped, &IngestionError{RecordID: rec.ID, Reason: "name has no searchable tokens"})
			continue
		}
		seen[rec.ID] = struct{}{}

		ord := int32(len(idx.entries))
		key := normalize.Key(rec.Name)
		idx.entries = append(idx.entries, entry{
			rec:    rec,
			tokens: tokens,
			key:    key,
			keyLen: normalize.RuneLen(key),
		})
		for _, tok := range tokens {
			postings[tok] = append(postings[tok], ord)
		}
	}

	for tok, ords := range postings {
		idx.trie.Insert(patricia.Prefix(tok), ords)
	}
	idx.tokens = len(postings)
	idx.skipped = len(skipped)
	idx.generation = generations.Add(1)
	idx.builtAt = time.Now()

	log.Debugf("Built index gen=%d: %d records, %d tokens, %d skipped",
		idx.generation, len(idx.entries), idx.tokens, idx.skipped)
	return idx, skipped
}

// dedupeTokens keeps the first occurrence of each token, preserving order.
func dedupeTokens(tokens []string) []string {
	if len(tokens) < 2 {
		return tokens
	}
	out := tokens[:0:0]
	for i, t := range tokens {
		dup := false
		for _, prev := range tokens[:i] {
			if prev == t {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, t)
		}
	}
	return out
}

// Len is the number of indexed records.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Generation increases with every build in this process.
func (idx *Index) Generation() uint64 {
	return idx.generation
}

// BuiltAt is the time the snapshot finished building.
func (idx *Index) BuiltAt() time.Time {
	return idx.builtAt
}


// Stats reports snapshot counters.
func (idx *Index) Stats() map[string]int {
	return map[string]int{
		"records":    len(idx.entries),
		"tokens":     idx.tokens,
		"skipped":    idx.skipped,
		"generation": int(idx.generation),
	}
}
