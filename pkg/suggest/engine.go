package suggest

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bastiangx/placeserve/pkg/normalize"
	"github.com/bastiangx/placeserve/pkg/place"
	"github.com/charmbracelet/log"
)

// Query is one suggest request.
type Query struct {
	Text string
	Size int
	// Suggest treats the last token as a prefix. When false every token has to match
	// a whole name token.
	Suggest bool
}

// QueryStats is reported to the Observer after every successful query.
type QueryStats struct {
	Mode    string
	Hits    int
	Fuzzy   bool
	Cached  bool
	Elapsed time.Duration
}

// Observer receives engine events, e.g. to export metrics.
type Observer interface {
	ObserveQuery(s QueryStats)
	ObserveBuild(records, skipped int, elapsed time.Duration)
}

// Options tune fuzzy fallback and caching.
type Options struct {
	// FuzzyMaxDistance caps the edit distance of fuzzy matches. 0 disables fuzzy matching.
	FuzzyMaxDistance int
	// FuzzyMinQueryLen is the shortest last token, in runes, that may go fuzzy.
	FuzzyMinQueryLen int
	// FuzzyMinCandidates triggers the fallback when fewer prefix matches were found.
	// 0 means the requested size.
	FuzzyMinCandidates int
	// FuzzySameFirstRune limits fuzzy matches to tokens sharing the first letter.
	FuzzySameFirstRune bool
	// CacheSize is the number of results kept in the hot cache. 0 disables it.
	CacheSize int
	Observer  Observer
}

// DefaultOptions returns the options used when no config is given.
func DefaultOptions() Options {
	return Options{
		FuzzyMaxDistance:   2,
		FuzzyMinQueryLen:   3,
		FuzzyMinCandidates: 0,
		FuzzySameFirstRune: true,
		CacheSize:          1024,
	}
}

// Engine answers queries against the current snapshot. Readers load the snapshot
// pointer once per query; Publish swaps it without blocking them.
type Engine struct {
	current  atomic.Pointer[Index]
	hotCache *HotCache
	opts     Options
}

// NewEngine returns an engine with no snapshot; Suggest fails with
// ErrIndexUnavailable until Publish or Rebuild succeeds.
func NewEngine(opts Options) *Engine {
	e := &Engine{opts: opts}
	if opts.CacheSize > 0 {
		e.hotCache = NewHotCache(opts.CacheSize)
	}
	return e
}

// Publish makes idx the snapshot served to new queries.
func (e *Engine) Publish(idx *Index) {
	if idx == nil {
		return
	}
	old := e.current.Swap(idx)
	if e.hotCache != nil {
		e.hotCache.Purge()
	}
	if old != nil {
		log.Debugf("Swapped index gen=%d -> gen=%d", old.generation, idx.generation)
	}
}

// Rebuild builds a snapshot from records and publishes it. The returned errors are
// the skipped records.
func (e *Engine) Rebuild(records []place.Record) (*Index, []error) {
	start := time.Now()
	idx, skipped := Build(records)
	e.Publish(idx)
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveBuild(idx.Len(), len(skipped), time.Since(start))
	}
	return idx, skipped
}

// Snapshot returns the current index, nil before the first publish.
func (e *Engine) Snapshot() *Index {
	return e.current.Load()
}

// Suggest returns at most q.Size hits ordered best first.
func (e *Engine) Suggest(q Query) ([]Hit, error) {
	if q.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidArgument, q.Size)
	}
	idx := e.current.Load()
	if idx == nil {
		return nil, ErrIndexUnavailable
	}

	start := time.Now()
	mode := "match"
	if q.Suggest {
		mode = "suggest"
	}

	tokens := normalize.Tokens(q.Text)
	if len(tokens) == 0 {
		e.observe(QueryStats{Mode: mode, Elapsed: time.Since(start)})
		return []Hit{}, nil
	}

	cacheKey := ""
	if e.hotCache != nil {
		cacheKey = cacheKeyFor(idx.generation, mode, q.Size, tokens)
		if hits, ok := e.hotCache.Get(cacheKey); ok {
			e.observe(QueryStats{Mode: mode, Hits: len(hits), Cached: true, Elapsed: time.Since(start)})
			return hits, nil
		}
	}

	cands, fuzzy := e.collect(idx, tokens, q)
	sortCandidates(cands)
	if len(cands) > q.Size {
		cands = cands[:q.Size]
	}
	hits := Format(cands)

	if e.hotCache != nil {
		e.hotCache.Put(cacheKey, hits)
	}
	e.observe(QueryStats{Mode: mode, Hits: len(hits), Fuzzy: fuzzy, Elapsed: time.Since(start)})
	return hits, nil
}

func (e *Engine) observe(s QueryStats) {
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveQuery(s)
	}
}

func cacheKeyFor(gen uint64, mode string, size int, tokens []string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(gen, 10))
	b.WriteByte('|')
	b.WriteString(mode)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(size))
	b.WriteByte('|')
	b.WriteString(strings.Join(tokens, " "))
	return b.String()
}

// collector accumulates candidates for one query.
type collector struct {
	idx      *Index
	front    []string
	queryKey string
	queryLen int
	seen     map[int32]struct{}
	cands    []Candidate
}

func (c *collector) accept(ord int32, kind MatchKind, dist int) {
	if _, ok := c.seen[ord]; ok {
		return
	}
	ent := &c.idx.entries[ord]
	if !ent.hasAll(c.front) {
		return
	}
	c.seen[ord] = struct{}{}
	if kind != MatchFuzzy && ent.key == c.queryKey {
		kind = MatchExact
	}
	c.cands = append(c.cands, Candidate{
		entry:       ent,
		Kind:        kind,
		Distance:    dist,
		LengthDelta: abs(ent.keyLen - c.queryLen),
	})
}

// collect gathers prefix (or whole token) matches and, when they are too few,
// fuzzy matches on the last token. Front tokens always have to match exactly.
func (e *Engine) collect(idx *Index, tokens []string, q Query) ([]Candidate, bool) {
	queryKey := strings.Join(tokens, " ")
	c := &collector{
		idx:      idx,
		front:    tokens[:len(tokens)-1],
		queryKey: queryKey,
		queryLen: normalize.RuneLen(queryKey),
		seen:     make(map[int32]struct{}),
	}
	last := tokens[len(tokens)-1]

	// with front tokens, start from the rarest of them instead of the trie
	var base []int32
	if len(c.front) > 0 {
		for _, tok := range c.front {
			ords := idx.exact(tok)
			if len(ords) == 0 {
				return nil, false
			}
			if base == nil || len(ords) < len(base) {
				base = ords
			}
		}
	}

	matches := func(tok string) bool {
		if q.Suggest {
			return strings.HasPrefix(tok, last)
		}
		return tok == last
	}

	switch {
	case base != nil:
		for _, ord := range base {
			for _, tok := range idx.entries[ord].tokens {
				if matches(tok) {
					c.accept(ord, MatchPrefix, 0)
					break
				}
			}
		}
	case q.Suggest:
		idx.visitPrefix(last, func(_ string, ords []int32) {
			for _, ord := range ords {
				c.accept(ord, MatchPrefix, 0)
			}
		})
	default:
		for _, ord := range idx.exact(last) {
			c.accept(ord, MatchPrefix, 0)
		}
	}

	threshold := e.opts.FuzzyMinCandidates
	if threshold <= 0 {
		threshold = q.Size
	}
	if len(c.cands) >= threshold {
		return c.cands, false
	}

	lastRunes := []rune(last)
	budget := fuzzyBudget(len(lastRunes), e.opts.FuzzyMaxDistance, e.opts.FuzzyMinQueryLen)
	if budget == 0 {
		return c.cands, false
	}

	before := len(c.cands)
	best := make(map[int32]int)
	consider := func(tok string, ords []int32) {
		if matches(tok) {
			return
		}
		if e.opts.FuzzySameFirstRune && !sameFirstRune(tok, last) {
			return
		}
		d := editDistance(lastRunes, []rune(tok), budget, q.Suggest)
		if d > budget {
			return
		}
		for _, ord := range ords {
			if prev, ok := best[ord]; !ok || d < prev {
				best[ord] = d
			}
		}
	}

	if base != nil {
		for _, ord := range base {
			for _, tok := range idx.entries[ord].tokens {
				consider(tok, []int32{ord})
			}
		}
	} else {
		idx.visitFuzzyCandidates(last, e.opts.FuzzySameFirstRune, consider)
	}

	for ord, d := range best {
		c.accept(ord, MatchFuzzy, d)
	}
	return c.cands, len(c.cands) > before
}

func sameFirstRune(a, b string) bool {
	for _, ra := range a {
		for _, rb := range b {
			return ra == rb
		}
		return false
	}
	return false
}

// Stats merges snapshot and cache counters.
func (e *Engine) Stats() map[string]int {
	stats := map[string]int{"ready": 0}
	if idx := e.current.Load(); idx != nil {
		for k, v := range idx.Stats() {
			stats[k] = v
		}
		stats["ready"] = 1
	}
	if e.hotCache != nil {
		for k, v := range e.hotCache.Stats() {
			stats[k] = v
		}
	}
	return stats
}
