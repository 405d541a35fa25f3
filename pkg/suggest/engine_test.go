package suggest

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/placeserve/pkg/place"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords() []place.Record {
	return []place.Record{
		{ID: "1", Name: "Dresden", Type: place.City, Population: 556000},
		{ID: "2", Name: "Dresdner Heide", Type: place.Locality},
		{ID: "3", Name: "Birkenhof", Type: place.Hamlet},
		{ID: "4", Name: "Birkenhain", Type: place.Village},
		{ID: "5", Name: "Berlin", Type: place.City, Population: 3645000},
		{ID: "6", Name: "Zürich", Type: place.City, Population: 421000},
		{ID: "7", Name: "Frankfurt am Main", Type: place.City, Population: 753000},
		{ID: "8", Name: "Frankfurt (Oder)", Type: place.Town, Population: 57000},
		{ID: "10", Name: "Neustadt an der Weinstraße", Type: place.Town, Population: 53000},
		{ID: "11", Name: "Neustadt am Rübenberge", Type: place.Town, Population: 44000},
		{ID: "12", Name: "Neustadt in Holstein", Type: place.Town, Population: 15000},
		{ID: "13", Name: "Neustadt bei Coburg", Type: place.Town, Population: 15800},
		{ID: "14", Name: "Neustadt an der Aisch", Type: place.Town, Population: 12800},
		{ID: "15", Name: "Neustadt (Hessen)", Type: place.Town, Population: 9000},
		{ID: "16", Name: "Neustadt/Wied", Type: place.Village, Population: 6500},
	}
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e := NewEngine(opts)
	_, skipped := e.Rebuild(testRecords())
	require.Empty(t, skipped)
	return e
}

func names(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Name
	}
	return out
}

func TestSuggestExactName(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	hits, err := e.Suggest(Query{Text: "dresden", Size: 10, Suggest: true})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Dresden", hits[0].Name)
	assert.Equal(t, "city", hits[0].Type)
	assert.Equal(t, "exact", hits[0].Match)
	assert.Equal(t, 1, hits[0].Rank)
}

func TestSuggestStrictPrefix(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	hits, err := e.Suggest(Query{Text: "dresd", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dresden", "Dresdner Heide"}, names(hits))
	assert.Equal(t, "prefix", hits[0].Match)
}

// Birkenhof is closer in length to the query and wins before importance is looked at.
func TestSuggestTieOrder(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	for i := 0; i < 5; i++ {
		hits, err := e.Suggest(Query{Text: "birkenh", Size: 2, Suggest: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"Birkenhof", "Birkenhain"}, names(hits))
		assert.Equal(t, []string{"hamlet", "village"}, []string{hits[0].Type, hits[1].Type})
	}
}

func TestSuggestEmptyQuery(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	for _, q := range []string{"", "   ", ",;-"} {
		hits, err := e.Suggest(Query{Text: q, Size: 10, Suggest: true})
		require.NoError(t, err, "query %q", q)
		assert.NotNil(t, hits)
		assert.Empty(t, hits, "query %q", q)
	}
}

func TestSuggestSizeBound(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	hits, err := e.Suggest(Query{Text: "neustadt", Size: 6, Suggest: true})
	require.NoError(t, err)
	assert.Len(t, hits, 6)
	for i, h := range hits {
		assert.Equal(t, i+1, h.Rank)
	}

	hits, err = e.Suggest(Query{Text: "neustadt", Size: 100, Suggest: true})
	require.NoError(t, err)
	assert.Len(t, hits, 7)
}

func TestSuggestInvalidSize(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	for _, size := range []int{0, -1} {
		_, err := e.Suggest(Query{Text: "dresden", Size: size, Suggest: true})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestSuggestIndexUnavailable(t *testing.T) {
	e := NewEngine(DefaultOptions())

	_, err := e.Suggest(Query{Text: "dresden", Size: 10, Suggest: true})
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Equal(t, 0, e.Stats()["ready"])
}

func TestSuggestDiacritics(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	for _, q := range []string{"zurich", "ZÜRICH", "Zür"} {
		hits, err := e.Suggest(Query{Text: q, Size: 1, Suggest: true})
		require.NoError(t, err)
		require.Len(t, hits, 1, "query %q", q)
		assert.Equal(t, "Zürich", hits[0].Name)
	}

	hits, err := e.Suggest(Query{Text: "neustadt an der weinstrasse", Size: 1, Suggest: true})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "exact", hits[0].Match)
}

func TestSuggestMultiWord(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	hits, err := e.Suggest(Query{Text: "frankfurt o", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Frankfurt (Oder)"}, names(hits))

	hits, err = e.Suggest(Query{Text: "main frankf", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Frankfurt am Main"}, names(hits))

	// a front token must match a whole name token
	hits, err = e.Suggest(Query{Text: "frank main", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSuggestImportanceOrder(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	hits, err := e.Suggest(Query{Text: "frankfurt", Size: 10, Suggest: true})
	require.NoError(t, err)
	// length closeness is compared before population
	assert.Equal(t, []string{"Frankfurt (Oder)", "Frankfurt am Main"}, names(hits))
}

func TestSuggestSameNameOrderedByID(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.Rebuild([]place.Record{
		{ID: "b", Name: "Lindenau", Type: place.Hamlet},
		{ID: "a", Name: "Lindenau", Type: place.Hamlet},
		{ID: "c", Name: "Lindenau", Type: place.Village},
	})

	hits, err := e.Suggest(Query{Text: "linden", Size: 10, Suggest: true})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
}

func TestSuggestMatchMode(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	hits, err := e.Suggest(Query{Text: "birken", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = e.Suggest(Query{Text: "birken", Size: 10, Suggest: false})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = e.Suggest(Query{Text: "berlin", Size: 10, Suggest: false})
	require.NoError(t, err)
	assert.Equal(t, []string{"Berlin"}, names(hits))
	assert.Equal(t, "exact", hits[0].Match)

	// whole-token matching still corrects typos, by full edit distance
	hits, err = e.Suggest(Query{Text: "berlim", Size: 10, Suggest: false})
	require.NoError(t, err)
	assert.Equal(t, []string{"Berlin"}, names(hits))
	assert.Equal(t, "fuzzy", hits[0].Match)

	// a bare prefix is two edits away from "berlin", over the budget of one
	hits, err = e.Suggest(Query{Text: "berl", Size: 10, Suggest: false})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = e.Suggest(Query{Text: "berl", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Berlin"}, names(hits))
}

func TestSuggestFuzzyFallback(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	hits, err := e.Suggest(Query{Text: "drezden", Size: 10, Suggest: true})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Dresden", hits[0].Name)
	assert.Equal(t, "fuzzy", hits[0].Match)

	// short tokens are not corrected
	hits, err = e.Suggest(Query{Text: "dx", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Empty(t, hits)

	// first letter differs
	hits, err = e.Suggest(Query{Text: "zresden", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSuggestFuzzyAnyFirstRune(t *testing.T) {
	opts := DefaultOptions()
	opts.FuzzySameFirstRune = false
	e := newTestEngine(t, opts)

	hits, err := e.Suggest(Query{Text: "zresden", Size: 10, Suggest: true})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Dresden", hits[0].Name)
}

func TestSuggestFuzzyDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.FuzzyMaxDistance = 0
	e := newTestEngine(t, opts)

	hits, err := e.Suggest(Query{Text: "drezden", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// prefix hits rank above fuzzy hits
func TestSuggestPrefixBeforeFuzzy(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.Rebuild([]place.Record{
		{ID: "1", Name: "Hamburg", Type: place.City, Population: 1800000},
		{ID: "2", Name: "Hambach", Type: place.Village},
		{ID: "3", Name: "Hamberge", Type: place.Village},
	})

	hits, err := e.Suggest(Query{Text: "hambu", Size: 10, Suggest: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hamburg", "Hambach", "Hamberge"}, names(hits))
	assert.Equal(t, []string{"prefix", "fuzzy", "fuzzy"}, []string{hits[0].Match, hits[1].Match, hits[2].Match})

	hits, err = e.Suggest(Query{Text: "hambo", Size: 10, Suggest: true})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Hamburg", hits[0].Name)
	assert.Equal(t, "fuzzy", hits[0].Match)
}

func TestRebuildSkipsBadRecords(t *testing.T) {
	e := NewEngine(DefaultOptions())
	idx, skipped := e.Rebuild([]place.Record{
		{ID: "1", Name: "Dresden", Type: place.City},
		{ID: "", Name: "Nowhere"},
		{ID: "1", Name: "Dresden again"},
		{ID: "2", Name: "---"},
	})

	require.Len(t, skipped, 3)
	assert.Equal(t, 1, idx.Len())
	for _, err := range skipped {
		assert.ErrorIs(t, err, ErrIngestion)
		var ie *IngestionError
		require.True(t, errors.As(err, &ie))
	}
	assert.Equal(t, 3, e.Stats()["skipped"])
}

func TestHotCacheServesRepeatedQueries(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())

	first, err := e.Suggest(Query{Text: "neustadt", Size: 3, Suggest: true})
	require.NoError(t, err)
	second, err := e.Suggest(Query{Text: "Neustadt", Size: 3, Suggest: true})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, e.Stats()["cacheHits"])

	// mutating a returned slice must not leak into the cache
	second[0].Name = "changed"
	third, err := e.Suggest(Query{Text: "neustadt", Size: 3, Suggest: true})
	require.NoError(t, err)
	assert.Equal(t, first[0].Name, third[0].Name)
}

func TestPublishReplacesSnapshot(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	gen := e.Snapshot().Generation()

	hits, err := e.Suggest(Query{Text: "dresden", Size: 1, Suggest: true})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	e.Rebuild([]place.Record{{ID: "99", Name: "Leipzig", Type: place.City}})
	assert.Greater(t, e.Snapshot().Generation(), gen)

	hits, err = e.Suggest(Query{Text: "dresden", Size: 1, Suggest: true})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 1, e.Stats()["cacheEntries"])
}

func TestConcurrentQueriesDuringPublish(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	alt := []place.Record{
		{ID: "1", Name: "Dresden", Type: place.City, Population: 556000},
		{ID: "2", Name: "Dresden-Neustadt", Type: place.Borough},
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 8)

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				hits, err := e.Suggest(Query{Text: "dresd", Size: 5, Suggest: true})
				if err != nil {
					errs <- err
					return
				}
				if len(hits) != 2 || hits[0].Name != "Dresden" {
					errs <- fmt.Errorf("unexpected hits %v", names(hits))
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			e.Rebuild(alt)
		} else {
			e.Rebuild(testRecords())
		}
	}
	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	queries []QueryStats
	builds  int
}

func (o *recordingObserver) ObserveQuery(s QueryStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries = append(o.queries, s)
}

func (o *recordingObserver) ObserveBuild(records, skipped int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.builds++
}

func TestObserverReceivesEvents(t *testing.T) {
	obs := &recordingObserver{}
	opts := DefaultOptions()
	opts.Observer = obs
	e := newTestEngine(t, opts)

	_, err := e.Suggest(Query{Text: "drezden", Size: 5, Suggest: true})
	require.NoError(t, err)
	_, err = e.Suggest(Query{Text: "drezden", Size: 5, Suggest: true})
	require.NoError(t, err)

	assert.Equal(t, 1, obs.builds)
	require.Len(t, obs.queries, 2)
	assert.True(t, obs.queries[0].Fuzzy)
	assert.False(t, obs.queries[0].Cached)
	assert.True(t, obs.queries[1].Cached)
	assert.Equal(t, "suggest", obs.queries[1].Mode)
}

func BenchmarkSuggest(b *testing.B) {
	records := make([]place.Record, 0, 5000)
	for i := 0; i < 5000; i++ {
		records = append(records, place.Record{
			ID:   fmt.Sprintf("%d", i),
			Name: fmt.Sprintf("Neustadt %d", i),
			Type: place.Village,
		})
	}
	opts := DefaultOptions()
	opts.CacheSize = 0
	e := NewEngine(opts)
	e.Rebuild(records)
	inputs := []string{"neu", "neustadt 12", "neustdt", "neustadt 4"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Suggest(Query{Text: inputs[i%len(inputs)], Size: 10, Suggest: true})
	}
}
