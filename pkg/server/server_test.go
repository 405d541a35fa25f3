package server

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/bastiangx/placeserve/pkg/corpus"
	"github.com/bastiangx/placeserve/pkg/place"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func testEngine(t *testing.T) *suggest.Engine {
	t.Helper()
	e := suggest.NewEngine(suggest.DefaultOptions())
	e.Rebuild([]place.Record{
		{ID: "1", Name: "Dresden", Type: place.City, Population: 556000},
		{ID: "2", Name: "Dresdner Heide", Type: place.Locality},
		{ID: "3", Name: "Birkenhof", Type: place.Hamlet},
		{ID: "4", Name: "Birkenhain", Type: place.Village},
	})
	return e
}

func encode(t *testing.T, msgs ...any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	for _, m := range msgs {
		require.NoError(t, enc.Encode(m))
	}
	return &buf
}

type replies struct {
	t   *testing.T
	dec *msgpack.Decoder
}

func (r replies) next(v any) {
	r.t.Helper()
	raw, err := r.dec.DecodeRaw()
	require.NoError(r.t, err)
	require.NoError(r.t, msgpack.Unmarshal(raw, v))
}

func run(t *testing.T, engine suggest.Suggester, opts Options, msgs ...any) replies {
	t.Helper()
	var out bytes.Buffer
	s := NewServerIO(engine, encode(t, msgs...), &out, opts)
	require.NoError(t, s.Start(context.Background()))

	r := replies{t: t, dec: msgpack.NewDecoder(&out)}
	var ready StatusResponse
	r.next(&ready)
	require.Equal(t, "ready", ready.Status)
	return r
}

type ipcCounts map[string]int

func (c ipcCounts) ObserveIPC(action string, status int) {
	c[action]++
	if status != 200 {
		c["errors"]++
	}
}

func TestSuggestRoundTrip(t *testing.T) {
	counts := ipcCounts{}
	r := run(t, testEngine(t), Options{Observer: counts},
		Request{ID: "a", Query: "dresd", Size: 5},
		Request{ID: "b", Action: ActionSuggest, Query: "birkenh"},
		Request{ID: "c", Query: "birken", Match: true},
		Request{ID: "d", Query: ""},
	)

	var resp SuggestResponse
	r.next(&resp)
	assert.Equal(t, "a", resp.ID)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, SuggestHit{ID: "1", Name: "Dresden", Type: "city", Rank: 1}, resp.Hits[0])
	assert.Equal(t, "Dresdner Heide", resp.Hits[1].Name)
	assert.GreaterOrEqual(t, resp.TimeTaken, int64(0))

	r.next(&resp)
	assert.Equal(t, "b", resp.ID)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, "Birkenhof", resp.Hits[0].Name)
	assert.Equal(t, "Birkenhain", resp.Hits[1].Name)

	r.next(&resp)
	assert.Equal(t, "c", resp.ID)
	assert.Empty(t, resp.Hits)

	r.next(&resp)
	assert.Equal(t, "d", resp.ID)
	assert.Equal(t, 0, resp.Count)

	assert.Equal(t, 4, counts[ActionSuggest])
	assert.Zero(t, counts["errors"])
}

func TestSizeClamp(t *testing.T) {
	r := run(t, testEngine(t), Options{DefaultSize: 1, MaxSize: 1},
		Request{ID: "a", Query: "d"},
		Request{ID: "b", Query: "d", Size: 50},
	)
	for _, id := range []string{"a", "b"} {
		var resp SuggestResponse
		r.next(&resp)
		assert.Equal(t, id, resp.ID)
		assert.Len(t, resp.Hits, 1)
	}
}

func TestErrors(t *testing.T) {
	r := run(t, testEngine(t), Options{MaxQueryLen: 5},
		Request{ID: "neg", Query: "dresden", Size: -1},
		Request{ID: "long", Query: "dresden"},
		Request{ID: "ctl", Query: "a\x00b"},
		Request{ID: "what", Action: "explode"},
		"not a map",
		Request{ID: "reload", Action: ActionReload},
		Request{ID: "after", Query: "dres", Size: 1},
	)

	expect := []struct {
		id   string
		code int
	}{
		{"neg", 400},
		{"long", 400},
		{"ctl", 400},
		{"what", 400},
		{"", 400},
		{"reload", 503},
	}
	for _, e := range expect {
		var resp ErrorResponse
		r.next(&resp)
		assert.Equal(t, e.id, resp.ID)
		assert.Equal(t, e.code, resp.Code, e.id)
		assert.NotEmpty(t, resp.Error, e.id)
	}

	// a bad message does not end the session
	var resp SuggestResponse
	r.next(&resp)
	assert.Equal(t, "after", resp.ID)
	assert.Equal(t, 1, resp.Count)
}

func TestIndexUnavailable(t *testing.T) {
	r := run(t, suggest.NewEngine(suggest.DefaultOptions()), Options{},
		Request{ID: "a", Query: "dresden"},
		Request{ID: "b", Action: ActionHealth},
	)
	for _, id := range []string{"a", "b"} {
		var resp ErrorResponse
		r.next(&resp)
		assert.Equal(t, id, resp.ID)
		assert.Equal(t, 503, resp.Code)
	}
}

type fakeReloader struct{ err error }

func (f fakeReloader) Reload(ctx context.Context) (corpus.ReloadStatus, error) {
	if f.err != nil {
		return corpus.ReloadStatus{}, f.err
	}
	return corpus.ReloadStatus{Records: 4, Skipped: 1, Generation: 7}, nil
}

func TestStatusActions(t *testing.T) {
	r := run(t, testEngine(t), Options{Reloader: fakeReloader{}},
		Request{ID: "h", Action: ActionHealth},
		Request{ID: "s", Action: ActionStats},
		Request{ID: "r", Action: ActionReload},
	)

	var health StatusResponse
	r.next(&health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 4, health.Records)

	var stats StatusResponse
	r.next(&stats)
	assert.Equal(t, "s", stats.ID)
	assert.Equal(t, 1, stats.Stats["ready"])
	assert.Equal(t, 4, stats.Stats["records"])

	var reload StatusResponse
	r.next(&reload)
	assert.Equal(t, "r", reload.ID)
	assert.Equal(t, uint64(7), reload.Generation)
	assert.Equal(t, 1, reload.Skipped)
}

func TestReloadFailure(t *testing.T) {
	r := run(t, testEngine(t), Options{Reloader: fakeReloader{err: errors.New("no corpus")}},
		Request{ID: "r", Action: ActionReload},
	)
	var resp ErrorResponse
	r.next(&resp)
	assert.Equal(t, 500, resp.Code)
}

func TestTruncatedInput(t *testing.T) {
	buf := encode(t, Request{ID: "a", Query: "dresden"})
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-2])

	var out bytes.Buffer
	err := NewServerIO(testEngine(t), truncated, &out, Options{}).Start(context.Background())
	assert.Error(t, err)
}
