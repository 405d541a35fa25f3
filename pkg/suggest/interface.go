// Package suggest is the core of placeserve: it builds token trie snapshots over place
// records and answers ranked, size-bounded prefix queries against them.
package suggest

// Suggester is implemented by the engine and consumed by the HTTP, IPC and CLI front ends.
type Suggester interface {
	// Suggest returns at most q.Size hits, best match first.
	Suggest(q Query) ([]Hit, error)

	// Stats returns counters about the current snapshot and the result cache.
	Stats() map[string]int
}
