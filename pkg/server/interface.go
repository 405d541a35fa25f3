/*
Package server implements msgpack IPC for place suggestions.

The server reads a stream of msgpack encoded requests from stdin and writes one msgpack
encoded reply per request to stdout. Logging goes to stderr so it never mixes with the
protocol stream.

# IPC

Each request is a map with a client chosen ID and an action. An empty action means
suggest:

	{"id": "req_001", "q": "dresd", "s": 5}

The server replies with hits in rank order, the hit count and the time taken in
microseconds:

	{"id": "req_001", "h": [{"i": "1", "n": "Dresden", "t": "city", "r": 1}], "c": 1, "t": 87}

Setting "m" to true matches whole tokens only instead of treating the last token as a
prefix:

	{"id": "req_002", "q": "neustadt", "m": true}

Other actions:

	{"id": "req_003", "a": "stats"}
	{"id": "req_004", "a": "reload"}
	{"id": "req_005", "a": "health"}

Failed requests get an error reply with an HTTP style code: 400 for invalid arguments,
503 while no index is loaded and 500 for anything else:

	{"id": "req_006", "e": "size must not be negative", "c": 400}

A status message with status "ready" is written once before the first request is read.
The loop ends cleanly when stdin is closed.
*/
package server

// Actions understood by the server.
const (
	ActionSuggest = "suggest"
	ActionStats   = "stats"
	ActionReload  = "reload"
	ActionHealth  = "health"
)

// Request is one client message.
type Request struct {
	ID     string `msgpack:"id"`
	Action string `msgpack:"a,omitempty"`
	Query  string `msgpack:"q,omitempty"`
	Size   int    `msgpack:"s,omitempty"`
	Match  bool   `msgpack:"m,omitempty"`
}

// SuggestHit - minimal hit
type SuggestHit struct {
	ID   string `msgpack:"i"`
	Name string `msgpack:"n"`
	Type string `msgpack:"t"`
	Rank int    `msgpack:"r"`
}

// SuggestResponse - suggest reply
type SuggestResponse struct {
	ID        string       `msgpack:"id"`
	Hits      []SuggestHit `msgpack:"h"`
	Count     int          `msgpack:"c"`
	TimeTaken int64        `msgpack:"t"`
}

// StatusResponse answers the ready, health, stats and reload messages
type StatusResponse struct {
	ID         string         `msgpack:"id,omitempty"`
	Status     string         `msgpack:"status"`
	Records    int            `msgpack:"records,omitempty"`
	Skipped    int            `msgpack:"skipped,omitempty"`
	Generation uint64         `msgpack:"generation,omitempty"`
	Stats      map[string]int `msgpack:"stats,omitempty"`
}

// ErrorResponse holds basic error information for a failed request
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
