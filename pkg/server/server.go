package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/corpus"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Reloader reloads the corpus on demand. *corpus.Refresher implements it.
type Reloader interface {
	Reload(ctx context.Context) (corpus.ReloadStatus, error)
}

// Observer counts handled requests. *metrics.Metrics implements it.
type Observer interface {
	ObserveIPC(action string, status int)
}

// Options configure request limits and optional collaborators.
type Options struct {
	Reloader    Reloader
	Observer    Observer
	DefaultSize int
	MaxSize     int
	MaxQueryLen int
}

// Server handles msgpack IPC for place suggestions
type Server struct {
	engine suggest.Suggester
	opts   Options
	dec    *msgpack.Decoder
	out    *bufio.Writer
	enc    *msgpack.Encoder
}

// NewServer creates a server using stdin/stdout for IPC
func NewServer(engine suggest.Suggester, opts Options) *Server {
	return NewServerIO(engine, os.Stdin, os.Stdout, opts)
}

// NewServerIO creates a server on arbitrary streams
func NewServerIO(engine suggest.Suggester, r io.Reader, w io.Writer, opts Options) *Server {
	if opts.DefaultSize <= 0 {
		opts.DefaultSize = 10
	}
	if opts.MaxSize < opts.DefaultSize {
		opts.MaxSize = opts.DefaultSize
	}
	out := bufio.NewWriter(w)
	return &Server{
		engine: engine,
		opts:   opts,
		dec:    msgpack.NewDecoder(bufio.NewReader(r)),
		out:    out,
		enc:    msgpack.NewEncoder(out),
	}
}

// Start sends the ready message and serves requests until the input is closed or
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	log.Debug("Starting IPC server.")

	if err := s.send(StatusResponse{Status: "ready"}); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		raw, err := s.dec.DecodeRaw()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("IPC input closed")
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}

		if err := s.handleRequest(ctx, raw); err != nil {
			return fmt.Errorf("failed to write reply: %w", err)
		}
	}
}

// handleRequest decodes one message and dispatches it by action. The returned error
// is a write failure only; request failures are answered in-band.
func (s *Server) handleRequest(ctx context.Context, raw msgpack.RawMessage) error {
	var req Request
	if err := msgpack.Unmarshal(raw, &req); err != nil {
		log.Debugf("Unmarshaling request: %v", err)
		return s.sendError("", ActionSuggest, "invalid msgpack request", 400)
	}

	switch req.Action {
	case "", ActionSuggest:
		return s.handleSuggest(req)
	case ActionStats:
		s.observe(ActionStats, 200)
		return s.send(StatusResponse{ID: req.ID, Status: "ok", Stats: s.engine.Stats()})
	case ActionHealth:
		return s.handleHealth(req)
	case ActionReload:
		return s.handleReload(ctx, req)
	default:
		return s.sendError(req.ID, "unknown", fmt.Sprintf("unknown action: %s", req.Action), 400)
	}
}

func (s *Server) handleSuggest(req Request) error {
	size := req.Size
	switch {
	case size < 0:
		return s.sendError(req.ID, ActionSuggest, "size must not be negative", 400)
	case size == 0:
		size = s.opts.DefaultSize
	case size > s.opts.MaxSize:
		size = s.opts.MaxSize
	}
	if err := utils.ValidateQuery(req.Query, s.opts.MaxQueryLen); err != nil {
		return s.sendError(req.ID, ActionSuggest, err.Error(), 400)
	}

	start := time.Now()
	hits, err := s.engine.Suggest(suggest.Query{Text: req.Query, Size: size, Suggest: !req.Match})
	if err != nil {
		msg, code := classify(err)
		return s.sendError(req.ID, ActionSuggest, msg, code)
	}

	resp := SuggestResponse{
		ID:        req.ID,
		Hits:      make([]SuggestHit, len(hits)),
		Count:     len(hits),
		TimeTaken: time.Since(start).Microseconds(),
	}
	for i, h := range hits {
		resp.Hits[i] = SuggestHit{ID: h.ID, Name: h.Name, Type: h.Type, Rank: h.Rank}
	}
	s.observe(ActionSuggest, 200)
	return s.send(resp)
}

func (s *Server) handleHealth(req Request) error {
	stats := s.engine.Stats()
	if stats["ready"] != 1 {
		return s.sendError(req.ID, ActionHealth, "index is not loaded yet", 503)
	}
	s.observe(ActionHealth, 200)
	return s.send(StatusResponse{
		ID:         req.ID,
		Status:     "ok",
		Records:    stats["records"],
		Generation: uint64(stats["generation"]),
	})
}

func (s *Server) handleReload(ctx context.Context, req Request) error {
	if s.opts.Reloader == nil {
		return s.sendError(req.ID, ActionReload, "reloading is not configured", 503)
	}
	status, err := s.opts.Reloader.Reload(ctx)
	if err != nil {
		log.Errorf("IPC reload failed: %v", err)
		return s.sendError(req.ID, ActionReload, "reload failed, previous index kept", 500)
	}
	s.observe(ActionReload, 200)
	return s.send(StatusResponse{
		ID:         req.ID,
		Status:     "ok",
		Records:    status.Records,
		Skipped:    status.Skipped,
		Generation: status.Generation,
	})
}

// classify maps engine errors onto reply codes
func classify(err error) (string, int) {
	switch {
	case errors.Is(err, suggest.ErrInvalidArgument):
		return err.Error(), 400
	case errors.Is(err, suggest.ErrIndexUnavailable):
		return "index is not loaded yet", 503
	default:
		log.Errorf("Suggest failed: %v", err)
		return "internal server error", 500
	}
}

func (s *Server) observe(action string, code int) {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveIPC(action, code)
	}
}

// send encodes one reply and flushes it so the client sees it immediately
func (s *Server) send(v any) error {
	if err := s.enc.Encode(v); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) sendError(id, action, message string, code int) error {
	s.observe(action, code)
	return s.send(ErrorResponse{ID: id, Error: message, Code: code})
}
