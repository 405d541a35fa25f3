package corpus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bastiangx/placeserve/pkg/place"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Publisher receives freshly loaded record sets. *suggest.Engine implements it.
type Publisher interface {
	Rebuild(records []place.Record) (*suggest.Index, []error)
}

// RefresherOptions control reload timing.
type RefresherOptions struct {
	// Interval between scheduled reloads; 0 disables the schedule.
	Interval time.Duration
	// MaxRetries is the number of extra attempts after a failed load.
	MaxRetries int
	// Backoff is multiplied by the attempt number before each retry.
	Backoff time.Duration
}

// ReloadStatus describes the last reload attempt.
type ReloadStatus struct {
	Records    int       `json:"records"`
	Skipped    int       `json:"skipped"`
	Files      int       `json:"files"`
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loadedAt"`
	LastError  string    `json:"lastError,omitempty"`
}

// Refresher reloads the corpus and publishes a new snapshot. A failed reload keeps
// the previous snapshot live.
type Refresher struct {
	source  Source
	target  Publisher
	opts    RefresherOptions
	reload  sync.Mutex
	mu      sync.RWMutex
	status  ReloadStatus
	trigger chan struct{}
}

// NewRefresher creates a refresher that feeds target from source
func NewRefresher(source Source, target Publisher, opts RefresherOptions) *Refresher {
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Refresher{
		source:  source,
		target:  target,
		opts:    opts,
		trigger: make(chan struct{}, 1),
	}
}

// Reload loads and publishes once, retrying failed loads. Concurrent calls are
// serialized.
func (r *Refresher) Reload(ctx context.Context) (ReloadStatus, error) {
	r.reload.Lock()
	defer r.reload.Unlock()

	var lastErr error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * r.opts.Backoff
			log.Debugf("Retrying corpus load (attempt %d/%d) in %s", attempt+1, r.opts.MaxRetries+1, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return r.fail(ctx.Err())
			}
		}

		res, err := r.source.Load(ctx)
		if err != nil {
			log.Errorf("Failed to load corpus: %v", err)
			lastErr = err
			continue
		}
		if len(res.Records) == 0 && len(res.Skipped) > 0 {
			lastErr = fmt.Errorf("corpus has no valid records, %d skipped: %w", len(res.Skipped), res.Skipped[0])
			log.Errorf("Refusing to publish an empty index: %v", lastErr)
			continue
		}

		idx, skipped := r.target.Rebuild(res.Records)
		status := ReloadStatus{
			Records:    idx.Len(),
			Skipped:    len(res.Skipped) + len(skipped),
			Files:      res.Files,
			Generation: idx.Generation(),
			LoadedAt:   idx.BuiltAt(),
		}
		r.mu.Lock()
		r.status = status
		r.mu.Unlock()

		log.Infof("Published index gen=%d with %d records", status.Generation, status.Records)
		return status, nil
	}

	return r.fail(fmt.Errorf("corpus load failed after %d attempts: %w", r.opts.MaxRetries+1, lastErr))
}

func (r *Refresher) fail(err error) (ReloadStatus, error) {
	r.mu.Lock()
	r.status.LastError = err.Error()
	status := r.status
	r.mu.Unlock()
	return status, err
}

// Trigger asks a running Run loop to reload soon. It never blocks.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run reloads on every tick and on Trigger until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	var tick <-chan time.Time
	if r.opts.Interval > 0 {
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-r.trigger:
		}
		if _, err := r.Reload(ctx); err != nil && ctx.Err() == nil {
			log.Warnf("Keeping previous index: %v", err)
		}
	}
}

// Status returns the outcome of the last reload.
func (r *Refresher) Status() ReloadStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}
