package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/coachpo/krakenws/internal/observability"
	"github.com/coachpo/krakenws/internal/wire"
)

const publishTimeout = 5 * time.Second

// Publisher delivers records to one external store.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// Fanout queues records from the read loop and hands them to every
// publisher on a single worker. Records are dropped while the queue is full.
type Fanout struct {
	publishers []Publisher
	logger     observability.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan Record
	worker  conc.WaitGroup
	dropped atomic.Int64
}

// NewFanout starts the worker. size bounds the queue.
func NewFanout(size int, logger observability.Logger, publishers ...Publisher) *Fanout {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = observability.Log()
	}
	f := &Fanout{
		publishers: publishers,
		logger:     logger,
		queue:      make(chan Record, size),
	}
	f.worker.Go(f.drain)
	return f
}

// Handle has the router.Handler signature.
func (f *Fanout) Handle(_ context.Context, msg wire.ChannelMessage) {
	recs, err := RecordsOf(msg)
	if err != nil {
		if !errors.Is(err, ErrSkipped) {
			f.logger.Error("sink record", observability.Field{Key: "error", Value: err})
		}
		return
	}
	for _, rec := range recs {
		f.Enqueue(rec)
	}
}

// Enqueue adds rec without blocking. It reports false when the record was
// dropped.
func (f *Fanout) Enqueue(rec Record) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false
	}
	select {
	case f.queue <- rec:
		return true
	default:
		n := f.dropped.Add(1)
		f.logger.Debug("sink queue full",
			observability.Field{Key: "key", Value: rec.Key()},
			observability.Field{Key: "dropped", Value: n})
		return false
	}
}

// Dropped reports how many records were discarded on a full queue.
func (f *Fanout) Dropped() int64 { return f.dropped.Load() }

func (f *Fanout) drain() {
	for rec := range f.queue {
		for _, p := range f.publishers {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := p.Publish(ctx, rec); err != nil {
				f.logger.Error("sink publish",
					observability.Field{Key: "key", Value: rec.Key()},
					observability.Field{Key: "error", Value: err})
			}
			cancel()
		}
	}
}

// Close stops accepting records, flushes the queue and closes every
// publisher.
func (f *Fanout) Close(ctx context.Context) error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		f.worker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("flush sink queue: %w", ctx.Err())
	}

	var failures []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			failures = append(failures, err)
		}
	}
	return observability.Aggregate("close sinks", failures)
}
