package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"go-sales-etl/internal/model"
)

// AcceptedSink persists a chunk of normalized records in one transaction.
type AcceptedSink interface {
	InsertSalesChunk(ctx context.Context, records []model.NormalizedRecord) error
}

// RejectedSink persists a chunk of quarantine entries in one transaction.
type RejectedSink interface {
	InsertRejectedChunk(ctx context.Context, entries []model.RejectionEntry) error
}

// BatchResult aggregates the outcome of one load call.
type BatchResult struct {
	RowsCommitted   int64 `json:"rows_committed"`
	ChunksCommitted int64 `json:"chunks_committed"`
	ChunksFailed    int64 `json:"chunks_failed"`
}

// RetryPolicy defines retry behavior for transient chunk failures.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Transient     func(error) bool
}

// delay computes the exponential backoff before the given retry, capped at
// MaxDelay.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// LoaderOptions tunes chunking and retries.
type LoaderOptions struct {
	ChunkSize int
	Workers   int
	Timeout   time.Duration
	Policy    RetryPolicy
}

// Loader writes accepted records and rejection entries to their sinks in
// fixed-size chunks. Each chunk is one atomic transaction; chunks are
// dispatched to a bounded worker pool and a failing chunk never cancels
// siblings already in flight.
type Loader struct {
	accepted AcceptedSink
	rejected RejectedSink
	opts     LoaderOptions
	log      *slog.Logger
}

// NewLoader wires the two sinks. Zero option fields fall back to safe
// defaults.
func NewLoader(accepted AcceptedSink, rejected RejectedSink, opts LoaderOptions, log *slog.Logger) *Loader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy.MaxAttempts = 3
	}
	if opts.Policy.InitialDelay <= 0 {
		opts.Policy.InitialDelay = time.Second
	}
	if opts.Policy.BackoffFactor < 1 {
		opts.Policy.BackoffFactor = 2.0
	}
	return &Loader{accepted: accepted, rejected: rejected, opts: opts, log: log}
}

// LoadAccepted persists normalized records to the sales sink.
func (l *Loader) LoadAccepted(ctx context.Context, records []model.NormalizedRecord) (BatchResult, error) {
	return l.runChunks(ctx, "sales", len(records), func(ctx context.Context, lo, hi int) error {
		return l.accepted.InsertSalesChunk(ctx, records[lo:hi])
	})
}

// LoadRejected persists quarantine entries to the rejection sink.
func (l *Loader) LoadRejected(ctx context.Context, entries []model.RejectionEntry) (BatchResult, error) {
	return l.runChunks(ctx, "rejected_sales", len(entries), func(ctx context.Context, lo, hi int) error {
		return l.rejected.InsertRejectedChunk(ctx, entries[lo:hi])
	})
}

func (l *Loader) runChunks(ctx context.Context, sink string, total int, insert func(ctx context.Context, lo, hi int) error) (BatchResult, error) {
	var rows, committed, failed int64

	g := new(errgroup.Group)
	g.SetLimit(l.opts.Workers)

	for lo := 0; lo < total; lo += l.opts.ChunkSize {
		lo := lo
		hi := min(lo+l.opts.ChunkSize, total)
		g.Go(func() error {
			if err := l.insertWithRetry(ctx, sink, lo, hi, insert); err != nil {
				atomic.AddInt64(&failed, 1)
				return fmt.Errorf("%s chunk [%d:%d]: %w", sink, lo, hi, err)
			}
			atomic.AddInt64(&rows, int64(hi-lo))
			atomic.AddInt64(&committed, 1)
			return nil
		})
	}

	err := g.Wait()
	result := BatchResult{
		RowsCommitted:   atomic.LoadInt64(&rows),
		ChunksCommitted: atomic.LoadInt64(&committed),
		ChunksFailed:    atomic.LoadInt64(&failed),
	}
	l.log.Info("load finished",
		"sink", sink,
		"rows_committed", result.RowsCommitted,
		"chunks_committed", result.ChunksCommitted,
		"chunks_failed", result.ChunksFailed)
	return result, err
}

// insertWithRetry runs one chunk transaction, retrying transient failures
// with exponential backoff. A non-transient failure or an exhausted retry
// budget surfaces the error, which fails the whole Load stage.
func (l *Loader) insertWithRetry(ctx context.Context, sink string, lo, hi int, insert func(ctx context.Context, lo, hi int) error) error {
	for attempt := 1; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
		err := insert(opCtx, lo, hi)
		cancel()
		if err == nil {
			return nil
		}

		// Store timeouts count as transient.
		transient := errors.Is(err, context.DeadlineExceeded)
		if !transient && l.opts.Policy.Transient != nil {
			transient = l.opts.Policy.Transient(err)
		}
		if !transient {
			return err
		}
		if attempt >= l.opts.Policy.MaxAttempts {
			return fmt.Errorf("retries exhausted after %d attempts: %w", attempt, err)
		}

		delay := l.opts.Policy.delay(attempt)
		l.log.Warn("transient chunk failure, retrying",
			"sink", sink,
			"chunk_start", lo,
			"attempt", attempt,
			"next_delay", delay.String(),
			"error", err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
