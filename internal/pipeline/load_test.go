package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-sales-etl/internal/model"
)

var errFlaky = errors.New("connection reset")

// chunkSink records every committed chunk and can be told to fail the first
// N attempts on a given chunk offset.
type chunkSink struct {
	mu        sync.Mutex
	committed [][]model.NormalizedRecord
	attempts  map[int64]int
	failUntil map[int64]int
	failWith  error
}

func newChunkSink() *chunkSink {
	return &chunkSink{
		attempts:  make(map[int64]int),
		failUntil: make(map[int64]int),
	}
}

func (s *chunkSink) InsertSalesChunk(_ context.Context, records []model.NormalizedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := records[0].Quantity // first row's quantity identifies the chunk
	s.attempts[key]++
	if s.attempts[key] <= s.failUntil[key] {
		return s.failWith
	}
	s.committed = append(s.committed, records)
	return nil
}

func (s *chunkSink) InsertRejectedChunk(_ context.Context, _ []model.RejectionEntry) error {
	return nil
}

func makeRecords(n int) []model.NormalizedRecord {
	records := make([]model.NormalizedRecord, n)
	for i := range records {
		records[i].Quantity = int64(i + 1)
	}
	return records
}

func testLoader(sink *chunkSink, chunkSize int) *Loader {
	return NewLoader(sink, sink, LoaderOptions{
		ChunkSize: chunkSize,
		Workers:   2,
		Timeout:   time.Second,
		Policy: RetryPolicy{
			MaxAttempts:   3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2.0,
			Transient:     func(err error) bool { return errors.Is(err, errFlaky) },
		},
	}, discardLogger())
}

func TestLoaderChunksRecords(t *testing.T) {
	sink := newChunkSink()
	loader := testLoader(sink, 4)

	result, err := loader.LoadAccepted(context.Background(), makeRecords(10))
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.RowsCommitted)
	assert.Equal(t, int64(3), result.ChunksCommitted)
	assert.Equal(t, int64(0), result.ChunksFailed)

	total := 0
	for _, chunk := range sink.committed {
		total += len(chunk)
	}
	assert.Equal(t, 10, total)
}

func TestLoaderRetriesTransientFailures(t *testing.T) {
	sink := newChunkSink()
	sink.failWith = errFlaky
	sink.failUntil[1] = 2 // chunk starting at row 1 fails twice, then succeeds

	loader := testLoader(sink, 4)
	result, err := loader.LoadAccepted(context.Background(), makeRecords(8))
	require.NoError(t, err)
	assert.Equal(t, int64(8), result.RowsCommitted)
	assert.Equal(t, int64(2), result.ChunksCommitted)
	assert.Equal(t, 3, sink.attempts[1])

	// The retried chunk committed exactly once despite three attempts.
	seen := 0
	for _, chunk := range sink.committed {
		if chunk[0].Quantity == 1 {
			seen++
		}
	}
	assert.Equal(t, 1, seen)
}

func TestLoaderExhaustsRetryBudget(t *testing.T) {
	sink := newChunkSink()
	sink.failWith = errFlaky
	sink.failUntil[1] = 10 // never recovers within the budget

	loader := testLoader(sink, 4)
	result, err := loader.LoadAccepted(context.Background(), makeRecords(4))
	require.Error(t, err)
	assert.Equal(t, int64(1), result.ChunksFailed)
	assert.Equal(t, 3, sink.attempts[1])
}

func TestLoaderNonTransientFailsImmediately(t *testing.T) {
	sink := newChunkSink()
	sink.failWith = errors.New("syntax error near VALUES")
	sink.failUntil[1] = 1

	loader := testLoader(sink, 4)
	_, err := loader.LoadAccepted(context.Background(), makeRecords(4))
	require.Error(t, err)
	assert.Equal(t, 1, sink.attempts[1], "non-transient errors must not be retried")
}

func TestLoaderFailingChunkDoesNotCancelSiblings(t *testing.T) {
	sink := newChunkSink()
	sink.failWith = errors.New("duplicate key")
	sink.failUntil[1] = 1 // only the first chunk fails

	loader := testLoader(sink, 4)
	result, err := loader.LoadAccepted(context.Background(), makeRecords(12))
	require.Error(t, err)
	assert.Equal(t, int64(1), result.ChunksFailed)
	assert.Equal(t, int64(2), result.ChunksCommitted)
	assert.Equal(t, int64(8), result.RowsCommitted)
}

func TestLoaderEmptyInput(t *testing.T) {
	sink := newChunkSink()
	loader := testLoader(sink, 4)

	result, err := loader.LoadAccepted(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, result)
	assert.Empty(t, sink.committed)
}

func TestRetryPolicyBackoffIsCapped(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2.0}
	assert.Equal(t, time.Second, p.delay(1))
	assert.Equal(t, 2*time.Second, p.delay(2))
	assert.Equal(t, 3*time.Second, p.delay(3))
	assert.Equal(t, 3*time.Second, p.delay(6))
}
