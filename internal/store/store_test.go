package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-sales-etl/internal/config"
	"go-sales-etl/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(config.DatabaseConfig{
		Driver:  "sqlite3",
		Name:    filepath.Join(t.TempDir(), "etl_test.db"),
		Timeout: "5s",
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

func sampleRecord() model.NormalizedRecord {
	return model.NormalizedRecord{
		Date:           time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Product:        "Laptop HP",
		Category:       "Electronica",
		Quantity:       2,
		UnitPriceCents: 85050,
		TotalCents:     170100,
		CustomerID:     "CLI-00042",
		Region:         "Lima",
		Vendor:         "Ana Torres",
	}
}

func TestSalesRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	second := sampleRecord()
	second.Product = "Mouse"
	second.Quantity = 10
	second.UnitPriceCents = 1590
	second.TotalCents = 15900
	require.NoError(t, st.InsertSalesChunk(ctx, []model.NormalizedRecord{sampleRecord(), second}))

	count, err := st.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	rows, err := st.ListSales(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Newest first.
	assert.Equal(t, "Mouse", rows[0].Record.Product)
	assert.Equal(t, int64(1590), rows[0].Record.UnitPriceCents)
	assert.Equal(t, int64(15900), rows[0].Record.TotalCents)

	row, err := st.GetSale(ctx, rows[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Laptop HP", row.Record.Product)
	assert.Equal(t, int64(85050), row.Record.UnitPriceCents)
	assert.Equal(t, int64(170100), row.Record.TotalCents)
	assert.Equal(t, "2024-01-15", row.Record.Date.Format("2006-01-02"))
	assert.False(t, row.CreatedAt.IsZero())
}

func TestInsertEmptyChunksAreNoOps(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertSalesChunk(ctx, nil))
	require.NoError(t, st.InsertRejectedChunk(ctx, nil))

	count, err := st.CountSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRejectionsPerExecution(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	rejectedAt := time.Date(2024, 2, 1, 10, 30, 0, 0, time.UTC)

	entries := []model.RejectionEntry{
		{ExecutionID: "exec-a", Raw: "bad,row,1", Reason: model.ReasonInvalidDate, RejectedAt: rejectedAt},
		{ExecutionID: "exec-a", Raw: "bad,row,2", Reason: model.ReasonTotalMismatch, RejectedAt: rejectedAt},
		{ExecutionID: "exec-b", Raw: "other", Reason: model.ReasonInvalidPrice, RejectedAt: rejectedAt},
	}
	require.NoError(t, st.InsertRejectedChunk(ctx, entries))

	got, err := st.ListRejections(ctx, "exec-a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bad,row,1", got[0].Raw)
	assert.Equal(t, model.ReasonInvalidDate, got[0].Reason)
	assert.Equal(t, model.ReasonTotalMismatch, got[1].Reason)
	assert.True(t, got[0].RejectedAt.Equal(rejectedAt))
}

func TestStageEventLogIsAdditive(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 2, 1, 3, 0, 0, 0, time.UTC)
	done := started.Add(2 * time.Second)

	appendRun := func(executionID string, start time.Time) {
		end := start.Add(time.Second)
		require.NoError(t, st.AppendStageEvent(ctx, model.StageEvent{
			ExecutionID: executionID, Stage: model.StageExtract,
			Status: model.StatusStarted, StartedAt: start,
		}))
		require.NoError(t, st.AppendStageEvent(ctx, model.StageEvent{
			ExecutionID: executionID, Stage: model.StageExtract,
			Status: model.StatusCompleted, RecordsProcessed: 100,
			StartedAt: start, CompletedAt: &end, DurationSeconds: 1,
		}))
	}

	appendRun("exec-1", started)
	appendRun("exec-2", done)

	events, err := st.ListStageEvents(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.StatusStarted, events[0].Status)
	assert.Nil(t, events[0].CompletedAt)
	assert.Equal(t, model.StatusCompleted, events[1].Status)
	assert.Equal(t, int64(100), events[1].RecordsProcessed)
	require.NotNil(t, events[1].CompletedAt)

	// A second run adds rows; the first run's trail is untouched.
	runs, err := st.ListExecutions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "exec-2", runs[0].ExecutionID)
	assert.Equal(t, "exec-1", runs[1].ExecutionID)
}

func TestStageEventFailureKeepsMessage(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)
	done := started.Add(time.Second)

	require.NoError(t, st.AppendStageEvent(ctx, model.StageEvent{
		ExecutionID: "exec-f", Stage: model.StageLoad, Status: model.StatusFailed,
		ErrorMessage: "retries exhausted after 3 attempts",
		StartedAt:    started, CompletedAt: &done, DurationSeconds: 1,
	}))

	events, err := st.ListStageEvents(ctx, "exec-f")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.StatusFailed, events[0].Status)
	assert.Contains(t, events[0].ErrorMessage, "retries exhausted")
}

func TestPurgeBefore(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-100 * 24 * time.Hour)
	recent := time.Now().UTC()

	require.NoError(t, st.InsertRejectedChunk(ctx, []model.RejectionEntry{
		{ExecutionID: "exec-old", Raw: "x", Reason: model.ReasonInvalidDate, RejectedAt: old},
		{ExecutionID: "exec-new", Raw: "y", Reason: model.ReasonInvalidDate, RejectedAt: recent},
	}))
	require.NoError(t, st.AppendStageEvent(ctx, model.StageEvent{
		ExecutionID: "exec-old", Stage: model.StageExtract,
		Status: model.StatusStarted, StartedAt: old,
	}))
	require.NoError(t, st.AppendStageEvent(ctx, model.StageEvent{
		ExecutionID: "exec-new", Stage: model.StageExtract,
		Status: model.StatusStarted, StartedAt: recent,
	}))

	purged, err := st.PurgeBefore(ctx, time.Now().UTC().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	left, err := st.ListRejections(ctx, "exec-new")
	require.NoError(t, err)
	assert.Len(t, left, 1)
	gone, err := st.ListRejections(ctx, "exec-old")
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(assert.AnError))
}
