package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakePurger) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceUsesRetentionWindow(t *testing.T) {
	purger := &fakePurger{deleted: 42}
	janitor := NewJanitor(purger, 30, testLogger())

	deleted, err := janitor.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)

	want := time.Now().UTC().Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, want, purger.cutoff, time.Minute)
}

func TestRunOncePropagatesPurgeError(t *testing.T) {
	purger := &fakePurger{err: errors.New("table locked")}
	janitor := NewJanitor(purger, 30, testLogger())

	_, err := janitor.RunOnce(context.Background())
	require.Error(t, err)
}

func TestNewJanitorDefaultsWindow(t *testing.T) {
	purger := &fakePurger{}
	janitor := NewJanitor(purger, 0, testLogger())
	assert.Equal(t, 90*24*time.Hour, janitor.window)
}

func TestStartRejectsBadCron(t *testing.T) {
	janitor := NewJanitor(&fakePurger{}, 30, testLogger())
	require.Error(t, janitor.Start("not a cron spec"))

	require.NoError(t, janitor.Start("0 3 * * *"))
	janitor.Stop()
}
