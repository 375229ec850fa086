package scheduler

import (
	"context"
	"errors"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Info(string, port.Fields)  {}
func (l *recordingLogger) Warn(string, port.Fields)  {}
func (l *recordingLogger) Debug(string, port.Fields) {}
func (l *recordingLogger) Error(msg string, _ error, _ port.Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *recordingLogger) WithFields(port.Fields) port.LoggerPort { return l }

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("every five minutes", func(context.Context) error { return nil }, &recordingLogger{})
	assert.Error(t, err)
}

func TestRun_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	logger := &recordingLogger{}
	s, err := New("@every 1h", func(context.Context) error {
		calls <- struct{}{}
		return errors.New("site unavailable")
	}, logger)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("job was not started immediately")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Contains(t, logger.errors, "Scheduled crawl failed")
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	s, err := New("@every 1h", func(context.Context) error {
		called = true
		return nil
	}, &recordingLogger{})
	require.NoError(t, err)

	require.NoError(t, s.Run(ctx))
	assert.False(t, called)
}

func TestRun_TickDuringFirstCrawlIsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var running, maxRunning, started int32
	release := make(chan struct{})
	s, err := New("@every 1s", func(ctx context.Context) error {
		n := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		atomic.AddInt32(&started, 1)
		for {
			m := atomic.LoadInt32(&maxRunning)
			if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, &recordingLogger{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// первый запуск еще идет, когда срабатывает тик
	time.Sleep(2500 * time.Millisecond)
	close(release)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&started), int32(1))
}

func TestRun_FatalErrorStopsScheduler(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var calls int32
	s, err := New("@every 1s", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return &domain.SchemaDriftError{Columns: []string{"floor"}, Page: 3}
	}, &recordingLogger{})
	require.NoError(t, err)

	err = s.Run(ctx)
	var drift *domain.SchemaDriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, []string{"floor"}, drift.Columns)
	assert.NoError(t, ctx.Err(), "scheduler waited for the outer context")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestKVFields(t *testing.T) {
	f := kvFields([]interface{}{"entry", 1, "next", "soon", "dangling"})
	assert.Equal(t, port.Fields{"entry": 1, "next": "soon"}, f)
	assert.Nil(t, kvFields(nil))
}
