package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/practice-advisor/backend/internal/analysis"
)

type fakeRunner struct {
	result analysis.BatchResult
	err    error
	calls  int
}

func (f *fakeRunner) RunAll(_ context.Context) (analysis.BatchResult, error) {
	f.calls++
	return f.result, f.err
}

type recordingReporter struct {
	mu     sync.Mutex
	errors []error
}

func (r *recordingReporter) CaptureException(err error) *sentry.EventID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	id := sentry.EventID("test")
	return &id
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestRunNowReportsFailures проверяет отправку ошибок клиентов в репортер.
func TestRunNowReportsFailures(t *testing.T) {
	failed := uuid.New()
	cancelled := uuid.New()
	runner := &fakeRunner{result: analysis.BatchResult{
		Total:     3,
		Succeeded: 1,
		Failures: map[uuid.UUID]error{
			failed:    fmt.Errorf("%w: snapshots: timeout", analysis.ErrSourceUnavailable),
			cancelled: context.Canceled,
		},
	}}
	reporter := &recordingReporter{}

	s := New(context.Background(), runner, reporter, quietLogger(), time.Minute)
	result := s.RunNow()

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, 3, result.Total)
	require.Len(t, reporter.errors, 1)
	assert.ErrorIs(t, reporter.errors[0], analysis.ErrSourceUnavailable)
	assert.Contains(t, reporter.errors[0].Error(), failed.String())
}

// TestRunNowReportsBatchError проверяет ошибку чтения списка клиентов.
func TestRunNowReportsBatchError(t *testing.T) {
	runner := &fakeRunner{
		result: analysis.BatchResult{Failures: map[uuid.UUID]error{}},
		err:    errors.New("latest periods: connection refused"),
	}
	reporter := &recordingReporter{}

	New(context.Background(), runner, reporter, quietLogger(), 0).RunNow()

	require.Len(t, reporter.errors, 1)
	assert.Contains(t, reporter.errors[0].Error(), "connection refused")
}

// TestRunNowWithoutReporter проверяет работу без Sentry.
func TestRunNowWithoutReporter(t *testing.T) {
	runner := &fakeRunner{result: analysis.BatchResult{
		Total:    1,
		Failures: map[uuid.UUID]error{uuid.New(): errors.New("boom")},
	}}

	assert.NotPanics(t, func() {
		New(context.Background(), runner, nil, quietLogger(), 0).RunNow()
	})
}

// TestRegister проверяет разбор cron-выражения с секундами.
func TestRegister(t *testing.T) {
	s := New(context.Background(), &fakeRunner{}, nil, quietLogger(), 0)

	require.NoError(t, s.Register("0 30 2 * * *"))
	assert.Len(t, s.cron.Entries(), 1)

	assert.Error(t, s.Register("30 2 * * *"))
	assert.Error(t, s.Register("every night"))
}

// TestStartStop проверяет запуск и остановку без активных задач.
func TestStartStop(t *testing.T) {
	s := New(context.Background(), &fakeRunner{}, nil, quietLogger(), 0)
	require.NoError(t, s.Register("0 30 2 * * *"))

	s.Start()
	s.Stop()
}
