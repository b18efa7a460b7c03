package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"example.com/practice-advisor/backend/internal/analysis"
)

type BatchRunner interface {
	RunAll(ctx context.Context) (analysis.BatchResult, error)
}

// Reporter принимает ошибки прогонов; *sentry.Hub подходит напрямую.
type Reporter interface {
	CaptureException(exception error) *sentry.EventID
}

// Scheduler запускает ночной пересчет аналитики по всем клиентам.
type Scheduler struct {
	cron     *cron.Cron
	runner   BatchRunner
	reporter Reporter
	logger   *slog.Logger
	timeout  time.Duration
	ctx      context.Context
}

// New создает планировщик с cron-выражениями в формате с секундами.
func New(ctx context.Context, runner BatchRunner, reporter Reporter, logger *slog.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		runner:   runner,
		reporter: reporter,
		logger:   logger,
		timeout:  timeout,
		ctx:      ctx,
	}
}

// Register добавляет задачу пересчета по расписанию.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.recompute); err != nil {
		return fmt.Errorf("register recompute task %q: %w", spec, err)
	}
	return nil
}

// Start запускает cron.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop останавливает cron и ждет завершения текущего прогона.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow выполняет пересчет немедленно, например при старте сервиса.
func (s *Scheduler) RunNow() analysis.BatchResult {
	return s.recomputeOnce()
}

func (s *Scheduler) recompute() {
	s.recomputeOnce()
}

func (s *Scheduler) recomputeOnce() analysis.BatchResult {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	s.logger.Info("recompute started")

	result, err := s.runner.RunAll(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.report(fmt.Errorf("recompute batch: %w", err))
	}

	for engagementID, runErr := range result.Failures {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			continue
		}
		s.report(engagementError(engagementID, runErr))
	}

	s.logger.Info("recompute finished",
		slog.Int("total", result.Total),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", len(result.Failures)),
		slog.Duration("duration", time.Since(started)),
	)

	return result
}

func (s *Scheduler) report(err error) {
	s.logger.Error("recompute failure", slog.String("error", err.Error()))
	if s.reporter != nil {
		s.reporter.CaptureException(err)
	}
}

func engagementError(engagementID uuid.UUID, err error) error {
	return fmt.Errorf("engagement %s: %w", engagementID, err)
}
