// Package scheduler повторяет запуск обхода по cron-расписанию.
package scheduler

import (
	"context"
	"fmt"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job - один запуск обхода
type Job func(ctx context.Context) error

// Scheduler оборачивает robfig/cron. Запуски не пересекаются, включая первый:
// тик во время идущего обхода пропускается. Фатальная ошибка обхода
// останавливает планировщик и возвращается из Run.
type Scheduler struct {
	cron   *cron.Cron
	chain  cron.Chain
	spec   string
	job    Job
	logger port.LoggerPort

	mu    sync.Mutex
	fatal error
}

// New создает планировщик. spec - стандартная cron-строка или "@every 6h".
func New(spec string, job Job, logger port.LoggerPort) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	cronLogger := cronLogAdapter{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger)),
		chain:  cron.NewChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		spec:   spec,
		job:    job,
		logger: logger,
	}, nil
}

// Run регистрирует задачу, сразу выполняет первый запуск и блокируется до отмены ctx
// или до фатальной ошибки обхода. Идущий запуск получает тот же ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// одна обертка на все запуски: SkipIfStillRunning видит и первый запуск
	job := s.chain.Then(cron.FuncJob(func() { s.runOnce(runCtx, cancel) }))
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("cron.AddJob: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", port.Fields{"spec": s.spec})

	job.Run()

	<-runCtx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()

	if err := s.fatalErr(); err != nil {
		s.logger.Error("Scheduler stopped after fatal crawl error", err, nil)
		return err
	}
	s.logger.Info("Scheduler stopped", nil)
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context, stop context.CancelFunc) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("Scheduled crawl started", nil)
	if err := s.job(ctx); err != nil {
		s.logger.Error("Scheduled crawl failed", err, nil)
		if domain.IsFatal(err) {
			s.mu.Lock()
			if s.fatal == nil {
				s.fatal = err
			}
			s.mu.Unlock()
			stop()
		}
		return
	}
	s.logger.Info("Scheduled crawl finished", nil)
}

func (s *Scheduler) fatalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// cronLogAdapter передает сообщения cron в LoggerPort
type cronLogAdapter struct {
	logger port.LoggerPort
}

func (l cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, kvFields(keysAndValues))
}

func kvFields(kv []interface{}) port.Fields {
	if len(kv) == 0 {
		return nil
	}
	fields := make(port.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
