package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task는 스케줄러가 실행할 작업을 정의하는 인터페이스입니다
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc는 함수를 Task로 사용하기 위한 어댑터입니다
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Execute(ctx context.Context) error { return f(ctx) }

// Scheduler는 봉 경계에 맞춰 작업을 실행하는 스케줄러입니다
type Scheduler struct {
	interval time.Duration
	offset   time.Duration
	task     Task
	logger   *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option은 스케줄러 옵션입니다
type Option func(*Scheduler)

// WithOffset은 봉 경계 이후 실행까지의 지연을 설정합니다
func WithOffset(offset time.Duration) Option {
	return func(s *Scheduler) {
		s.offset = offset
	}
}

// WithLogger는 로거를 설정합니다
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler는 새로운 스케줄러를 생성합니다
func NewScheduler(interval time.Duration, task Task, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: interval,
		task:     task,
		logger:   zap.NewNop(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start는 Stop이나 컨텍스트 취소 전까지 매 봉 경계마다 작업을 실행합니다.
// 작업이 실패해도 다음 실행은 계속됩니다.
func (s *Scheduler) Start(ctx context.Context) error {
	timer := time.NewTimer(s.untilNextRun(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.stopCh:
			return nil

		case <-timer.C:
			if err := s.task.Execute(ctx); err != nil {
				s.logger.Warn("작업 실행 실패", zap.Error(err))
			}
			timer.Reset(s.untilNextRun(time.Now()))
		}
	}
}

func (s *Scheduler) untilNextRun(now time.Time) time.Duration {
	nextRun := now.Truncate(s.interval).Add(s.interval).Add(s.offset)
	if s.offset > 0 && now.Before(nextRun.Add(-s.interval)) {
		// 아직 이번 봉의 지연 구간 안에 있음
		nextRun = nextRun.Add(-s.interval)
	}
	wait := nextRun.Sub(now)

	s.logger.Info("다음 실행 대기",
		zap.Duration("wait", wait.Round(time.Second)),
		zap.Time("next_run", nextRun))
	return wait
}

// Stop은 스케줄러를 중지합니다
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
