package worker

import (
	"context"
	"errors"
	"time"

	"github.com/mealdash-next/internal/config"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultPrintSweepInterval    = 30 * time.Second
	defaultCapacitySweepInterval = time.Minute
)

// Service 异步队列服务；队列未启用时只运行巡检循环
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	printSweep    time.Duration
	capacitySweep time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, workerCfg config.WorkerConfig, consumer *Consumer) (*Service, error) {
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	s := &Service{
		name:          "worker",
		consumer:      consumer,
		printSweep:    secondsOrDefault(workerCfg.PrintSweepSeconds, defaultPrintSweepInterval),
		capacitySweep: secondsOrDefault(workerCfg.CapacitySweepSeconds, defaultCapacitySweepInterval),
	}
	if cfg != nil && cfg.Enabled {
		opt, serverCfg := queue.BuildServerConfig(cfg)
		s.server = asynq.NewServer(opt, serverCfg)
		s.mux = asynq.NewServeMux()
		consumer.Register(s.mux)
	} else {
		logger.Warnw("worker_queue_disabled_sweep_only")
	}
	return s, nil
}

func secondsOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer.PrintService != nil {
		go s.runLoop(ctx, "print_sweep", s.printSweep, s.sweepPrintJobs)
	}
	if s.consumer.CapacityService != nil {
		go s.runLoop(ctx, "capacity_sweep", s.capacitySweep, s.sweepCapacity)
	}
	if s.server == nil || s.mux == nil {
		<-ctx.Done()
		return nil
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	runOnce := func() {
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnw("worker_loop_failed", "loop", name, "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func (s *Service) sweepPrintJobs(ctx context.Context) error {
	_, err := s.consumer.PrintService.SweepRetryable(ctx)
	return err
}

// sweepCapacity 周期性重算产能，兜住订单状态变化之外的漂移（营业时间切换、漏投任务）
func (s *Service) sweepCapacity(ctx context.Context) error {
	_, err := s.consumer.CapacityService.Evaluate(ctx)
	return err
}
