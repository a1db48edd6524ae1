package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mealdash-next/internal/clock"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/queue"
	"github.com/mealdash-next/internal/repository"

	"github.com/hibiken/asynq"
)

// PrintTransport 门店小票打印通道
type PrintTransport interface {
	Print(ctx context.Context, jobID uint, receipt map[string]interface{}) error
}

// PrintOptions 打印任务参数
type PrintOptions struct {
	MaxAttempts int
	RetryAfter  time.Duration
	Timeout     time.Duration
	SweepLimit  int
}

// PrintService 打印任务执行、重试与巡检
type PrintService struct {
	repo      repository.PrintJobRepository
	transport PrintTransport
	queue     TaskEnqueuer
	opts      PrintOptions
	clock     clock.Clock
	runner    *backgroundRunner
}

// NewPrintService 创建打印服务，transport 为 nil 表示未接打印机
func NewPrintService(repo repository.PrintJobRepository, transport PrintTransport, queueClient TaskEnqueuer, opts PrintOptions, clk clock.Clock) *PrintService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Minute
	}
	if opts.SweepLimit <= 0 {
		opts.SweepLimit = 50
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &PrintService{
		repo:      repo,
		transport: transport,
		queue:     queueClient,
		opts:      opts,
		clock:     clk,
		runner:    newBackgroundRunner(4, opts.Timeout),
	}
}

// Submit 非阻塞地提交一次打印尝试；失败只记录日志，任务保持待打印
func (s *PrintService) Submit(ctx context.Context, job *models.PrintJob) {
	if s == nil || job == nil || s.transport == nil {
		return
	}
	if queueEnabled(s.queue) {
		payload := queue.PrintJobPayload{JobID: job.ID, OrderID: job.OrderID}
		if err := s.queue.EnqueuePrintJob(payload, asynq.TaskID(printTaskID(job))); err != nil {
			logger.WithContext(ctx).Warnw("print_job_enqueue_failed", "print_job_id", job.ID, "order_id", job.OrderID, "error", err)
		}
		return
	}
	jobID := job.ID
	s.runner.Go("print:job", func(bgCtx context.Context) error {
		return s.ProcessJob(bgCtx, jobID)
	})
}

// printTaskID 同一任务在同一轮次内只保留一个队列任务；失败或重置会改变 attempts 与 updated_at
func printTaskID(job *models.PrintJob) string {
	return fmt.Sprintf("print:%d:%d:%d", job.ID, job.Attempts, job.UpdatedAt.UnixMilli())
}

// ProcessJob 执行一次打印：成功标记 printed，失败累计次数，达到上限转 failed
func (s *PrintService) ProcessJob(ctx context.Context, jobID uint) error {
	if jobID == 0 {
		return fmt.Errorf("%w: print job id is required", ErrValidation)
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrPrintJobNotFound
	}
	log := logger.WithContext(ctx, "print_job_id", job.ID, "order_id", job.OrderID)
	if job.Status != constants.PrintJobStatusPending {
		log.Debugw("print_job_skip_not_pending", "status", job.Status)
		return nil
	}
	if s.transport == nil {
		log.Debugw("print_transport_disabled")
		return nil
	}

	if err := s.transport.Print(ctx, job.ID, job.Payload); err != nil {
		if recordErr := s.repo.RecordFailure(ctx, job.ID, err.Error(), s.opts.MaxAttempts); recordErr != nil {
			log.Errorw("print_job_record_failure_failed", "error", recordErr)
		}
		log.Warnw("print_job_failed", "attempts", job.Attempts+1, "max_attempts", s.opts.MaxAttempts, "error", err)
		return fmt.Errorf("%w: %v", ErrDownstreamUnavailable, err)
	}
	if _, err := s.repo.MarkPrinted(ctx, job.ID, s.clock.Now()); err != nil {
		return err
	}
	log.Infow("print_job_printed")
	return nil
}

// SweepRetryable 重新提交长时间停留在待打印的任务
func (s *PrintService) SweepRetryable(ctx context.Context) (int, error) {
	if s.transport == nil {
		return 0, nil
	}
	jobs, err := s.repo.ListRetryable(ctx, s.clock.Now().Add(-s.opts.RetryAfter), s.opts.SweepLimit)
	if err != nil {
		return 0, err
	}
	for i := range jobs {
		s.Submit(ctx, &jobs[i])
	}
	if len(jobs) > 0 {
		logger.WithContext(ctx).Infow("print_job_sweep", "resubmitted", len(jobs))
	}
	return len(jobs), nil
}

// Retry 管理端把失败任务重新放回待打印并提交
func (s *PrintService) Retry(ctx context.Context, jobID uint) (*models.PrintJob, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrPrintJobNotFound
	}
	if job.Status != constants.PrintJobStatusFailed {
		return nil, fmt.Errorf("%w: print job is %s", ErrValidation, job.Status)
	}
	affected, err := s.repo.Requeue(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrAlreadyProcessed
	}
	if reloaded, err := s.repo.GetByID(ctx, jobID); err == nil && reloaded != nil {
		job = reloaded
	} else {
		job.Status = constants.PrintJobStatusPending
		job.Attempts = 0
		job.UpdatedAt = s.clock.Now()
	}
	s.Submit(ctx, job)
	return job, nil
}

// RetryFailed 批量重试失败任务，返回重新提交的数量
func (s *PrintService) RetryFailed(ctx context.Context, limit int) (int, error) {
	jobs, _, err := s.repo.List(ctx, repository.PrintJobListFilter{Page: 1, PageSize: limit, Status: constants.PrintJobStatusFailed})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, job := range jobs {
		if _, err := s.Retry(ctx, job.ID); err != nil {
			logger.WithContext(ctx).Warnw("print_job_retry_failed", "print_job_id", job.ID, "error", err)
			continue
		}
		count++
	}
	return count, nil
}

// List 打印任务列表
func (s *PrintService) List(ctx context.Context, filter repository.PrintJobListFilter) ([]models.PrintJob, int64, error) {
	return s.repo.List(ctx, filter)
}

// Wait 等待后台打印结束
func (s *PrintService) Wait() {
	if s != nil {
		s.runner.Wait()
	}
}
