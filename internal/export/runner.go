package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"clipcast/log"
)

const (
	defaultQueueSize   = 128
	defaultConcurrency = 2
)

var (
	ErrRunnerStopped = errors.New("export runner stopped")
	ErrQueueFull     = errors.New("export queue is full")
)

// RunnerConfig controls the in-process worker pool.
type RunnerConfig struct {
	QueueSize   int
	Concurrency int
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		QueueSize:   defaultQueueSize,
		Concurrency: defaultConcurrency,
	}
}

// Runner executes export jobs with in-memory workers. It is the default
// backend; the asynq queue takes over when Redis is configured.
type Runner struct {
	manager *Manager
	config  RunnerConfig

	queue  chan string
	ctx    context.Context
	cancel context.CancelFunc

	workerWg sync.WaitGroup
	closed   atomic.Bool
}

// NewRunner creates and starts a runner.
func NewRunner(manager *Manager, cfg RunnerConfig) *Runner {
	cfg = normalizeRunnerConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		manager: manager,
		config:  cfg,
		queue:   make(chan string, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Concurrency; i++ {
		r.workerWg.Add(1)
		go r.worker(i + 1)
	}
	return r
}

func normalizeRunnerConfig(cfg RunnerConfig) RunnerConfig {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return cfg
}

// Submit queues a persisted job for execution.
func (r *Runner) Submit(jobId string) error {
	if r.closed.Load() {
		return ErrRunnerStopped
	}

	select {
	case <-r.ctx.Done():
		return ErrRunnerStopped
	case r.queue <- jobId:
		log.GetLogger().Info("[ExportRunner] job submitted", zap.String("job_id", jobId))
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Runner) worker(workerID int) {
	defer r.workerWg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		select {
		case <-r.ctx.Done():
			return
		case jobId := <-r.queue:
			if err := r.manager.Process(r.ctx, jobId); err != nil {
				log.GetLogger().Error("[ExportRunner] job failed",
					zap.Int("worker_id", workerID),
					zap.String("job_id", jobId),
					zap.Error(err))
				continue
			}
			log.GetLogger().Info("[ExportRunner] job completed",
				zap.Int("worker_id", workerID),
				zap.String("job_id", jobId))
		}
	}
}

// Pending returns the number of queued jobs waiting for workers.
func (r *Runner) Pending() int {
	return len(r.queue)
}

// Close stops workers and rejects new jobs.
func (r *Runner) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.cancel()
	r.workerWg.Wait()
}
