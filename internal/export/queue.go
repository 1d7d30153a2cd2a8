package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"clipcast/log"
)

// TypeExportJob is the asynq task type for export rendering.
const TypeExportJob = "export:render"

// ExportJobPayload is the asynq task payload. The worker loads everything
// else from the persisted job row.
type ExportJobPayload struct {
	JobId string `json:"job_id"`
}

// QueueConfig holds Redis configuration for asynq.
type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

// Queue is the Redis-backed job backend, used when the deployment wants
// retries and persistence across restarts.
type Queue struct {
	client *asynq.Client
	server *asynq.Server
	config QueueConfig
}

func NewQueue(cfg QueueConfig) *Queue {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				"default": 3,
				"low":     1,
			},
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				return time.Duration(10<<uint(n)) * time.Second
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.GetLogger().Error("Export task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err))
			}),
		},
	)

	return &Queue{client: client, server: server, config: cfg}
}

// Submit queues a persisted job for execution, mirroring the in-proc
// runner's contract.
func (q *Queue) Submit(jobId string) error {
	return q.Enqueue(ExportJobPayload{JobId: jobId})
}

// Enqueue adds an export job to the queue.
func (q *Queue) Enqueue(payload ExportJobPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeExportJob, data,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("default"),
	)

	info, err := q.client.Enqueue(task)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.GetLogger().Info("Export job enqueued",
		zap.String("job_id", payload.JobId),
		zap.String("queue_id", info.ID),
		zap.String("queue", info.Queue))
	return nil
}

// StartWorker runs the asynq worker loop against the manager. Blocks until
// the server shuts down.
func StartWorker(q *Queue, manager *Manager) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeExportJob, func(ctx context.Context, t *asynq.Task) error {
		var payload ExportJobPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		return manager.Process(ctx, payload.JobId)
	})

	log.GetLogger().Info("[ExportQueue] starting worker",
		zap.String("redis_addr", q.config.RedisAddr),
		zap.Int("concurrency", q.config.Concurrency))

	return q.server.Run(mux)
}

// Close gracefully shuts down the queue.
func (q *Queue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	q.server.Shutdown()
	return nil
}
