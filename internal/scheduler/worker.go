package scheduler

import (
	"context"
	"fmt"
	"time"

	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// SweepRunner runs one full review sweep across all tenants.
type SweepRunner interface {
	RunSweep(ctx context.Context) (int, error)
}

type Worker struct {
	server       *asynq.Server
	mux          *asynq.ServeMux
	sweeper      SweepRunner
	sweepTimeout time.Duration
	log          *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweepCfg config.ReviewSweepConfig, sweeper SweepRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:       server,
		mux:          mux,
		sweeper:      sweeper,
		sweepTimeout: sweepCfg.GetReviewSweepTimeout(),
		log:          log,
	}

	mux.HandleFunc(TaskReviewSweep, w.handleReviewSweep)

	return w, nil
}

func (w *Worker) handleReviewSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReviewSweepPayload(task)
	if err != nil {
		return err
	}

	// The sweep must fit a periodic trigger; leftovers are picked up next run.
	runCtx := ctx
	if w.sweepTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.sweepTimeout)
		defer cancel()
	}

	processed, err := w.sweeper.RunSweep(runCtx)
	if err != nil {
		w.log.Error("review sweep task failed", "requestedAt", payload.RequestedAt, "error", err)
		return err
	}

	w.log.Info("review sweep task completed", "requestedAt", payload.RequestedAt, "processed", processed)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
