package scheduler

import (
	"context"
	"time"

	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"
)

// SweepDispatcher enqueues a review sweep task on a fixed interval. It is the
// time-driven trigger; the worker does the actual sweeping.
type SweepDispatcher struct {
	client   *Client
	interval time.Duration
	log      *logger.Logger
}

func NewSweepDispatcher(cfg config.SchedulerConfig, sweepCfg config.ReviewSweepConfig, log *logger.Logger) (*SweepDispatcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	interval := sweepCfg.GetReviewSweepInterval()
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &SweepDispatcher{
		client:   client,
		interval: interval,
		log:      log,
	}, nil
}

func (d *SweepDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *SweepDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := d.client.EnqueueReviewSweep(ctx, time.Now()); err != nil {
			d.log.Warn("review sweep enqueue failed", "error", err)
			continue
		}
		d.log.Debug("review sweep enqueued")
	}
}
