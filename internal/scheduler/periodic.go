package scheduler

import (
	"context"
	"errors"
	"fmt"

	"exterminador_backend/platform/config"
	"exterminador_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const triggerCron = "cron"

// Periodic enqueues followups.scan on the configured cron schedule.
type Periodic struct {
	scheduler *asynq.Scheduler
	cronSpec  string
	queue     string
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, fcfg config.FollowupConfig, log *logger.Logger) (*Periodic, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
	}

	cronSpec := cfg.GetFollowupCron()
	if cronSpec == "" {
		return nil, fmt.Errorf("followup cron not configured")
	}

	p := &Periodic{
		cronSpec: cronSpec,
		queue:    queue,
		log:      log,
	}
	p.scheduler = asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location:        fcfg.GetBusinessLocation(),
		PostEnqueueFunc: p.afterEnqueue,
	})

	task, err := NewFollowupScanTask(FollowupScanPayload{Trigger: triggerCron})
	if err != nil {
		return nil, err
	}
	if _, err := p.scheduler.Register(cronSpec, task, followupScanOptions(queue)...); err != nil {
		return nil, fmt.Errorf("register %s: %w", TaskFollowupScan, err)
	}

	return p, nil
}

func (p *Periodic) afterEnqueue(info *asynq.TaskInfo, err error) {
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask):
		p.log.Debug("followup scan still pending, tick skipped")
	case err != nil:
		p.log.Error("followup scan enqueue failed", "error", err)
	default:
		p.log.Debug("followup scan enqueued", "task_id", info.ID, "queue", info.Queue)
	}
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) error {
	if err := p.scheduler.Start(); err != nil {
		return fmt.Errorf("start periodic scheduler: %w", err)
	}
	p.log.Info("periodic scheduler started", "task", TaskFollowupScan, "cron", p.cronSpec, "queue", p.queue)

	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}
