package scheduler

import (
	"context"
	"fmt"

	"exterminador_backend/internal/followup"
	"exterminador_backend/platform/config"
	"exterminador_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// FollowupRunner processes one batch of due follow-ups.
type FollowupRunner interface {
	Run(ctx context.Context) (followup.Summary, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner FollowupRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner FollowupRunner, log *logger.Logger) (*Worker, error) {
	opt, queue, err := connection(cfg)
	if err != nil {
		return nil, err
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
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskFollowupScan, w.handleFollowupScan)

	return w, nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start scheduler worker: %w", err)
	}

	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

func (w *Worker) handleFollowupScan(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseFollowupScanPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if id, ok := asynq.GetTaskID(ctx); ok {
		ctx = context.WithValue(ctx, logger.TaskIDKey, id)
	}

	summary, err := w.runner.Run(ctx)
	if err != nil {
		return err
	}

	sent := 0
	for _, r := range summary.Results {
		if r.Sent {
			sent++
		}
	}
	w.log.WithContext(ctx).Info("followup scan completed",
		"trigger", payload.Trigger,
		"processed", summary.Total,
		"sent", sent,
	)
	return nil
}
