package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
	"github.com/uw-ssec/ca-biositing-sub000/internal/temporalx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/temporalx/ingestwf"
)

const (
	startMaxWait    = time.Minute
	startBackoff    = 250 * time.Millisecond
	startBackoffMax = 5 * time.Second
)

type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	cfg  temporalx.Config
	acts *ingestwf.Activities
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, acts *ingestwf.Activities) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if acts == nil || acts.Pipeline == nil || acts.Opener == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{log: log, tc: tc, cfg: cfg.Defaults(), acts: acts}, nil
}

// Start polls the task queue until ctx is done. It retries worker start
// while the server or namespace is not yet available.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	r.log.Info("Starting Temporal worker", "address", r.cfg.Address, "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue)

	deadline := time.Now().Add(startMaxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.newWorker()
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			r.log.Info("Temporal worker started", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		notFound := errors.As(startErr, &nfe)
		if notFound && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if time.Now().After(deadline) {
			if notFound {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)

		sleep := startBackoff << (attempt - 1)
		if sleep > startBackoffMax || sleep <= 0 {
			sleep = startBackoffMax
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     r.cfg.WorkerConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize: r.cfg.WorkerConcurrency,
	})
	ingestwf.Register(w, r.acts)
	return w
}
