package pipeline

import (
	"context"
	"sync"

	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// Runner decouples API-triggered runs from the request that asked for
// them. Triggers go into a one-slot queue served by a single worker; a
// trigger arriving while a run is queued is dropped, not stacked. Runs
// do not exclude each other across entry points, the pipeline's upserts
// make overlap harmless.
type Runner struct {
	pipeline *Pipeline
	logger   *logger.Logger

	queue    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRunner creates a runner around a pipeline.
func NewRunner(p *Pipeline, log *logger.Logger) *Runner {
	return &Runner{
		pipeline: p,
		logger:   log,
		queue:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker. The worker exits when ctx is canceled or
// Stop is called.
func (r *Runner) Start(ctx context.Context) {
	go func() {
		defer close(r.done)

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-r.queue:
				r.logger.Info("Triggered pipeline run starting")
				if _, err := r.pipeline.Run(ctx); err != nil {
					r.logger.WithError(err).Error("Triggered pipeline run failed")
				}
			}
		}
	}()
}

// Trigger enqueues one run without blocking. It reports false when the
// queue already holds a pending run or the runner is stopped.
func (r *Runner) Trigger() bool {
	select {
	case <-r.stop:
		return false
	default:
	}

	select {
	case r.queue <- struct{}{}:
		return true
	default:
		r.logger.Debug("Pipeline trigger dropped, run already pending")
		return false
	}
}

// Stop shuts the worker down after it finishes any in-flight run.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
}
