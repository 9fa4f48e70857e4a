package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Executor performs one run to completion.
type Executor func(ctx context.Context, run *Run)

// Orchestrator queues ingest runs and executes them one at a time in the
// background.
type Orchestrator struct {
	runs  *RunStore
	queue chan *Run
	exec  Executor
	log   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the run queue. Call Start to begin processing.
func NewOrchestrator(exec Executor, runTTL time.Duration, queueSize int, log *zap.Logger) *Orchestrator {
	if queueSize < 1 {
		queueSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		runs:  NewRunStore(runTTL),
		queue: make(chan *Run, queueSize),
		exec:  exec,
		log:   log,
	}
}

// Start launches the worker goroutine.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case run, ok := <-o.queue:
				if !ok {
					return
				}
				o.log.Info("ingest run started", zap.String("run_id", run.ID))
				o.exec(workerCtx, run)
			}
		}
	}()

	// Start run store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.runs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the worker.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a run for background processing.
func (o *Orchestrator) Submit(run *Run) error {
	o.runs.Put(run)
	select {
	case o.queue <- run:
		return nil
	default:
		run.AddError("ingest queue is full")
		run.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("ingest queue is full (%d)", cap(o.queue))
	}
}

// Track registers a run executed synchronously so it can be looked up.
func (o *Orchestrator) Track(run *Run) {
	o.runs.Put(run)
}

// GetRun returns a run by ID.
func (o *Orchestrator) GetRun(id string) *Run {
	return o.runs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
