package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
)

const defaultPollInterval = 500 * time.Millisecond

// Ingestor is the slice of the pipeline the executor needs
type Ingestor interface {
	Ingest(ctx context.Context, tenantID uuid.UUID, req models.IngestRequest) (*models.IngestSummary, error)
}

// Executor drains pending jobs from the store and runs them on a bounded
// worker pool. The pool is the only place where concurrent ingestion work
// is capped; jobs execute independently of each other.
type Executor struct {
	store    *Store
	pipeline Ingestor
	pool     *ants.Pool
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	cancels   map[uuid.UUID]context.CancelFunc
	requested map[uuid.UUID]struct{} // cancellations that arrived before the worker started

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewExecutor creates an executor with the given worker count
func NewExecutor(store *Store, pipelineSvc Ingestor, workers int, pollInterval time.Duration, logger *zap.Logger) (*Executor, error) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		logger.Error("job worker panic recovered", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, services.WrapInternal("failed to create job worker pool", err)
	}

	return &Executor{
		store:     store,
		pipeline:  pipelineSvc,
		pool:      pool,
		interval:  pollInterval,
		logger:    logger,
		cancels:   make(map[uuid.UUID]context.CancelFunc),
		requested: make(map[uuid.UUID]struct{}),
		stopped:   make(chan struct{}),
	}, nil
}

// Start launches the polling loop. It returns immediately; the loop runs
// until ctx is cancelled or Shutdown is called.
func (e *Executor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopped:
				return
			case <-ticker.C:
				e.drain(ctx)
			}
		}
	}()
}

// drain claims pending jobs until the queue is empty or the pool refuses
// more work
func (e *Executor) drain(ctx context.Context) {
	for {
		job := e.store.ClaimPending()
		if job == nil {
			return
		}

		claimed := job
		if err := e.pool.Submit(func() {
			e.run(ctx, claimed)
		}); err != nil {
			// pool shutting down; put the failure on record
			e.store.Fail(claimed.ID, "executor unavailable", nil)
			return
		}
	}
}

// run executes a single job. Cancellation is cooperative: the job context
// is checked between documents and observed by embedding and store calls
// in flight.
func (e *Executor) run(ctx context.Context, job *models.Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	e.registerCancel(job.ID, cancel)
	defer e.unregisterCancel(job.ID)

	e.logger.Info("job started",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("type", string(job.Type)),
		zap.Int("documents", len(job.Payload)))

	var summaries []models.IngestSummary
	for _, req := range job.Payload {
		if err := jobCtx.Err(); err != nil {
			e.store.MarkCancelled(job.ID, summaries)
			e.logger.Info("job cancelled",
				zap.String("job_id", job.ID.String()),
				zap.Int("completed_documents", len(summaries)))
			return
		}

		summary, err := e.pipeline.Ingest(jobCtx, job.TenantID, req)
		if err != nil {
			if errors.Is(err, context.Canceled) || jobCtx.Err() != nil {
				e.store.MarkCancelled(job.ID, summaries)
				e.logger.Info("job cancelled",
					zap.String("job_id", job.ID.String()),
					zap.Int("completed_documents", len(summaries)))
				return
			}
			e.store.Fail(job.ID, err.Error(), summaries)
			e.logger.Warn("job failed",
				zap.String("job_id", job.ID.String()),
				zap.String("document_id", req.DocumentID),
				zap.Error(err))
			return
		}
		summaries = append(summaries, *summary)
	}

	e.store.Complete(job.ID, summaries)
	e.logger.Info("job completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("documents", len(summaries)))
}

// Cancel cancels a job. Pending jobs transition directly to cancelled;
// running jobs get a cooperative cancellation signal and transition once
// the worker observes it; terminal jobs are a no-op reporting their
// existing state.
func (e *Executor) Cancel(tenantID, jobID uuid.UUID) (*models.Job, error) {
	job, err := e.store.CancelPending(tenantID, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == models.JobRunning {
		e.mu.Lock()
		cancel, ok := e.cancels[jobID]
		if !ok {
			// claimed but the worker has not started yet; it will observe
			// the request as soon as it registers
			e.requested[jobID] = struct{}{}
		}
		e.mu.Unlock()
		if ok {
			cancel()
		}
	}
	return job, nil
}

// Shutdown stops the polling loop and releases the worker pool. In-flight
// jobs keep their contexts; callers cancel them through the parent context
// passed to Start.
func (e *Executor) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stopped)
	})
	e.pool.Release()
}

// Running reports the number of in-flight workers
func (e *Executor) Running() int {
	return e.pool.Running()
}

func (e *Executor) registerCancel(jobID uuid.UUID, cancel context.CancelFunc) {
	e.mu.Lock()
	e.cancels[jobID] = cancel
	_, pending := e.requested[jobID]
	delete(e.requested, jobID)
	e.mu.Unlock()

	if pending {
		cancel()
	}
}

func (e *Executor) unregisterCancel(jobID uuid.UUID) {
	e.mu.Lock()
	delete(e.cancels, jobID)
	e.mu.Unlock()
}
