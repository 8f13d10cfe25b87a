package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/services"
)

// Store is an in-memory job registry. Status transitions are monotonic:
// pending -> running -> completed | failed, with cancelled reachable from
// pending and running. Terminal states never change.
type Store struct {
	mu    sync.RWMutex
	jobs  map[uuid.UUID]*models.Job
	queue []uuid.UUID // pending job ids in enqueue order
}

// NewStore creates an empty job store
func NewStore() *Store {
	return &Store{
		jobs: make(map[uuid.UUID]*models.Job),
	}
}

// Enqueue registers a new job in pending state and returns a snapshot
func (s *Store) Enqueue(tenantID uuid.UUID, jobType models.JobType, payload []models.IngestRequest) *models.Job {
	job := models.NewJob(tenantID, jobType, payload)

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.queue = append(s.queue, job.ID)
	s.mu.Unlock()

	return snapshot(job)
}

// Get returns a snapshot of a job. Jobs are tenant-scoped: asking for
// another tenant's job reports not found.
func (s *Store) Get(tenantID, jobID uuid.UUID) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok || job.TenantID != tenantID {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, "job not found", nil).
			WithDetail("job_id", jobID.String())
	}
	return snapshot(job), nil
}

// List returns snapshots of a tenant's jobs, newest first.
func (s *Store) List(tenantID uuid.UUID) []*models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Job, 0)
	for _, job := range s.jobs {
		if job.TenantID == tenantID {
			out = append(out, snapshot(job))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ClaimPending atomically transitions the oldest pending job to running
// and returns it, or nil when no pending job exists.
func (s *Store) ClaimPending() *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]

		job, ok := s.jobs[id]
		if !ok || job.Status != models.JobPending {
			// cancelled while queued; skip
			continue
		}
		job.Status = models.JobRunning
		job.UpdatedAt = time.Now()
		return snapshot(job)
	}
	return nil
}

// Complete marks a running job completed with its result
func (s *Store) Complete(jobID uuid.UUID, result []models.IngestSummary) {
	s.transition(jobID, models.JobCompleted, func(job *models.Job) {
		job.Result = result
	})
}

// Fail marks a running job failed with an error detail
func (s *Store) Fail(jobID uuid.UUID, detail string, partial []models.IngestSummary) {
	s.transition(jobID, models.JobFailed, func(job *models.Job) {
		job.Error = detail
		job.Result = partial
	})
}

// MarkCancelled finalizes a cancellation once the worker has stopped
func (s *Store) MarkCancelled(jobID uuid.UUID, partial []models.IngestSummary) {
	s.transition(jobID, models.JobCancelled, func(job *models.Job) {
		job.Result = partial
	})
}

// CancelPending cancels a job that has not started yet. It reports the
// job's status after the attempt, so callers can distinguish a direct
// cancellation from a job that is running or already terminal.
func (s *Store) CancelPending(tenantID, jobID uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.TenantID != tenantID {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, "job not found", nil).
			WithDetail("job_id", jobID.String())
	}

	if job.Status == models.JobPending {
		job.Status = models.JobCancelled
		job.UpdatedAt = time.Now()
	}
	return snapshot(job), nil
}

// transition applies a terminal transition if the job is still running.
// Late completions of already-cancelled jobs are dropped.
func (s *Store) transition(jobID uuid.UUID, to models.JobStatus, apply func(*models.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = to
	job.UpdatedAt = time.Now()
	if apply != nil {
		apply(job)
	}
}

func snapshot(job *models.Job) *models.Job {
	copied := *job
	copied.Payload = append([]models.IngestRequest(nil), job.Payload...)
	copied.Result = append([]models.IngestSummary(nil), job.Result...)
	return &copied
}
