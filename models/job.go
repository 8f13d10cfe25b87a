package models

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of asynchronous work a job carries.
type JobType string

const (
	JobTypeIngest      JobType = "ingest"
	JobTypeBatchIngest JobType = "batch_ingest"
)

// JobStatus is the lifecycle state of a job. Transitions are monotonic:
// pending -> running -> completed|failed, pending|running -> cancelled.
// There is no transition out of a terminal state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// IngestRequest is the payload for ingest jobs and the synchronous
// ingestion endpoint.
type IngestRequest struct {
	DocumentID string            `json:"document_id" validate:"required"`
	Text       string            `json:"text" validate:"required"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IngestSummary reports what a completed ingestion wrote.
type IngestSummary struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// Job tracks one asynchronous ingestion through its lifecycle.
type Job struct {
	ID        uuid.UUID       `json:"id"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Type      JobType         `json:"type"`
	Status    JobStatus       `json:"status"`
	Payload   []IngestRequest `json:"payload,omitempty"`
	Result    []IngestSummary `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewJob creates a pending job for the given tenant and payload.
func NewJob(tenantID uuid.UUID, jobType JobType, payload []IngestRequest) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Type:      jobType,
		Status:    JobPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
