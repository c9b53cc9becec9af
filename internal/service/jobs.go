package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job represents a background backfill.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"` // "backfill"
	Status      JobStatus       `json:"status"`
	UserID      string          `json:"user_id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Progress    int             `json:"progress"`
	Total       int             `json:"total"`
	Result      *BackfillResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// JobManager tracks and runs background jobs in memory.
type JobManager struct {
	jobs    map[string]*Job
	mu      sync.RWMutex
	diaries *DiaryService
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewJobManager creates a new job manager.
func NewJobManager(diaries *DiaryService, logger *slog.Logger) *JobManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		jobs:    make(map[string]*Job),
		diaries: diaries,
		logger:  logger,
	}
}

// StartBackfill validates the range and runs the backfill in the background.
func (m *JobManager) StartBackfill(userID string, from, to time.Time) (*Job, error) {
	loc := m.diaries.Location()
	days, err := DaysBetween(from, to, loc)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Type:      "backfill",
		Status:    JobStatusPending,
		UserID:    userID,
		From:      days[0].Format("2006-01-02"),
		To:        days[len(days)-1].Format("2006-01-02"),
		Total:     len(days),
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info("job created", "job_id", job.ID, "type", job.Type, "user_id", userID, "days", len(days))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("job goroutine panicked", "job_id", job.ID, "panic", r)
				m.fail(job, fmt.Errorf("internal panic: %v", r))
			}
		}()

		job.setStatus(JobStatusRunning)
		res, err := m.diaries.Backfill(context.Background(), userID, from, to, func(step BackfillStep) {
			job.mu.Lock()
			job.Progress = step.Index
			job.mu.Unlock()
		})
		if err != nil {
			m.fail(job, err)
			return
		}
		m.complete(job, res)
	}()

	return job, nil
}

// Wait blocks until all started jobs have finished.
func (m *JobManager) Wait() {
	m.wg.Wait()
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}

	// Sort by start time descending (most recent first)
	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})

	return jobs
}

func (j *Job) setStatus(s JobStatus) {
	j.mu.Lock()
	j.Status = s
	j.mu.Unlock()
}

func (m *JobManager) complete(job *Job, res BackfillResult) {
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.Result = &res
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Info("job completed", "job_id", job.ID, "written", res.Written, "skipped", res.Skipped, "failed", res.Failed)
}

func (m *JobManager) fail(job *Job, err error) {
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	m.logger.Error("job failed", "job_id", job.ID, "error", err)
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Job{
		ID:          j.ID,
		Type:        j.Type,
		Status:      j.Status,
		UserID:      j.UserID,
		From:        j.From,
		To:          j.To,
		Progress:    j.Progress,
		Total:       j.Total,
		Result:      j.Result,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
