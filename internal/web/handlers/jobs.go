package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// TrainJob represents an async training run.
type TrainJob struct {
	EventBroadcaster

	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Sorted      bool            `json:"sorted"`
	Progress    int             `json:"progress"`
	TotalImages int             `json:"total_images"`
	Processed   int             `json:"processed_images"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      *TrainJobResult `json:"result,omitempty"`
}

// TrainJobResult is the outcome of a finished training job.
type TrainJobResult struct {
	People     int            `json:"people"`
	Images     int            `json:"images"`
	Encoded    int            `json:"encoded"`
	NoFace     int            `json:"no_face"`
	Unreadable int            `json:"unreadable"`
	PerPerson  map[string]int `json:"per_person"`
	Model      string         `json:"model"`
	Dim        int            `json:"dim"`
	DurationMs int64          `json:"duration_ms"`
}

// GetStatus returns the current job status.
func (j *TrainJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// snapshot returns a copy safe to encode while the job runs.
func (j *TrainJob) snapshot() *TrainJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &TrainJob{
		ID:          j.ID,
		Status:      j.Status,
		Sorted:      j.Sorted,
		Progress:    j.Progress,
		TotalImages: j.TotalImages,
		Processed:   j.Processed,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}

// Cancel cancels the training job.
func (j *TrainJob) Cancel() {
	j.EventBroadcaster.Cancel()
	j.mu.Lock()
	if j.Status == JobStatusPending || j.Status == JobStatusRunning {
		j.Status = JobStatusCancelled
	}
	j.mu.Unlock()
}

func (j *TrainJob) finish(status JobStatus, message string, result *TrainJobResult) {
	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != JobStatusCancelled {
		j.Status = status
	}
	j.Error = message
	j.Result = result
	j.CompletedAt = &now
	if status == JobStatusCompleted {
		j.Progress = 100
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// JobManager tracks training jobs. At most one job runs at a time.
type JobManager struct {
	jobs   map[string]*TrainJob
	active *TrainJob
	mu     sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*TrainJob),
	}
}

// CreateJob registers a pending job unless another one is still running, in
// which case it returns nil and the running job.
func (m *JobManager) CreateJob(id string, sorted bool) (job, running *TrainJob) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && !isJobTerminal(m.active.GetStatus()) {
		return nil, m.active
	}

	job = &TrainJob{
		ID:        id,
		Status:    JobStatusPending,
		Sorted:    sorted,
		StartedAt: time.Now(),
	}
	m.jobs[id] = job
	m.active = job
	m.prune()
	return job, nil
}

// prune drops the oldest finished jobs beyond MaxFinishedJobs. Callers hold mu.
func (m *JobManager) prune() {
	var finished []*TrainJob
	for _, j := range m.jobs {
		if isJobTerminal(j.GetStatus()) {
			finished = append(finished, j)
		}
	}
	if len(finished) <= constants.MaxFinishedJobs {
		return
	}
	sort.Slice(finished, func(a, b int) bool { return finished[a].StartedAt.Before(finished[b].StartedAt) })
	for _, j := range finished[:len(finished)-constants.MaxFinishedJobs] {
		delete(m.jobs, j.ID)
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *TrainJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, newest first.
func (m *JobManager) ListJobs() []*TrainJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*TrainJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].StartedAt.After(jobs[b].StartedAt) })
	return jobs
}
