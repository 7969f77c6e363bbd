package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// Trainer runs a training pass. attendance.Service implements it.
type Trainer interface {
	Train(ctx context.Context, opts attendance.TrainOptions) (*attendance.TrainResult, error)
}

// TrainHandler runs training jobs in the background.
type TrainHandler struct {
	trainer    Trainer
	jobManager *JobManager
}

// NewTrainHandler creates a new train handler
func NewTrainHandler(trainer Trainer, jm *JobManager) *TrainHandler {
	return &TrainHandler{
		trainer:    trainer,
		jobManager: jm,
	}
}

// TrainRequest is the optional body of POST /train.
type TrainRequest struct {
	Sorted bool `json:"sorted"`
}

// Start starts a new training job. Only one job runs at a time; a second
// request while one is running gets 409 with the running job's id.
func (h *TrainHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	job, running := h.jobManager.CreateJob(uuid.New().String(), req.Sorted)
	if job == nil {
		respondJSON(w, http.StatusConflict, map[string]string{
			"error":  "training already running",
			"job_id": running.ID,
		})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)
	go h.runTrainJob(ctx, cancel, job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(JobStatusPending),
	})
}

// List returns all known training jobs, newest first.
func (h *TrainHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobManager.ListJobs()
	out := make([]*TrainJob, len(jobs))
	for i, j := range jobs {
		out[i] = j.snapshot()
	}
	respondJSON(w, http.StatusOK, out)
}

// Status returns the status of a training job
func (h *TrainHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.snapshot())
}

// Events streams job events via SSE
func (h *TrainHandler) Events(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	streamTrainEvents(w, r, job)
}

// Cancel cancels a training job
func (h *TrainHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *TrainHandler) lookup(w http.ResponseWriter, r *http.Request) *TrainJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// runTrainJob runs the training job in the background
func (h *TrainHandler) runTrainJob(ctx context.Context, cancel context.CancelFunc, job *TrainJob) {
	defer cancel()

	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Training started"})

	res, err := h.trainer.Train(ctx, attendance.TrainOptions{
		Sorted: job.Sorted,
		Progress: func(p attendance.TrainProgress) {
			job.mu.Lock()
			job.TotalImages = p.Total
			job.Processed = p.Done
			job.Progress = p.Done * 100 / p.Total
			job.mu.Unlock()
			job.SendEvent(JobEvent{
				Type: "progress",
				Data: map[string]any{
					"person":  p.Person,
					"status":  p.Status,
					"current": p.Done,
					"total":   p.Total,
				},
			})
		},
	})

	if err != nil {
		if ctx.Err() != nil {
			job.finish(JobStatusCancelled, "", nil)
			job.SendEvent(JobEvent{Type: "cancelled", Message: "Job was cancelled"})
			return
		}
		log.Printf("training job %s failed: %s", job.ID, sanitizeForLog(err.Error()))
		job.finish(JobStatusFailed, err.Error(), nil)
		job.SendEvent(JobEvent{Type: "job_error", Message: err.Error()})
		return
	}

	result := &TrainJobResult{
		People:     res.People,
		Images:     res.Images,
		Encoded:    res.Encoded,
		NoFace:     res.NoFace,
		Unreadable: res.Unreadable,
		PerPerson:  res.PerPerson,
		Model:      res.Model,
		Dim:        res.Dim,
		DurationMs: res.Duration.Milliseconds(),
	}
	job.finish(JobStatusCompleted, "", result)
	job.SendEvent(JobEvent{Type: "completed", Data: result})
}
