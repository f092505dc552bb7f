package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"git.home.luguber.info/inful/bookversions/internal/jobs"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
)

// JobEvent is one message of a job event stream.
type JobEvent struct {
	Type      string    `json:"type"` // connected, progress, completed, failed, timeout
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	Job       *jobs.Job `json:"job,omitempty"`
}

// JobList is the response of GET /api/jobs.
type JobList struct {
	Active  []*jobs.Job `json:"active"`
	History []*jobs.Job `json:"history"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	q := s.jobs.Queue()
	s.Success(w, http.StatusOK, JobList{Active: q.ActiveJobs(), History: q.History()})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.jobs.Snapshot(id)
	if !ok {
		s.fail(w, r, jobs.ErrUnknownJob)
		return
	}
	s.Success(w, http.StatusOK, job)
}

// handleJobEvents streams a job's progress as server-sent events until it finishes.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.jobs.Snapshot(id)
	if !ok {
		s.fail(w, r, jobs.ErrUnknownJob)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	log := s.logger.With(logfields.JobID(id))
	log.Debug("Job event stream opened")
	s.sendSSEEvent(w, JobEvent{Type: "connected", JobID: id, Timestamp: time.Now(), Job: job})

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	timeout := time.After(s.streamTimeout)
	last := job.Progress
	for {
		if job.Status.Done() {
			s.sendSSEEvent(w, JobEvent{Type: string(job.Status), JobID: id, Timestamp: time.Now(), Job: job})
			log.Debug("Job event stream closed", logfields.JobStatus(string(job.Status)))
			return
		}
		select {
		case <-r.Context().Done():
			log.Debug("Job event stream closed (client disconnect)")
			return
		case <-timeout:
			s.sendSSEEvent(w, JobEvent{Type: "timeout", JobID: id, Timestamp: time.Now()})
			return
		case <-ticker.C:
		}
		if job, ok = s.jobs.Snapshot(id); !ok {
			return
		}
		if job.Progress != last {
			last = job.Progress
			s.sendSSEEvent(w, JobEvent{Type: "progress", JobID: id, Timestamp: time.Now(), Job: job})
		}
	}
}

func (s *Server) sendSSEEvent(w http.ResponseWriter, event JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal job event", logfields.Error(err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	} else {
		s.logger.Warn("Response writer does not support flushing", slog.String("job_id", event.JobID))
	}
}
