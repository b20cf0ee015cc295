package store

import (
	"context"
	"sync"
	"time"

	"github.com/panosadamop/maqam-tab/internal/maqam"
	"github.com/panosadamop/maqam-tab/internal/music"
)

// Status is the job lifecycle state. Workers only ever advance it
// forward; cancellation is the one transition an outside caller may
// apply.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusConverting  Status = "converting"
	StatusAnalyzing   Status = "analyzing"
	StatusDone        Status = "done"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError || s == StatusCancelled
}

// Job is one in-flight transcription request. A single worker owns all
// writes to a given job; pollers only ever see snapshots.
type Job struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Status    Status        `json:"status"`
	Progress  int           `json:"progress"` // 0-100
	Stage     string        `json:"stage"`
	Tempo     int           `json:"tempo"`
	Notes     []music.Note  `json:"notes"`
	Maqam     *maqam.Result `json:"maqam"`
	Title     string        `json:"title,omitempty"`
	Duration  float64       `json:"duration,omitempty"` // source length, seconds
	Language  string        `json:"language,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`

	cancel context.CancelFunc
}

// MaxAge is how long finished or abandoned jobs linger before Sweep
// removes them.
const MaxAge = 3600 * time.Second

// Store is the process-wide registry of jobs. All access is serialized
// through one mutex; per-job write exclusivity comes from the
// single-worker-per-id convention, not from here.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// New creates an empty job store.
func New() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create inserts a new pending job and returns a snapshot of it. cancel
// may be nil for synchronous callers.
func (s *Store) Create(id, source string, cancel context.CancelFunc) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:        id,
		Source:    source,
		Status:    StatusPending,
		Progress:  0,
		Stage:     "Starting...",
		Tempo:     music.DefaultTempo,
		CreatedAt: time.Now(),
		cancel:    cancel,
	}
	s.jobs[id] = job
	return *job
}

// Update applies fn to the job under the store lock. A missing id is a
// no-op, never an error.
func (s *Store) Update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	snapshot := *job
	snapshot.Notes = append([]music.Note(nil), job.Notes...)
	return snapshot, true
}

// Cancel marks a non-terminal job cancelled and signals its worker's
// context. Returns false when the id is unknown.
func (s *Store) Cancel(id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	var cancel context.CancelFunc
	if ok && !job.Status.Terminal() {
		job.Status = StatusCancelled
		job.Stage = "Cancelled"
		cancel = job.cancel
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return ok
}

// Sweep deletes every job older than MaxAge and returns how many were
// removed. Called opportunistically at the start of each pipeline run.
func (s *Store) Sweep() int {
	cutoff := time.Now().Add(-MaxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Len reports how many jobs are registered.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// SetStage advances a job's status, progress and stage text unless the
// job was cancelled; a cancelled terminal state is never overwritten.
func (s *Store) SetStage(id string, status Status, progress int, stage string) {
	s.Update(id, func(j *Job) {
		if j.Status == StatusCancelled {
			return
		}
		j.Status = status
		j.Progress = progress
		j.Stage = stage
	})
}

// SetProgress updates progress and stage text without touching status.
func (s *Store) SetProgress(id string, progress int, stage string) {
	s.Update(id, func(j *Job) {
		if j.Status == StatusCancelled {
			return
		}
		j.Progress = progress
		j.Stage = stage
	})
}

// Fail moves a job to the error state with a truncated message.
func (s *Store) Fail(id, msg string) {
	s.Update(id, func(j *Job) {
		if j.Status == StatusCancelled {
			return
		}
		j.Status = StatusError
		j.Error = msg
		j.Stage = "Error: " + msg
	})
}
