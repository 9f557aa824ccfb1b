package state

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cuivienor/carbon/internal/model"
)

// Counts aggregates job statuses for the footer display
type Counts struct {
	Active   int
	Queued   int
	Complete int
	Failed   int
}

// record wraps a job with dispatch bookkeeping. The dispatched flag marks
// jobs already handed to the queue so a dispatch tick racing the update
// applier cannot start the same job twice.
type record struct {
	job        model.Job
	dispatched bool
}

// Store is the single source of truth for all jobs. One mutex guards both
// the render reads and the update writes; every mutation of a job's fields
// goes through Apply.
type Store struct {
	mu       sync.RWMutex
	jobs     []*record
	selected int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Submit creates a queued job for a URL and returns its ID
func (s *Store) Submit(url string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := model.NewJob(url)
	s.jobs = append(s.jobs, &record{job: job})
	return job.ID
}

// Apply mutates a job according to one update. Updates referencing an
// unknown job are dropped; the job may have been deleted concurrently.
func (s *Store) Apply(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(ev.JobID)
	if rec == nil {
		return
	}

	switch u := ev.Update.(type) {
	case model.StatusUpdate:
		rec.job.Status = u.Status
	case model.ProgressUpdate:
		rec.job.Progress = u.Percent
	case model.SpeedUpdate:
		rec.job.Speed = u.Speed
	case model.EtaUpdate:
		rec.job.Eta = u.Eta
	case model.TitleUpdate:
		rec.job.Title = u.Title
	case model.ErrorUpdate:
		rec.job.Err = u.Message
	case model.TempPathUpdate:
		rec.job.TempPath = u.Path
	case model.OutputPathUpdate:
		rec.job.OutputPath = u.Path
	}
}

// Delete removes a job unless it is active. Returns true if removed.
func (s *Store) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.jobs {
		if rec.job.ID != id {
			continue
		}
		if rec.job.Status.IsActive() {
			return false
		}
		s.removeAt(i)
		return true
	}
	return false
}

// DeleteSelected removes the currently selected job unless it is active
func (s *Store) DeleteSelected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected >= len(s.jobs) {
		return false
	}
	if s.jobs[s.selected].job.Status.IsActive() {
		return false
	}
	s.removeAt(s.selected)
	return true
}

// ClearCompleted drops all jobs in complete status
func (s *Store) ClearCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.jobs[:0]
	for _, rec := range s.jobs {
		if rec.job.Status != model.JobStatusComplete {
			kept = append(kept, rec)
		}
	}
	s.jobs = kept
	s.clampSelection()
}

// ClaimQueued returns queued jobs not yet handed to the queue, marking
// them claimed. Each job is returned exactly once across all calls.
func (s *Store) ClaimQueued() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []model.Job
	for _, rec := range s.jobs {
		if rec.job.Status == model.JobStatusQueued && !rec.dispatched {
			rec.dispatched = true
			claimed = append(claimed, rec.job)
		}
	}
	return claimed
}

// Snapshot returns a copy of all jobs in submission order plus counts
func (s *Store) Snapshot() ([]model.Job, Counts) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]model.Job, len(s.jobs))
	var counts Counts
	for i, rec := range s.jobs {
		jobs[i] = rec.job
		switch {
		case rec.job.Status.IsActive():
			counts.Active++
		case rec.job.Status == model.JobStatusQueued:
			counts.Queued++
		case rec.job.Status == model.JobStatusComplete:
			counts.Complete++
		case rec.job.Status == model.JobStatusFailed:
			counts.Failed++
		}
	}
	return jobs, counts
}

// Get returns a job by ID
func (s *Store) Get(id uuid.UUID) (model.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec := s.find(id); rec != nil {
		return rec.job, true
	}
	return model.Job{}, false
}

// Len returns the number of jobs
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Selected returns the currently selected index
func (s *Store) Selected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// MoveUp moves the selection toward the top of the list
func (s *Store) MoveUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected > 0 {
		s.selected--
	}
}

// MoveDown moves the selection toward the bottom of the list
func (s *Store) MoveDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected < len(s.jobs)-1 {
		s.selected++
	}
}

func (s *Store) find(id uuid.UUID) *record {
	for _, rec := range s.jobs {
		if rec.job.ID == id {
			return rec
		}
	}
	return nil
}

func (s *Store) removeAt(i int) {
	s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
	s.clampSelection()
}

func (s *Store) clampSelection() {
	if s.selected >= len(s.jobs) && s.selected > 0 {
		s.selected = len(s.jobs) - 1
	}
}
