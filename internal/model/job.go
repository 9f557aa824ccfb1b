package model

import (
	"github.com/google/uuid"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusConverting  JobStatus = "converting"
	JobStatusComplete    JobStatus = "complete"
	JobStatusFailed      JobStatus = "failed"
)

// IsActive returns true while the job occupies a concurrency slot.
// Active jobs may not be deleted.
func (s JobStatus) IsActive() bool {
	return s == JobStatusDownloading || s == JobStatusConverting
}

// IsTerminal returns true once the job can make no further progress
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// CanTransition enforces the allowed status edges
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusDownloading
	case JobStatusDownloading:
		return to == JobStatusConverting || to == JobStatusComplete || to == JobStatusFailed
	case JobStatusConverting:
		return to == JobStatusComplete || to == JobStatusFailed
	default:
		return false
	}
}

// Job represents a single download-and-optionally-convert unit of work.
// Fields are mutated only by the state store applying updates.
type Job struct {
	ID         uuid.UUID
	URL        string
	Title      string
	Status     JobStatus
	Progress   float64 // 0-100
	Speed      string  // human readable, e.g. "1.2MiB/s"
	Eta        string  // human readable, e.g. "00:42"
	Err        string
	TempPath   string
	OutputPath string
}

// NewJob creates a queued job for a submitted URL
func NewJob(url string) Job {
	return Job{
		ID:     uuid.New(),
		URL:    url,
		Status: JobStatusQueued,
	}
}

const maxURLTitleLen = 40

// DisplayTitle returns the job title, falling back to a truncated URL
func (j *Job) DisplayTitle() string {
	if j.Title != "" {
		return j.Title
	}
	if len(j.URL) > maxURLTitleLen {
		return j.URL[:maxURLTitleLen] + "..."
	}
	return j.URL
}
