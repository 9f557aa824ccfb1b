package model

import "github.com/google/uuid"

// Update is one change to apply to a job's state. Each kind carries a
// single payload so the store's apply logic stays exhaustive.
type Update interface {
	isUpdate()
}

// StatusUpdate moves the job to a new status
type StatusUpdate struct {
	Status JobStatus
}

// ProgressUpdate reports phase progress in percent (0-100)
type ProgressUpdate struct {
	Percent float64
}

// SpeedUpdate reports the current transfer rate as text
type SpeedUpdate struct {
	Speed string
}

// EtaUpdate reports the estimated time remaining as text
type EtaUpdate struct {
	Eta string
}

// TitleUpdate sets the human readable title
type TitleUpdate struct {
	Title string
}

// ErrorUpdate attaches a failure message
type ErrorUpdate struct {
	Message string
}

// TempPathUpdate records where the download phase is writing
type TempPathUpdate struct {
	Path string
}

// OutputPathUpdate records the final output file
type OutputPathUpdate struct {
	Path string
}

func (StatusUpdate) isUpdate()     {}
func (ProgressUpdate) isUpdate()   {}
func (SpeedUpdate) isUpdate()      {}
func (EtaUpdate) isUpdate()        {}
func (TitleUpdate) isUpdate()      {}
func (ErrorUpdate) isUpdate()      {}
func (TempPathUpdate) isUpdate()   {}
func (OutputPathUpdate) isUpdate() {}

// Event pairs an update with the job it belongs to
type Event struct {
	JobID  uuid.UUID
	Update Update
}
