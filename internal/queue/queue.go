package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cuivienor/carbon/internal/convert"
	"github.com/cuivienor/carbon/internal/download"
	"github.com/cuivienor/carbon/internal/model"
)

// Downloader fetches a URL and reports parsed progress while running
type Downloader interface {
	Download(ctx context.Context, url, quality, outputDir string, emit download.EmitFunc) (title, path string, err error)
}

// Converter transcodes a downloaded file and reports progress
type Converter interface {
	Convert(ctx context.Context, inputPath, outputDir string, emit convert.EmitFunc) (outputPath string, err error)
}

// Options configures a Queue
type Options struct {
	MaxConcurrent int
	OutputDir     string
	AutoConvert   bool
	Logger        *logrus.Logger
}

// Queue runs each started job through the download/convert pipeline as
// its own goroutine, bounded by a counting admission gate. Jobs report
// state exclusively through the update stream; the queue never touches
// the store.
type Queue struct {
	sem        chan struct{}
	stream     *updateStream
	downloader Downloader
	converter  Converter
	opts       Options
	log        *logrus.Logger
}

// New creates a job queue
func New(opts Options, downloader Downloader, converter Converter) *Queue {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Queue{
		sem:        make(chan struct{}, opts.MaxConcurrent),
		stream:     newUpdateStream(),
		downloader: downloader,
		converter:  converter,
		opts:       opts,
		log:        opts.Logger,
	}
}

// Updates is the single ordered stream of job updates. Updates for one
// job arrive in causal order; updates across jobs may interleave.
func (q *Queue) Updates() <-chan model.Event {
	return q.stream.Events()
}

// AvailableSlots returns how many jobs could start without waiting
func (q *Queue) AvailableSlots() int {
	return cap(q.sem) - len(q.sem)
}

// StartJob enqueues the full pipeline for a job and returns immediately.
// The caller guarantees each job is started at most once.
func (q *Queue) StartJob(jobID uuid.UUID, url, quality string) {
	go q.run(jobID, url, quality)
}

func (q *Queue) run(jobID uuid.UUID, url, quality string) {
	q.sem <- struct{}{}
	defer func() { <-q.sem }()

	defer func() {
		if r := recover(); r != nil {
			q.log.WithField("job", jobID).Errorf("job panicked: %v", r)
			q.emit(jobID, model.ErrorUpdate{Message: fmt.Sprintf("job panicked: %v", r)})
			q.emit(jobID, model.StatusUpdate{Status: model.JobStatusFailed})
		}
	}()

	// No cancellation: once started, a job runs to completion or failure
	ctx := context.Background()
	log := q.log.WithFields(logrus.Fields{"job": jobID, "url": url})

	q.emit(jobID, model.StatusUpdate{Status: model.JobStatusDownloading})
	q.emit(jobID, model.ProgressUpdate{Percent: 0})

	title, tempPath, err := q.downloader.Download(ctx, url, quality, q.opts.OutputDir, func(u model.Update) {
		q.emit(jobID, u)
	})
	if err != nil {
		log.WithError(err).Error("download failed")
		q.emit(jobID, model.ErrorUpdate{Message: fmt.Sprintf("Download failed: %v", err)})
		q.emit(jobID, model.StatusUpdate{Status: model.JobStatusFailed})
		return
	}

	q.emit(jobID, model.TitleUpdate{Title: title})

	if !q.opts.AutoConvert {
		q.emit(jobID, model.OutputPathUpdate{Path: tempPath})
		q.emit(jobID, model.ProgressUpdate{Percent: 100})
		q.emit(jobID, model.StatusUpdate{Status: model.JobStatusComplete})
		log.Info("job complete")
		return
	}

	q.emit(jobID, model.StatusUpdate{Status: model.JobStatusConverting})
	q.emit(jobID, model.ProgressUpdate{Percent: 0})

	outputPath, err := q.converter.Convert(ctx, tempPath, q.opts.OutputDir, func(u model.Update) {
		q.emit(jobID, u)
	})
	if err != nil {
		log.WithError(err).Error("conversion failed")
		q.emit(jobID, model.ErrorUpdate{Message: fmt.Sprintf("Conversion failed: %v", err)})
		q.emit(jobID, model.StatusUpdate{Status: model.JobStatusFailed})
		return
	}

	q.emit(jobID, model.OutputPathUpdate{Path: outputPath})
	q.emit(jobID, model.ProgressUpdate{Percent: 100})
	q.emit(jobID, model.StatusUpdate{Status: model.JobStatusComplete})
	log.Info("job complete")
}

func (q *Queue) emit(jobID uuid.UUID, update model.Update) {
	q.stream.Send(model.Event{JobID: jobID, Update: update})
}
