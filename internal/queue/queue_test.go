package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cuivienor/carbon/internal/convert"
	"github.com/cuivienor/carbon/internal/download"
	"github.com/cuivienor/carbon/internal/model"
)

type fakeDownloader struct {
	fn func(ctx context.Context, url, quality, outputDir string, emit download.EmitFunc) (string, string, error)
}

func (f *fakeDownloader) Download(ctx context.Context, url, quality, outputDir string, emit download.EmitFunc) (string, string, error) {
	return f.fn(ctx, url, quality, outputDir, emit)
}

type fakeConverter struct {
	fn func(ctx context.Context, inputPath, outputDir string, emit convert.EmitFunc) (string, error)
}

func (f *fakeConverter) Convert(ctx context.Context, inputPath, outputDir string, emit convert.EmitFunc) (string, error) {
	return f.fn(ctx, inputPath, outputDir, emit)
}

func okDownloader(title, path string) *fakeDownloader {
	return &fakeDownloader{fn: func(context.Context, string, string, string, download.EmitFunc) (string, string, error) {
		return title, path, nil
	}}
}

func okConverter(path string) *fakeConverter {
	return &fakeConverter{fn: func(context.Context, string, string, convert.EmitFunc) (string, error) {
		return path, nil
	}}
}

// collectUpdates reads the queue's stream until want jobs have reached a
// terminal status, returning per-job update sequences
func collectUpdates(t *testing.T, q *Queue, want int) map[uuid.UUID][]model.Update {
	t.Helper()

	updates := make(map[uuid.UUID][]model.Update)
	terminal := 0
	timeout := time.After(5 * time.Second)

	for terminal < want {
		select {
		case ev := <-q.Updates():
			updates[ev.JobID] = append(updates[ev.JobID], ev.Update)
			if s, ok := ev.Update.(model.StatusUpdate); ok && s.Status.IsTerminal() {
				terminal++
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %d jobs to finish (got %d)", want, terminal)
		}
	}
	return updates
}

// assertLegalStatusSequence checks that the observed statuses walk only
// allowed edges from queued
func assertLegalStatusSequence(t *testing.T, updates []model.Update) {
	t.Helper()

	prev := model.JobStatusQueued
	for _, u := range updates {
		s, ok := u.(model.StatusUpdate)
		if !ok {
			continue
		}
		if !model.CanTransition(prev, s.Status) {
			t.Errorf("illegal transition %s -> %s", prev, s.Status)
		}
		prev = s.Status
	}
}

func TestQueue_SuccessWithAutoConvert(t *testing.T) {
	q := New(Options{MaxConcurrent: 1, OutputDir: "/out", AutoConvert: true},
		okDownloader("clip", "/out/.temp/dl-1/clip.mp4"),
		okConverter("/out/clip_davinci.mp4"))

	id := uuid.New()
	q.StartJob(id, "https://example.com/v", "best")

	got := collectUpdates(t, q, 1)[id]
	want := []model.Update{
		model.StatusUpdate{Status: model.JobStatusDownloading},
		model.ProgressUpdate{Percent: 0},
		model.TitleUpdate{Title: "clip"},
		model.StatusUpdate{Status: model.JobStatusConverting},
		model.ProgressUpdate{Percent: 0},
		model.OutputPathUpdate{Path: "/out/clip_davinci.mp4"},
		model.ProgressUpdate{Percent: 100},
		model.StatusUpdate{Status: model.JobStatusComplete},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d updates, want %d: %#v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("updates[%d] = %#v, want %#v", i, got[i], want[i])
		}
	}
	assertLegalStatusSequence(t, got)
}

func TestQueue_SuccessWithoutAutoConvert(t *testing.T) {
	q := New(Options{MaxConcurrent: 1, OutputDir: "/out", AutoConvert: false},
		okDownloader("clip", "/out/.temp/dl-1/clip.mp4"),
		okConverter("unused"))

	id := uuid.New()
	q.StartJob(id, "u", "best")

	got := collectUpdates(t, q, 1)[id]
	want := []model.Update{
		model.StatusUpdate{Status: model.JobStatusDownloading},
		model.ProgressUpdate{Percent: 0},
		model.TitleUpdate{Title: "clip"},
		model.OutputPathUpdate{Path: "/out/.temp/dl-1/clip.mp4"},
		model.ProgressUpdate{Percent: 100},
		model.StatusUpdate{Status: model.JobStatusComplete},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d updates, want %d: %#v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("updates[%d] = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestQueue_DownloadFailure(t *testing.T) {
	q := New(Options{MaxConcurrent: 1, AutoConvert: true},
		&fakeDownloader{fn: func(context.Context, string, string, string, download.EmitFunc) (string, string, error) {
			return "", "", errors.New("network error")
		}},
		okConverter("unused"))

	id := uuid.New()
	q.StartJob(id, "u", "best")

	got := collectUpdates(t, q, 1)[id]
	last := got[len(got)-1]
	if s, ok := last.(model.StatusUpdate); !ok || s.Status != model.JobStatusFailed {
		t.Fatalf("last update = %#v, want Status failed", last)
	}

	var errMsg string
	for _, u := range got {
		if e, ok := u.(model.ErrorUpdate); ok {
			errMsg = e.Message
		}
	}
	if errMsg != "Download failed: network error" {
		t.Errorf("error = %q, want 'Download failed: network error'", errMsg)
	}
}

func TestQueue_ConversionFailure(t *testing.T) {
	q := New(Options{MaxConcurrent: 1, AutoConvert: true},
		okDownloader("clip", "/tmp/clip.mp4"),
		&fakeConverter{fn: func(context.Context, string, string, convert.EmitFunc) (string, error) {
			return "", errors.New("unsupported codec")
		}})

	id := uuid.New()
	q.StartJob(id, "u", "best")

	got := collectUpdates(t, q, 1)[id]
	last := got[len(got)-1]
	if s, ok := last.(model.StatusUpdate); !ok || s.Status != model.JobStatusFailed {
		t.Fatalf("last update = %#v, want Status failed", last)
	}

	var errMsg string
	for _, u := range got {
		if e, ok := u.(model.ErrorUpdate); ok {
			errMsg = e.Message
		}
	}
	if errMsg != "Conversion failed: unsupported codec" {
		t.Errorf("error = %q, want 'Conversion failed: unsupported codec'", errMsg)
	}
	assertLegalStatusSequence(t, got)
}

func TestQueue_ConcurrencyCap(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0
	started := make(chan struct{}, 3)
	release := make(chan struct{})

	dl := &fakeDownloader{fn: func(context.Context, string, string, string, download.EmitFunc) (string, string, error) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()
		started <- struct{}{}

		<-release

		mu.Lock()
		inflight--
		mu.Unlock()
		return "clip", "/tmp/clip.mp4", nil
	}}

	q := New(Options{MaxConcurrent: 2, AutoConvert: false}, dl, okConverter("unused"))

	for i := 0; i < 3; i++ {
		q.StartJob(uuid.New(), fmt.Sprintf("u%d", i), "best")
	}

	// Exactly two downloads start; the third waits on the gate.
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for downloads to start")
		}
	}
	select {
	case <-started:
		t.Fatal("third job started before a slot freed")
	case <-time.After(100 * time.Millisecond):
	}

	// Freeing one slot admits the third job.
	release <- struct{}{}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("third job never started after a slot freed")
	}

	release <- struct{}{}
	release <- struct{}{}

	updates := collectUpdates(t, q, 3)
	for id, seq := range updates {
		assertLegalStatusSequence(t, seq)
		last := seq[len(seq)-1]
		if s, ok := last.(model.StatusUpdate); !ok || s.Status != model.JobStatusComplete {
			t.Errorf("job %s last update = %#v, want complete", id, last)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if peak != 2 {
		t.Errorf("peak concurrent downloads = %d, want 2", peak)
	}
}

func TestQueue_SlotReleasedAfterFailure(t *testing.T) {
	dl := &fakeDownloader{fn: func(_ context.Context, url, _, _ string, _ download.EmitFunc) (string, string, error) {
		if url == "u1" {
			return "", "", errors.New("network error")
		}
		return "clip", "/tmp/clip.mp4", nil
	}}

	q := New(Options{MaxConcurrent: 1, AutoConvert: false}, dl, okConverter("unused"))

	first, second := uuid.New(), uuid.New()
	q.StartJob(first, "u1", "best")
	q.StartJob(second, "u2", "best")

	updates := collectUpdates(t, q, 2)

	lastOf := func(id uuid.UUID) model.JobStatus {
		seq := updates[id]
		s := seq[len(seq)-1].(model.StatusUpdate)
		return s.Status
	}
	// The failing job frees its slot, so the other still completes.
	if got := lastOf(first); got != model.JobStatusFailed {
		t.Errorf("first job status = %s, want failed", got)
	}
	if got := lastOf(second); got != model.JobStatusComplete {
		t.Errorf("second job status = %s, want complete", got)
	}
}

func TestQueue_PanicReleasesSlotAndFailsJob(t *testing.T) {
	dl := &fakeDownloader{fn: func(_ context.Context, url, _, _ string, _ download.EmitFunc) (string, string, error) {
		if url == "u1" {
			panic("downloader exploded")
		}
		return "clip", "/tmp/clip.mp4", nil
	}}

	q := New(Options{MaxConcurrent: 1, AutoConvert: false}, dl, okConverter("unused"))

	panicked, healthy := uuid.New(), uuid.New()
	q.StartJob(panicked, "u1", "best")
	q.StartJob(healthy, "u2", "best")

	updates := collectUpdates(t, q, 2)

	seq := updates[panicked]
	last := seq[len(seq)-1]
	if s, ok := last.(model.StatusUpdate); !ok || s.Status != model.JobStatusFailed {
		t.Errorf("panicked job last update = %#v, want failed", last)
	}

	seq = updates[healthy]
	last = seq[len(seq)-1]
	if s, ok := last.(model.StatusUpdate); !ok || s.Status != model.JobStatusComplete {
		t.Errorf("healthy job last update = %#v, want complete", last)
	}
}

func TestQueue_DownloaderEmissionsAreForwarded(t *testing.T) {
	dl := &fakeDownloader{fn: func(_ context.Context, _, _, _ string, emit download.EmitFunc) (string, string, error) {
		emit(model.ProgressUpdate{Percent: 42.5})
		emit(model.SpeedUpdate{Speed: "1.2MiB/s"})
		return "clip", "/tmp/clip.mp4", nil
	}}

	q := New(Options{MaxConcurrent: 1, AutoConvert: false}, dl, okConverter("unused"))

	id := uuid.New()
	q.StartJob(id, "u", "best")

	got := collectUpdates(t, q, 1)[id]

	var sawProgress, sawSpeed bool
	for _, u := range got {
		switch v := u.(type) {
		case model.ProgressUpdate:
			if v.Percent == 42.5 {
				sawProgress = true
			}
		case model.SpeedUpdate:
			sawSpeed = v.Speed == "1.2MiB/s"
		}
	}
	if !sawProgress || !sawSpeed {
		t.Errorf("forwarded updates missing: progress=%v speed=%v", sawProgress, sawSpeed)
	}
}

func TestQueue_DefaultMaxConcurrent(t *testing.T) {
	q := New(Options{}, okDownloader("t", "p"), okConverter("o"))

	if got := q.AvailableSlots(); got != 3 {
		t.Errorf("AvailableSlots() = %d, want default of 3", got)
	}
}
