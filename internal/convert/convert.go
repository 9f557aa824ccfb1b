package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cuivienor/carbon/internal/model"
)

// EmitFunc receives updates as they are parsed from subprocess output
type EmitFunc func(model.Update)

// out_time_ms is reported in microseconds despite the name
var timeRe = regexp.MustCompile(`out_time_ms=(\d+)`)

// Runner executes ffmpeg conversions
type Runner struct {
	ffmpegPath  string
	ffprobePath string
	log         *logrus.Logger
	// execCommand allows injection of command execution for testing
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner creates an ffmpeg runner.
// Empty tool paths fall back to "ffmpeg" and "ffprobe" from PATH.
func NewRunner(ffmpegPath, ffprobePath string, log *logrus.Logger) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if log == nil {
		log = logrus.New()
	}
	return &Runner{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log,
		execCommand: exec.CommandContext,
	}
}

// Duration returns the duration of a media file in seconds
func (r *Runner) Duration(ctx context.Context, inputPath string) (float64, error) {
	cmd := r.execCommand(ctx, r.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		inputPath,
	)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return 0, fmt.Errorf("ffprobe failed: %s", string(exitErr.Stderr))
		}
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	if durationStr == "" || durationStr == "N/A" {
		return 0, fmt.Errorf("could not determine duration")
	}

	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", durationStr, err)
	}

	return duration, nil
}

// buildArgs builds the ffmpeg command line for an editing-suite friendly
// transcode: H.264 at a visually lossless CRF with uncompressed 48kHz PCM
// audio, progress markers on stdout.
func buildArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "18",
		"-c:a", "pcm_s16le",
		"-ar", "48000",
		"-progress", "pipe:1",
		"-y",
		outputPath,
	}
}

// Convert re-encodes a downloaded file for editing-suite compatibility,
// emitting progress computed against the probed input duration. A failed
// duration probe is not fatal; conversion proceeds without progress
// events. On success the input file is deleted best-effort.
func (r *Runner) Convert(ctx context.Context, inputPath, outputDir string, emit EmitFunc) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return "", fmt.Errorf("invalid input filename %q", inputPath)
	}
	outputPath := filepath.Join(outputDir, stem+"_davinci.mp4")

	duration, err := r.Duration(ctx, inputPath)
	if err != nil {
		// Without a duration progress cannot be computed as a percentage;
		// the conversion itself still runs.
		r.log.WithError(err).Warn("duration probe failed, converting without progress")
		duration = 0
	}

	r.log.WithFields(logrus.Fields{"input": inputPath, "output": outputPath}).Info("starting conversion")

	cmd := r.execCommand(ctx, r.ffmpegPath, buildArgs(inputPath, outputPath)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			m := timeRe.FindStringSubmatch(scanner.Text())
			if m == nil || duration <= 0 {
				continue
			}
			timeUs, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil {
				continue
			}
			percent := float64(timeUs) / 1e6 / duration * 100
			if percent > 100 {
				percent = 100
			}
			emit(model.ProgressUpdate{Percent: percent})
		}
	}()

	var stderrLines []string
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			stderrLines = append(stderrLines, scanner.Text())
		}
	}()

	wg.Wait()
	if err := cmd.Wait(); err != nil {
		// The error detail shown to the user is the tool's own stderr
		detail := strings.TrimSpace(strings.Join(stderrLines, "\n"))
		if detail == "" {
			detail = err.Error()
		}
		return "", errors.New(detail)
	}

	// The temp download is no longer needed once the converted file exists
	if err := os.Remove(inputPath); err != nil {
		r.log.WithError(err).Warn("failed to remove temp file")
	}

	r.log.WithField("path", outputPath).Info("conversion finished")
	return outputPath, nil
}
