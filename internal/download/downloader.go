package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cuivienor/carbon/internal/model"
)

// EmitFunc receives updates as they are parsed from subprocess output
type EmitFunc func(model.Update)

// Runner executes yt-dlp downloads
type Runner struct {
	ytdlpPath string
	log       *logrus.Logger
	// execCommand allows injection of command execution for testing
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner creates a yt-dlp runner.
// If ytdlpPath is empty, uses "yt-dlp" from PATH.
func NewRunner(ytdlpPath string, log *logrus.Logger) *Runner {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if log == nil {
		log = logrus.New()
	}
	return &Runner{
		ytdlpPath:   ytdlpPath,
		log:         log,
		execCommand: exec.CommandContext,
	}
}

// formatFor maps a quality selector to a yt-dlp format expression:
// best video+audio capped at the requested height, falling back to the
// best single stream under the same cap.
func formatFor(quality string) string {
	switch quality {
	case "1080p":
		return "bestvideo[height<=1080]+bestaudio/best[height<=1080]"
	case "720p":
		return "bestvideo[height<=720]+bestaudio/best[height<=720]"
	case "480p":
		return "bestvideo[height<=480]+bestaudio/best[height<=480]"
	default:
		return "bestvideo+bestaudio/best"
	}
}

// buildArgs builds the yt-dlp command line for a download
func buildArgs(url, quality, outputTemplate string) []string {
	return []string{
		"-f", formatFor(quality),
		"--merge-output-format", "mp4",
		"--newline",
		"--no-playlist",
		"-o", outputTemplate,
		url,
	}
}

// Download fetches a URL into a private subdirectory under
// <outputDir>/.temp, streaming progress updates while yt-dlp runs.
// Returns the display title and the path of the downloaded file.
func (r *Runner) Download(ctx context.Context, url, quality, outputDir string, emit EmitFunc) (string, string, error) {
	tempBase := filepath.Join(outputDir, ".temp")
	if err := os.MkdirAll(tempBase, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	tempDir, err := os.MkdirTemp(tempBase, "dl-")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	args := buildArgs(url, quality, filepath.Join(tempDir, "%(title)s.%(ext)s"))
	r.log.WithFields(logrus.Fields{"url": url, "quality": quality}).Info("starting download")

	cmd := r.execCommand(ctx, r.ytdlpPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("failed to start yt-dlp: %w", err)
	}

	// Stream both pipes while the process runs so long downloads surface
	// progress immediately instead of after exit.
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			for _, update := range ParseLine(scanner.Text()) {
				emit(update)
			}
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
		return "", "", errors.New(detail)
	}

	title, path, err := findDownloadedFile(tempDir)
	if err != nil {
		return "", "", err
	}

	r.log.WithField("path", path).Info("download finished")
	return title, path, nil
}

// findDownloadedFile locates the merged output in the temp directory and
// derives a title from its filename
func findDownloadedFile(tempDir string) (string, string, error) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return "", "", fmt.Errorf("failed to scan temp directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(tempDir, entry.Name())
		title := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if title == "" {
			title = "video"
		}
		return title, path, nil
	}

	return "", "", errors.New("downloaded file not found")
}

// ProbeTitle asks yt-dlp for a video's title without downloading it
func (r *Runner) ProbeTitle(ctx context.Context, url string) (string, error) {
	cmd := r.execCommand(ctx, r.ytdlpPath, "--get-title", "--no-playlist", url)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get video title: %w", err)
	}

	title := strings.TrimSpace(string(output))
	if title == "" {
		return "", fmt.Errorf("failed to get video title")
	}
	return title, nil
}
