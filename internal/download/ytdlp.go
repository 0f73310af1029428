package download

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"

	domainerrors "github.com/audiody/audiody/internal/errors"
)

// Extractor downloads and splits a chaptered media source into dir.
type Extractor interface {
	Extract(ctx context.Context, sourceURL, dir string) error
}

const stderrTailLines = 20

var progressRegex = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

// YtDlp runs the yt-dlp binary to fetch audio split by chapter.
type YtDlp struct {
	path       string
	ffmpegPath string
	logger     *slog.Logger
}

// NewYtDlp creates an extractor. path may be a bare name resolved through PATH.
func NewYtDlp(path, ffmpegPath string, logger *slog.Logger) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlp{path: path, ffmpegPath: ffmpegPath, logger: logger}
}

// Available reports whether the binary can be found.
func (y *YtDlp) Available() bool {
	_, err := exec.LookPath(y.path)
	return err == nil
}

// Args builds the command line. Split chapters land in dir as
// chapter_<n>.mp3 with n starting at 1, matching the cache naming.
func (y *YtDlp) Args(sourceURL, dir string) []string {
	args := []string{
		"--concurrent-fragments", "5",
		"--extract-audio",
		"--audio-format", "mp3",
		"--write-auto-sub",
		"--sub-lang", "en",
		"--split-chapters",
		"--restrict-filenames",
		"--write-thumbnail",
		"--newline",
		"-P", dir,
		"-o", "chapter_%(section_number)s.%(ext)s",
		"-o", "chapter:chapter_%(section_number)s.%(ext)s",
	}
	if y.ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", y.ffmpegPath)
	}
	return append(args, sourceURL)
}

// Extract runs yt-dlp and waits for it to finish.
func (y *YtDlp) Extract(ctx context.Context, sourceURL, dir string) error {
	bin, err := exec.LookPath(y.path)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeExternalTool, "%s not found", y.path)
	}

	args := y.Args(sourceURL, dir)
	y.logger.Debug("executing yt-dlp", "args", args)

	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec // bin comes from configuration
	tail := &lineTail{max: stderrTailLines}
	cmd.Stderr = tail

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeExternalTool, "create stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeExternalTool, "start yt-dlp")
	}

	parsed := make(chan struct{})
	go func() {
		defer close(parsed)
		y.parseProgress(sourceURL, stdout)
	}()
	<-parsed

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domainerrors.Wrap(ctxErr, domainerrors.CodeExternalTool, "yt-dlp interrupted")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return domainerrors.ExternalToolf("yt-dlp exited with status %d: %s",
				exitErr.ExitCode(), tail.String()).WithCause(err)
		}
		return domainerrors.Wrap(err, domainerrors.CodeExternalTool, "yt-dlp failed")
	}
	return nil
}

// parseProgress logs download progress in 10% steps.
func (y *YtDlp) parseProgress(sourceURL string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	last := -10

	for scanner.Scan() {
		m := progressRegex.FindStringSubmatch(scanner.Text())
		if len(m) < 2 {
			continue
		}
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if int(pct)-last >= 10 || (pct >= 100 && last < 100) {
			last = int(pct)
			y.logger.Debug("extraction progress", "url", sourceURL, "percent", last)
		}
	}
	// Drain so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// lineTail keeps the last max lines written to it.
type lineTail struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial string
}

func (t *lineTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.partial + string(p)
	parts := strings.Split(s, "\n")
	t.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		if line = strings.TrimSpace(line); line != "" {
			t.lines = append(t.lines, line)
		}
	}
	if over := len(t.lines) - t.max; over > 0 {
		t.lines = t.lines[over:]
	}
	return len(p), nil
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := t.lines
	if p := strings.TrimSpace(t.partial); p != "" {
		lines = append(lines[:len(lines):len(lines)], p)
	}
	return strings.Join(lines, "; ")
}
