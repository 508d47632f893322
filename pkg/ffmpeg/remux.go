package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/iconidentify/linkgrab/internal/domain"
)

// maxOutput caps how much ffmpeg stderr is kept on a CommandError.
const maxOutput = 2048

// Remuxer re-containers remote media streams into local MP4 files without
// re-encoding.
type Remuxer struct {
	ffmpegPath string
}

// NewRemuxer creates a remuxer. An empty path looks ffmpeg up in PATH.
func NewRemuxer(path string) (*Remuxer, error) {
	if path == "" {
		found, err := exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
		path = found
	}
	return &Remuxer{ffmpegPath: path}, nil
}

// Remux copies every stream of inputURL into outputPath, overwriting any
// existing file. A non-zero exit is reported as *domain.CommandError.
func (r *Remuxer) Remux(ctx context.Context, inputURL, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputURL,
		"-c", "copy",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cerr := &domain.CommandError{
			Command:  "ffmpeg",
			ExitCode: -1,
			Output:   trimOutput(stderr.String()),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cerr.ExitCode = exitErr.ExitCode()
		}
		os.Remove(outputPath)
		return cerr
	}
	return nil
}

func trimOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxOutput {
		s = s[len(s)-maxOutput:]
	}
	return s
}

// Version returns the first line of ffmpeg -version.
func (r *Remuxer) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, r.ffmpegPath, "-version").Output()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(line), nil
}
