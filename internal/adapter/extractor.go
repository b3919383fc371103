package adapter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
	"time"

	"github.com/disintegration/imaging"

	"github.com/tvleaf/tvleaf/internal/domain"
)

// FFmpegExtractor implements domain.FrameExtractor by shelling out to an
// ffmpeg binary. The source may be a local file path or a remote URL; ffmpeg
// handles both.
type FFmpegExtractor struct {
	binary string
	logger *slog.Logger
}

// NewFFmpegExtractor creates an extractor. An empty binary defaults to
// "ffmpeg" resolved from PATH.
func NewFFmpegExtractor(binary string, logger *slog.Logger) *FFmpegExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegExtractor{binary: binary, logger: logger}
}

// ExtractFrame decodes a single still frame at the given offset.
func (e *FFmpegExtractor) ExtractFrame(ctx context.Context, source string, at time.Duration) (image.Image, error) {
	args := []string{
		"-ss", fmt.Sprintf("%.2f", at.Seconds()),
		"-i", source,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-loglevel", "error",
		"-",
	}

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Debug("ffmpeg frame extraction failed", "source", source, "at", at, "stderr", errOut.String())
		return nil, fmt.Errorf("extract frame at %s: %w", at, err)
	}
	if out.Len() == 0 {
		return nil, domain.ErrNoFrame
	}

	img, err := imaging.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode extracted frame: %w", err)
	}
	return img, nil
}
