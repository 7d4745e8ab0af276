// Package renderer composes a still image and an audio excerpt into a
// vertical 1080x1920 video by shelling out to ffmpeg.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	apperrors "reelpress/internal/pkg/errors"
	"reelpress/internal/pkg/logger"
)

const stderrTail = 2048

// Spec describes one render.
type Spec struct {
	ImagePath    string
	AudioPath    string
	OutputPath   string
	StartSeconds float64
	// Bitrate is the video bitrate in ffmpeg notation, e.g. "500k".
	Bitrate     string
	MaxDuration time.Duration
}

// Renderer produces a video file from a render spec.
type Renderer interface {
	Render(ctx context.Context, spec Spec) error
}

// FFmpeg renders by invoking the ffmpeg binary.
type FFmpeg struct {
	bin     string
	timeout time.Duration
	log     *logger.Logger
}

func NewFFmpeg(bin string, timeout time.Duration, log *logger.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &FFmpeg{bin: bin, timeout: timeout, log: log.WithComponent("renderer")}
}

func buildArgs(spec Spec) []string {
	return []string{
		"-y",
		"-loop", "1",
		"-i", spec.ImagePath,
		"-ss", strconv.FormatFloat(spec.StartSeconds, 'f', -1, 64),
		"-i", spec.AudioPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:a", "192k",
		"-b:v", spec.Bitrate,
		"-pix_fmt", "yuv420p",
		"-vf", "scale=1080:1920,setsar=1:1",
		"-t", strconv.FormatFloat(spec.MaxDuration.Seconds(), 'f', -1, 64),
		spec.OutputPath,
	}
}

func (f *FFmpeg) Render(ctx context.Context, spec Spec) error {
	if spec.Bitrate == "" {
		return apperrors.New(apperrors.CodeValidation, "render bitrate is required")
	}

	// Cancellation of the caller's context is an interrupted run, not a
	// render verdict; only this renderer's own deadline counts as a timeout.
	if err := ctx.Err(); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeInternal, "ffmpeg.Render", "render interrupted")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := buildArgs(spec)
	cmd := exec.CommandContext(ctx, f.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() == context.Canceled {
			return apperrors.WrapWithCode(ctx.Err(), apperrors.CodeInternal, "ffmpeg.Render", "render interrupted")
		}
		return apperrors.WrapWithCode(err, apperrors.CodeRender, "ffmpeg.Render", "starting ffmpeg")
	}
	if err := cmd.Wait(); err != nil {
		switch ctx.Err() {
		case context.DeadlineExceeded:
			return apperrors.WrapWithCode(ctx.Err(), apperrors.CodeTimeout, "ffmpeg.Render",
				fmt.Sprintf("render exceeded %s", f.timeout))
		case context.Canceled:
			return apperrors.WrapWithCode(ctx.Err(), apperrors.CodeInternal, "ffmpeg.Render", "render interrupted")
		}
		return apperrors.WrapWithCode(err, apperrors.CodeRender, "ffmpeg.Render",
			"ffmpeg failed: "+tail(stderr.String(), stderrTail))
	}

	f.log.Info("render finished",
		"output", spec.OutputPath,
		"bitrate", spec.Bitrate,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
