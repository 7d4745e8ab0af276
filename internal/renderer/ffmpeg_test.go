package renderer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "reelpress/internal/pkg/errors"
	"reelpress/internal/pkg/logger"
)

func discardLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json", Output: io.Discard, ServiceName: "test"})
}

func TestBuildArgs(t *testing.T) {
	spec := Spec{
		ImagePath:    "/work/abc.png",
		AudioPath:    "/work/abc.mp3",
		OutputPath:   "/work/abc.mp4",
		StartSeconds: 42.5,
		Bitrate:      "500k",
		MaxDuration:  30 * time.Second,
	}
	got := strings.Join(buildArgs(spec), " ")
	want := "-y -loop 1 -i /work/abc.png -ss 42.5 -i /work/abc.mp3 " +
		"-c:v libx264 -c:a aac -b:a 192k -b:v 500k -pix_fmt yuv420p " +
		"-vf scale=1080:1920,setsar=1:1 -t 30 /work/abc.mp4"
	if got != want {
		t.Errorf("args = %q\nwant %q", got, want)
	}
}

func TestFFmpegRender(t *testing.T) {
	ctx := context.Background()

	t.Run("missing bitrate is rejected", func(t *testing.T) {
		r := NewFFmpeg("ffmpeg", time.Minute, discardLogger())
		err := r.Render(ctx, Spec{OutputPath: "out.mp4"})
		if !apperrors.IsCode(err, apperrors.CodeValidation) {
			t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeValidation)
		}
	})

	t.Run("missing binary reports render failure", func(t *testing.T) {
		r := NewFFmpeg(filepath.Join(t.TempDir(), "no-such-ffmpeg"), time.Minute, discardLogger())
		err := r.Render(ctx, Spec{Bitrate: "500k", OutputPath: "out.mp4", MaxDuration: time.Second})
		if !apperrors.IsCode(err, apperrors.CodeRender) {
			t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeRender)
		}
	})

	t.Run("non-zero exit carries stderr output", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), "fake-ffmpeg")
		body := "#!/bin/sh\necho 'No such file or directory' >&2\nexit 1\n"
		if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
			t.Fatalf("writing fake binary: %v", err)
		}

		r := NewFFmpeg(script, time.Minute, discardLogger())
		err := r.Render(ctx, Spec{Bitrate: "500k", OutputPath: "out.mp4", MaxDuration: time.Second})
		if !apperrors.IsCode(err, apperrors.CodeRender) {
			t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeRender)
		}
		if !strings.Contains(err.Error(), "No such file or directory") {
			t.Errorf("error %q should carry stderr output", err)
		}
	})

	t.Run("canceled context is an interruption, not a render failure", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		r := NewFFmpeg("ffmpeg", time.Minute, discardLogger())
		err := r.Render(canceled, Spec{Bitrate: "500k", OutputPath: "out.mp4", MaxDuration: time.Second})
		if !apperrors.IsCode(err, apperrors.CodeInternal) {
			t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeInternal)
		}
		if apperrors.IsCode(err, apperrors.CodeRender) {
			t.Error("cancellation must not read as a definitive render failure")
		}
	})

	t.Run("timeout reports a timeout code", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), "slow-ffmpeg")
		body := "#!/bin/sh\nsleep 5\n"
		if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
			t.Fatalf("writing fake binary: %v", err)
		}

		r := NewFFmpeg(script, 50*time.Millisecond, discardLogger())
		err := r.Render(ctx, Spec{Bitrate: "500k", OutputPath: "out.mp4", MaxDuration: time.Second})
		if !apperrors.IsCode(err, apperrors.CodeTimeout) {
			t.Fatalf("error code = %v, want %v", apperrors.GetCode(err), apperrors.CodeTimeout)
		}
	})
}

func TestTail(t *testing.T) {
	if got := tail("  short  ", 100); got != "short" {
		t.Errorf("tail = %q, want %q", got, "short")
	}
	long := strings.Repeat("a", 100) + "ending"
	if got := tail(long, 6); got != "ending" {
		t.Errorf("tail = %q, want %q", got, "ending")
	}
}
