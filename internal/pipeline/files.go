package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "reelpress/internal/pkg/errors"
)

// workspace names the ephemeral per-job files under the configured work
// directory. Every processing path must call cleanup before returning.
type workspace struct {
	dir   string
	jobID string
}

func newWorkspace(workDir, jobID string) (*workspace, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeInternal, "workspace", "creating work directory")
	}
	return &workspace{dir: workDir, jobID: jobID}, nil
}

func (ws *workspace) imagePath() string    { return filepath.Join(ws.dir, ws.jobID+".png") }
func (ws *workspace) audioPath() string    { return filepath.Join(ws.dir, ws.jobID+".mp3") }
func (ws *workspace) videoPath() string    { return filepath.Join(ws.dir, ws.jobID+".mp4") }
func (ws *workspace) snapshotPath() string { return filepath.Join(ws.dir, ws.jobID+".json") }

// cleanup removes every per-job file. Missing files are fine; cleanup runs on
// success, failure and republish paths alike.
func (ws *workspace) cleanup() {
	for _, p := range []string{ws.imagePath(), ws.audioPath(), ws.videoPath(), ws.snapshotPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			// Leftovers are collected on the next run of the same job id.
			continue
		}
	}
}

// writeImage decodes the descriptor's base64 image payload to the job's png
// file. A data URL prefix, when present, is stripped first.
func (ws *workspace) writeImage(imageData string) error {
	payload := imageData
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, "base64,")
		if idx < 0 {
			return apperrors.New(apperrors.CodeValidation, "image data URL is not base64 encoded")
		}
		payload = payload[idx+len("base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeValidation, "workspace.writeImage", "decoding image data")
	}
	if err := os.WriteFile(ws.imagePath(), raw, 0o644); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeInternal, "workspace.writeImage", "writing image file")
	}
	return nil
}

// fetchAudio downloads the resolved media URL to the job's mp3 file.
func (ws *workspace) fetchAudio(ctx context.Context, client *http.Client, mediaURL string) error {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeValidation, "workspace.fetchAudio", "building audio request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeInternal, "workspace.fetchAudio", "fetching audio")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Newf(apperrors.CodeInternal, "audio fetch returned status %d", resp.StatusCode)
	}

	f, err := os.Create(ws.audioPath())
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeInternal, "workspace.fetchAudio", "creating audio file")
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeInternal, "workspace.fetchAudio",
			fmt.Sprintf("writing audio for job %s", ws.jobID))
	}
	return nil
}

// writeSnapshot persists the claimed descriptor locally so a store republish
// has a byte-exact source even if the in-memory copy is gone.
func (ws *workspace) writeSnapshot(data []byte) error {
	if err := os.WriteFile(ws.snapshotPath(), data, 0o644); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeInternal, "workspace.writeSnapshot", "writing snapshot")
	}
	return nil
}
