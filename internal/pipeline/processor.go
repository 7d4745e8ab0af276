// Package pipeline discovers job descriptors under the watched prefix,
// claims them, and advances each through source resolution and rendering.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"reelpress/internal/artifacts"
	"reelpress/internal/history"
	"reelpress/internal/job"
	apperrors "reelpress/internal/pkg/errors"
	"reelpress/internal/pkg/logger"
	"reelpress/internal/renderer"
	"reelpress/internal/resolver"
)

// Config carries the processor's prefixes and render parameters.
type Config struct {
	PendingPrefix  string
	RenderedPrefix string
	WorkDir        string
	// DefaultBitrate fills the quality field when the producer left it empty.
	DefaultBitrate string
	RenderDuration time.Duration
	SignedURLTTL   time.Duration
}

// Processor runs one claimed descriptor through its next stage.
type Processor struct {
	store    *artifacts.Store
	resolver resolver.Resolver
	renderer renderer.Renderer
	hist     *history.Recorder
	cfg      Config
	client   *http.Client
	log      *logger.Logger
}

func NewProcessor(store *artifacts.Store, res resolver.Resolver, rend renderer.Renderer, hist *history.Recorder, cfg Config, log *logger.Logger) *Processor {
	return &Processor{
		store:    store,
		resolver: res,
		renderer: rend,
		hist:     hist,
		cfg:      cfg,
		client:   &http.Client{Timeout: 2 * time.Minute},
		log:      log.WithComponent("processor"),
	}
}

// Process advances a claimed descriptor one stage. key is the object key the
// descriptor was claimed from; republished descriptors return to it. raw is
// the claimed bytes, kept for byte-exact republish when a store write fails
// partway.
func (p *Processor) Process(ctx context.Context, key string, raw []byte, d *job.Descriptor) error {
	ctx = logger.ContextWithJobID(ctx, d.ID)
	log := p.log.WithJobID(d.ID)

	switch state := d.State(); state {
	case job.StateNeedsResolution:
		return p.resolveStage(ctx, key, raw, d, log)
	case job.StateNeedsRendering:
		return p.renderStage(ctx, key, raw, d, log)
	case job.StateMalformed:
		log.Warn("dropping malformed descriptor", "key", key)
		p.hist.Record(ctx, d.ID, history.EventDropped, "malformed descriptor")
		return nil
	default:
		// Terminal states are not claimed by the poller; seeing one here
		// means it was handed over directly, and there is nothing to do.
		log.Debug("descriptor already terminal", "state", state.String())
		return nil
	}
}

// resolveStage turns sourceRef into a downloadable media URL. Both outcomes
// republish the descriptor: success carries the URL forward to the render
// stage, exhausted retries carry the definitive failure marker.
func (p *Processor) resolveStage(ctx context.Context, key string, raw []byte, d *job.Descriptor, log *logger.Logger) error {
	url, err := p.resolver.Resolve(ctx, d.SourceRef)
	if err != nil {
		// An interrupted run (shutdown cancellation) is not a resolution
		// verdict; put the descriptor back so the stage reruns.
		if interrupted(ctx, err) {
			return p.restore(ctx, key, raw, d.ID, err, log)
		}
		log.WithError(err).Warn("source resolution failed definitively", "source_ref", d.SourceRef)
		d.MediaURL = job.FieldFailed()
		p.hist.Record(ctx, d.ID, history.EventResolutionFailed, err.Error())
	} else {
		d.MediaURL = job.FieldURL(url)
		if d.Quality == "" {
			d.Quality = p.cfg.DefaultBitrate
		}
		log.Info("source resolved", "source_ref", d.SourceRef)
		p.hist.Record(ctx, d.ID, history.EventResolved, url)
	}

	if err := p.republish(ctx, key, d); err != nil {
		// The updated descriptor could not be written back; restore the
		// claimed bytes so the stage reruns on a later cycle.
		return p.restore(ctx, key, raw, d.ID, err, log)
	}
	return nil
}

// renderStage produces the vertical video, uploads it, and republishes the
// descriptor with a signed access URL. Local preparation and render failures
// mark videoUri as failed; store failures restore the claimed descriptor
// unchanged so rendering reruns later.
func (p *Processor) renderStage(ctx context.Context, key string, raw []byte, d *job.Descriptor, log *logger.Logger) error {
	ws, err := newWorkspace(p.cfg.WorkDir, d.ID)
	if err != nil {
		return p.restore(ctx, key, raw, d.ID, err, log)
	}
	defer ws.cleanup()

	if err := ws.writeSnapshot(raw); err != nil {
		return p.restore(ctx, key, raw, d.ID, err, log)
	}

	if err := p.prepareAndRender(ctx, ws, d); err != nil {
		if interrupted(ctx, err) {
			return p.restore(ctx, key, raw, d.ID, err, log)
		}
		log.WithError(err).Warn("render failed definitively")
		d.VideoURI = job.FieldFailed()
		p.hist.Record(ctx, d.ID, history.EventRenderFailed, err.Error())
		if err := p.republish(ctx, key, d); err != nil {
			return p.restore(ctx, key, raw, d.ID, err, log)
		}
		return nil
	}

	videoKey := p.cfg.RenderedPrefix + d.ID + ".mp4"
	if err := p.uploadVideo(ctx, ws, videoKey); err != nil {
		return p.restore(ctx, key, raw, d.ID, err, log)
	}

	signedURL, expiresAt, err := p.store.SignedURL(ctx, videoKey, p.cfg.SignedURLTTL)
	if err != nil {
		return p.restore(ctx, key, raw, d.ID, err, log)
	}

	d.VideoURI = job.FieldURL(signedURL)
	if err := p.republish(ctx, key, d); err != nil {
		return p.restore(ctx, key, raw, d.ID, err, log)
	}

	log.Info("render complete", "video_key", videoKey, "url_expires_at", expiresAt)
	p.hist.Record(ctx, d.ID, history.EventRendered, videoKey)
	return nil
}

// prepareAndRender stages the local inputs and runs ffmpeg. Its errors are
// definitive for the job; the store was not involved.
func (p *Processor) prepareAndRender(ctx context.Context, ws *workspace, d *job.Descriptor) error {
	if err := ws.writeImage(d.ImageData); err != nil {
		return err
	}
	if err := ws.fetchAudio(ctx, p.client, d.MediaURL.URL); err != nil {
		return err
	}
	return p.renderer.Render(ctx, renderer.Spec{
		ImagePath:    ws.imagePath(),
		AudioPath:    ws.audioPath(),
		OutputPath:   ws.videoPath(),
		StartSeconds: *d.StartTime,
		Bitrate:      d.Quality,
		MaxDuration:  p.cfg.RenderDuration,
	})
}

func (p *Processor) uploadVideo(ctx context.Context, ws *workspace, videoKey string) error {
	f, err := os.Open(ws.videoPath())
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeInternal, "processor.uploadVideo", "opening rendered video")
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeInternal, "processor.uploadVideo", "inspecting rendered video")
	}
	return p.store.Upload(ctx, videoKey, "video/mp4", f, st.Size(), nil)
}

func (p *Processor) republish(ctx context.Context, key string, d *job.Descriptor) error {
	data, err := d.Marshal()
	if err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeInternal, "processor.republish", "serializing descriptor")
	}
	if err := p.store.Upload(ctx, key, "application/json", bytes.NewReader(data), int64(len(data)), nil); err != nil {
		return err
	}
	p.hist.Record(ctx, d.ID, history.EventRepublished, key)
	return nil
}

// interrupted reports whether err reflects cancellation of this run rather
// than a verdict on the job.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// restore writes the claimed bytes back unchanged after a store failure or an
// interrupted run, so the stage reruns on a later cycle. The write uses a
// detached context: it must land even when the cause is shutdown
// cancellation. If the restore itself fails the job is lost; that window is
// inherent to delete-then-process claiming.
func (p *Processor) restore(ctx context.Context, key string, raw []byte, jobID string, cause error, log *logger.Logger) error {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := p.store.Upload(restoreCtx, key, "application/json", bytes.NewReader(raw), int64(len(raw)), nil); err != nil {
		log.WithError(err).Error("restoring claimed descriptor failed, job is lost", "key", key, "cause", cause)
		return apperrors.WrapWithCode(err, apperrors.CodeStoreIO, "processor.restore", "job lost: "+jobID)
	}
	log.WithError(cause).Warn("stage interrupted, descriptor restored", "key", key)
	return cause
}
