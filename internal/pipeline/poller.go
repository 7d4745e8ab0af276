package pipeline

import (
	"context"
	"sync"
	"time"

	"reelpress/internal/artifacts"
	"reelpress/internal/history"
	"reelpress/internal/job"
	"reelpress/internal/pkg/logger"
)

// Poller lists the watched prefix on a fixed interval and claims actionable
// descriptors. Claiming deletes the object before processing starts, so each
// descriptor is handed to at most one stage run per publish.
type Poller struct {
	store    *artifacts.Store
	proc     *Processor
	hist     *history.Recorder
	prefix   string
	interval time.Duration
	log      *logger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

func NewPoller(store *artifacts.Store, proc *Processor, hist *history.Recorder, prefix string, interval time.Duration, log *logger.Logger) *Poller {
	return &Poller{
		store:    store,
		proc:     proc,
		hist:     hist,
		prefix:   prefix,
		interval: interval,
		log:      log.WithComponent("poller"),
		inflight: make(map[string]struct{}),
	}
}

// Run polls until ctx is canceled, then waits for in-flight jobs to finish.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("poller started", "prefix", p.prefix, "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller stopping, waiting for in-flight jobs")
			p.wg.Wait()
			return
		case <-ticker.C:
			p.Cycle(ctx)
		}
	}
}

// Cycle runs one discovery pass. Failures are logged and retried on the next
// tick; a polling cycle never takes the process down.
func (p *Poller) Cycle(ctx context.Context) {
	objs, err := p.store.List(ctx, p.prefix)
	if err != nil {
		p.log.WithError(err).Error("listing watched prefix failed")
		return
	}

	for _, obj := range objs {
		if err := ctx.Err(); err != nil {
			return
		}
		if p.tracked(obj.Key) {
			continue
		}
		p.consider(ctx, obj.Key)
	}
}

func (p *Poller) consider(ctx context.Context, key string) {
	raw, err := p.store.ReadAll(ctx, key)
	if err != nil {
		p.log.WithError(err).Warn("reading descriptor failed", "key", key)
		return
	}

	d, err := job.Parse(raw)
	if err != nil {
		// Not a descriptor at all. Claim it so the prefix does not fill up
		// with garbage, then drop.
		p.log.WithError(err).Warn("unparseable descriptor, dropping", "key", key)
		if p.claim(ctx, key) {
			p.hist.Record(ctx, key, history.EventDropped, "unparseable descriptor")
		}
		return
	}

	state := d.State()
	if state.Terminal() {
		// Terminal descriptors stay published for the producer to read; the
		// reaper ages them out. Claiming them here would refresh their
		// uploadedTime forever.
		p.log.Debug("skipping terminal descriptor", "key", key, "state", state.String())
		return
	}

	if !p.claim(ctx, key) {
		return
	}
	p.hist.Record(ctx, d.ID, history.EventClaimed, key)

	p.track(key)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.untrack(key)
		if err := p.proc.Process(ctx, key, raw, d); err != nil {
			p.log.WithError(err).WithJobID(d.ID).Error("processing failed", "key", key)
		}
	}()
}

// claim removes the descriptor from the watched prefix. A failed delete means
// another instance may own the object; the job is left alone.
func (p *Poller) claim(ctx context.Context, key string) bool {
	if err := p.store.Delete(ctx, key); err != nil {
		p.log.WithError(err).Warn("claiming descriptor failed", "key", key)
		return false
	}
	return true
}

func (p *Poller) tracked(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[key]
	return ok
}

func (p *Poller) track(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight[key] = struct{}{}
}

func (p *Poller) untrack(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, key)
}
