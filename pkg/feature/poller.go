package feature

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Poller refreshes the flag catalog from a remote fetcher on an interval.
// Fetch failures are logged and leave the last-known-good catalog in
// service; overrides and the invalidation rules of the evaluator apply to
// polled updates the same as to manual ones.
type Poller struct {
	evaluator *Evaluator
	fetcher   Fetcher
	interval  time.Duration
	logger    *slog.Logger
	done      chan struct{}
	once      sync.Once
}

// NewPoller creates a poller updating the evaluator from the fetcher every
// interval. Intervals below one second are raised to one second.
func NewPoller(evaluator *Evaluator, fetcher Fetcher, interval time.Duration, logger *slog.Logger) *Poller {
	if interval < time.Second {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		evaluator: evaluator,
		fetcher:   fetcher,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins polling in the background until Close is called or the
// context is cancelled. The first poll runs immediately.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		p.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.done:
				return
			case <-time.After(p.jittered()):
				p.poll(ctx)
			}
		}
	}()
}

// Close stops the poller.
func (p *Poller) Close() {
	p.once.Do(func() { close(p.done) })
}

func (p *Poller) poll(ctx context.Context) {
	definitions, err := p.fetcher.FetchFlags(ctx)
	if err != nil {
		p.logger.Warn("flag catalog refresh failed, keeping last-known-good",
			slog.Any("error", err))
		return
	}
	for i := range definitions {
		if definitions[i].Metadata == nil {
			definitions[i].Metadata = map[string]string{}
		}
		definitions[i].Metadata["source"] = string(ProvenanceRemote)
	}
	if err := p.evaluator.UpdateFlags(definitions); err != nil {
		p.logger.Warn("flag catalog update rejected", slog.Any("error", err))
	}
}

// jittered spreads poll ticks by up to 10% so sibling processes do not
// stampede the flag endpoint.
func (p *Poller) jittered() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(p.interval) / 10))
	return p.interval + jitter
}
