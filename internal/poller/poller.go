// Package poller keeps one view fresh: an immediate fetch, a fixed
// interval, out-of-band triggers, and a hard stop on unmount.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"vpms_console/internal/logger"
	"vpms_console/internal/metrics"
)

type FetchFunc func(ctx context.Context) error

type Poller struct {
	name     string
	interval time.Duration
	fetch    FetchFunc
	logger   *zap.Logger

	trigger chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New builds a poller. An interval of zero fetches only on start and on Trigger.
func New(name string, interval time.Duration, fetch FetchFunc, l *zap.Logger) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		fetch:    fetch,
		logger:   logger.Named(l, "poller").With(zap.String("view", name)),
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the loop. It is a no-op if the poller already ran.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil || p.stopped {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	p.runFetch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			p.runFetch(ctx)
		case <-p.trigger:
			p.runFetch(ctx)
		}
	}
}

func (p *Poller) runFetch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := p.fetch(ctx)
	switch {
	case err == nil:
		metrics.PollFetches.WithLabelValues(p.name, "ok").Inc()
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		metrics.PollFetches.WithLabelValues(p.name, "cancelled").Inc()
	default:
		metrics.PollFetches.WithLabelValues(p.name, "error").Inc()
		p.logger.Debug("fetch failed", zap.Error(err))
	}
}

// Trigger requests an extra fetch. Requests made while one is pending
// collapse into it, and the call never blocks.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Cancel stops the loop and aborts any in-flight fetch without waiting.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
}

// Stop cancels the loop and waits for it to exit. No fetch starts afterwards.
func (p *Poller) Stop() {
	p.Cancel()
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}
