// Package poller refreshes invitation state from the calls API on a timer.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"listenlink/internal/calls"
	"listenlink/internal/clock"
	"listenlink/internal/transport"
)

const (
	DefaultIncomingInterval = 3 * time.Second
	DefaultOutgoingInterval = 2 * time.Second
)

// PendingSource lists invitations addressed to the current user, newest first.
type PendingSource interface {
	PendingInvitations(ctx context.Context) ([]calls.Invitation, error)
}

// IncomingSink receives the poll outcome.
type IncomingSink interface {
	ReceiveIncoming(inv calls.Invitation)
	ClearIncoming()
}

// Incoming polls pending invitations while the client is visible and
// authenticated. It starts stopped and visible.
type Incoming struct {
	src      PendingSource
	sink     IncomingSink
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	visible bool
	timer   clock.Timer
	gen     uint64
}

func NewIncoming(src PendingSource, sink IncomingSink, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Incoming {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultIncomingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Incoming{
		src:      src,
		sink:     sink,
		clock:    clk,
		interval: interval,
		logger:   logger.With("component", "incoming-poller"),
		visible:  true,
	}
}

// Start begins polling with an immediate fetch. ctx bounds every request.
func (p *Incoming) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	if p.visible {
		p.scheduleLocked(0)
	}
}

// Stop cancels the timer and any in-flight request.
func (p *Incoming) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Running reports whether the poller is started.
func (p *Incoming) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SetVisible suspends polling while hidden and polls immediately on return.
func (p *Incoming) SetVisible(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.visible == v {
		return
	}
	p.visible = v
	if !p.running {
		return
	}
	p.cancelTimerLocked()
	if v {
		p.scheduleLocked(0)
	}
}

// Notify applies a pushed pending list the same way a poll result is applied.
func (p *Incoming) Notify(list []calls.Invitation) {
	p.apply(list)
}

func (p *Incoming) scheduleLocked(d time.Duration) {
	p.gen++
	gen := p.gen
	p.timer = p.clock.AfterFunc(d, func() { p.poll(gen) })
}

func (p *Incoming) cancelTimerLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Incoming) stopLocked() {
	if !p.running {
		return
	}
	p.cancelTimerLocked()
	p.cancel()
	p.running = false
}

func (p *Incoming) poll(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || !p.running {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.mu.Unlock()

	list, err := p.src.PendingInvitations(ctx)

	p.mu.Lock()
	if gen != p.gen || !p.running {
		p.mu.Unlock()
		return
	}
	if errors.Is(err, transport.ErrUnauthorized) {
		p.logger.Warn("incoming poll unauthorized, stopping")
		p.stopLocked()
		p.mu.Unlock()
		return
	}
	p.scheduleLocked(p.interval)
	p.mu.Unlock()

	if err != nil {
		p.logger.Debug("incoming poll failed", "err", err)
		return
	}
	p.apply(list)
}

func (p *Incoming) apply(list []calls.Invitation) {
	if len(list) == 0 {
		p.sink.ClearIncoming()
		return
	}
	p.sink.ReceiveIncoming(list[0])
}
