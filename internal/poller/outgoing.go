package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"listenlink/internal/calls"
	"listenlink/internal/callsession"
	"listenlink/internal/clock"
)

// StatusSource fetches a single invitation.
type StatusSource interface {
	GetInvitation(ctx context.Context, id int64) (calls.Invitation, error)
}

// OutgoingSink receives the callee's decision on our invitation.
type OutgoingSink interface {
	OutgoingRejected()
	OutgoingAccepted()
}

// OutgoingStatus polls our own pending invitation while the session is in the
// outgoing phase. Feed it session changes through Watch.
type OutgoingStatus struct {
	src      StatusSource
	sink     OutgoingSink
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	tracking int64
	settled  int64
	timer    clock.Timer
	gen      uint64
}

func NewOutgoingStatus(src StatusSource, sink OutgoingSink, clk clock.Clock, interval time.Duration, logger *slog.Logger) *OutgoingStatus {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultOutgoingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutgoingStatus{
		src:      src,
		sink:     sink,
		clock:    clk,
		interval: interval,
		logger:   logger.With("component", "outgoing-poller"),
	}
}

// Start enables polling; Watch does nothing until then.
func (p *OutgoingStatus) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
}

func (p *OutgoingStatus) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.untrackLocked()
	if p.cancel != nil {
		p.cancel()
	}
	p.ctx, p.cancel = nil, nil
}

// Tracking returns the invitation currently polled, or 0.
func (p *OutgoingStatus) Tracking() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracking
}

// Watch is a callsession.Store listener.
func (p *OutgoingStatus) Watch(s callsession.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return
	}

	id := s.OutgoingInvitationID
	want := s.Phase == callsession.PhaseOutgoing && id != 0 && id != p.settled
	switch {
	case want && p.tracking == id:
	case want:
		p.untrackLocked()
		p.tracking = id
		p.scheduleLocked()
	default:
		p.untrackLocked()
	}
}

func (p *OutgoingStatus) scheduleLocked() {
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.interval, func() { p.poll(gen) })
}

func (p *OutgoingStatus) untrackLocked() {
	p.gen++
	p.tracking = 0
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *OutgoingStatus) poll(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.tracking == 0 {
		p.mu.Unlock()
		return
	}
	id, ctx := p.tracking, p.ctx
	p.mu.Unlock()

	inv, err := p.src.GetInvitation(ctx, id)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.logger.Debug("outgoing status poll failed", "invitation_id", id, "err", err)
		p.scheduleLocked()
		p.mu.Unlock()
		return
	}
	if inv.Status == calls.StatusPending {
		p.scheduleLocked()
		p.mu.Unlock()
		return
	}
	p.settled = id
	p.untrackLocked()
	p.mu.Unlock()

	switch inv.Status {
	case calls.StatusRejected:
		p.sink.OutgoingRejected()
	case calls.StatusAccepted:
		p.sink.OutgoingAccepted()
	default:
		p.logger.Debug("outgoing invitation settled", "invitation_id", id, "status", inv.Status)
	}
}
