// Package coordinator owns the call lifecycle: every phase transition of the
// client's call session goes through a Coordinator, which also performs the
// transport side effects (status updates, call-log messages) and timers.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"listenlink/internal/calls"
	"listenlink/internal/callsession"
	"listenlink/internal/clock"
	"listenlink/internal/events"
)

var (
	ErrRecipientOffline = errors.New("recipient is offline")
	ErrCallInProgress   = errors.New("a call is already in progress")
	ErrNoIncomingCall   = errors.New("no incoming call")
)

const (
	DefaultRingTimeout     = 30 * time.Second
	DefaultDeclinedDisplay = 3 * time.Second

	sideEffectTimeout = 10 * time.Second
	maxDismissed      = 64
)

// Invitations is the part of the calls API the coordinator writes to.
type Invitations interface {
	CreateInvitation(ctx context.Context, receiverID int64, callType calls.CallType) (calls.Invitation, error)
	UpdateInvitation(ctx context.Context, id int64, status calls.Status, endedAt *int64) (calls.Invitation, error)
}

// Messenger sends chat messages; used for call-log entries.
type Messenger interface {
	SendMessage(ctx context.Context, recipientID int64, content string) error
}

type Coordinator struct {
	store   *callsession.Store
	invites Invitations
	chat    Messenger
	bus     *events.Bus
	clock   clock.Clock
	logger  *slog.Logger

	ringTimeout     time.Duration
	declinedDisplay time.Duration

	mu sync.Mutex
	// gen increments on every transition; timers and in-flight requests
	// compare it to discard results that belong to an earlier session.
	gen           uint64
	ringTimer     clock.Timer
	declinedTimer clock.Timer
	starting      bool
	accepting     int64
	dismissed     map[int64]struct{}
	dismissOrder  []int64
	closed        bool

	answered  events.Subscription
	watchDone chan struct{}
	wg        sync.WaitGroup
}

type Option func(*Coordinator)

func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		if c != nil {
			co.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(co *Coordinator) {
		if l != nil {
			co.logger = l
		}
	}
}

func WithBus(b *events.Bus) Option {
	return func(co *Coordinator) { co.bus = b }
}

// WithRingTimeout sets how long an unanswered outgoing call rings before it
// is ended as missed.
func WithRingTimeout(d time.Duration) Option {
	return func(co *Coordinator) {
		if d > 0 {
			co.ringTimeout = d
		}
	}
}

// WithDeclinedDisplay sets how long the declined banner stays up.
func WithDeclinedDisplay(d time.Duration) Option {
	return func(co *Coordinator) {
		if d > 0 {
			co.declinedDisplay = d
		}
	}
}

func New(store *callsession.Store, invites Invitations, chat Messenger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:           store,
		invites:         invites,
		chat:            chat,
		clock:           clock.Real(),
		logger:          slog.Default(),
		ringTimeout:     DefaultRingTimeout,
		declinedDisplay: DefaultDeclinedDisplay,
		dismissed:       map[int64]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With("component", "call-coordinator")
	if c.bus != nil {
		c.answered = c.bus.Subscribe(events.TopicOutgoingCallAnswered)
		c.watchDone = make(chan struct{})
		go c.watchAnswered()
	}
	return c
}

// Session returns a snapshot of the current call session.
func (c *Coordinator) Session() callsession.Session { return c.store.Snapshot() }

// StartOutgoing places a call to target. The session stays idle on failure.
func (c *Coordinator) StartOutgoing(ctx context.Context, target callsession.Participant, callType calls.CallType) error {
	if !target.Online {
		return ErrRecipientOffline
	}
	if !callType.Valid() {
		return fmt.Errorf("invalid call type %q", callType)
	}

	c.mu.Lock()
	if c.closed || c.starting || c.accepting != 0 || !c.store.Snapshot().IsIdle() {
		c.mu.Unlock()
		return ErrCallInProgress
	}
	c.starting = true
	c.mu.Unlock()

	inv, err := c.invites.CreateInvitation(ctx, target.ID, callType)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false
	if err != nil {
		c.logger.Warn("start call failed", "recipient_id", target.ID, "err", err)
		return fmt.Errorf("start call: %w", err)
	}
	if c.closed {
		return ErrCallInProgress
	}

	recipient := target
	c.store.Apply(func(s *callsession.Session) {
		s.Phase = callsession.PhaseOutgoing
		s.Recipient = &recipient
		s.ChannelName = inv.ChannelName
		s.OutgoingInvitationID = inv.ID
		s.IsVoiceOnly = callType.VoiceOnly()
		s.Initiator = true
		s.StartedAt = c.clock.Now()
	})
	gen := c.advanceLocked()
	c.ringTimer = c.clock.AfterFunc(c.ringTimeout, func() { c.ringTimedOut(gen) })

	c.logger.Info("outgoing call", "invitation_id", inv.ID, "recipient_id", target.ID, "call_type", callType)
	return nil
}

// ReceiveIncoming shows a polled invitation. It is ignored while another call
// holds the session.
func (c *Coordinator) ReceiveIncoming(inv calls.Invitation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.starting || c.accepting != 0 {
		return
	}
	if inv.Status != "" && inv.Status != calls.StatusPending {
		return
	}
	if _, ok := c.dismissed[inv.ID]; ok {
		return
	}

	snap := c.store.Snapshot()
	switch {
	case snap.IsIdle():
	case snap.Phase == callsession.PhaseIncoming && snap.IncomingInvitation != nil && snap.IncomingInvitation.ID != inv.ID:
		c.logger.Debug("replacing incoming call", "old_invitation_id", snap.IncomingInvitation.ID, "invitation_id", inv.ID)
	default:
		return
	}

	caller := callerOf(inv)
	c.store.Apply(func(s *callsession.Session) {
		*s = callsession.Session{
			Phase:              callsession.PhaseIncoming,
			Recipient:          &caller,
			ChannelName:        inv.ChannelName,
			IncomingInvitation: &inv,
			IsVoiceOnly:        inv.CallType.VoiceOnly(),
		}
	})
	c.advanceLocked()
	c.logger.Info("incoming call", "invitation_id", inv.ID, "caller_id", inv.CallerID)
}

// ClearIncoming hides the incoming call after the pending list came back empty.
func (c *Coordinator) ClearIncoming() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accepting != 0 || c.store.Snapshot().Phase != callsession.PhaseIncoming {
		return
	}
	c.resetLocked()
}

// Accept answers the incoming call. A transport failure abandons the call.
func (c *Coordinator) Accept(ctx context.Context) error {
	c.mu.Lock()
	snap := c.store.Snapshot()
	if snap.Phase != callsession.PhaseIncoming || snap.IncomingInvitation == nil {
		c.mu.Unlock()
		return ErrNoIncomingCall
	}
	if c.accepting != 0 {
		c.mu.Unlock()
		return nil
	}
	inv := *snap.IncomingInvitation
	c.accepting = inv.ID
	c.dismissLocked(inv.ID)
	gen := c.gen
	c.mu.Unlock()

	_, err := c.invites.UpdateInvitation(ctx, inv.ID, calls.StatusAccepted, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepting = 0
	if gen != c.gen {
		return nil
	}
	if err != nil {
		c.logger.Error("accept call failed", "invitation_id", inv.ID, "err", err)
		c.resetLocked()
		return fmt.Errorf("accept call: %w", err)
	}

	caller := callerOf(inv)
	c.store.Apply(func(s *callsession.Session) {
		*s = callsession.Session{
			Phase:                   callsession.PhaseActive,
			Recipient:               &caller,
			ChannelName:             inv.ChannelName,
			CurrentCallInvitationID: inv.ID,
			IsVoiceOnly:             inv.CallType.VoiceOnly(),
			StartedAt:               c.clock.Now(),
		}
	})
	c.advanceLocked()
	c.logger.Info("call accepted", "invitation_id", inv.ID)
	return nil
}

// Reject declines the incoming call. Without an incoming call it does nothing.
func (c *Coordinator) Reject(ctx context.Context) error {
	c.mu.Lock()
	snap := c.store.Snapshot()
	if snap.Phase != callsession.PhaseIncoming || snap.IncomingInvitation == nil || c.accepting != 0 {
		c.mu.Unlock()
		return nil
	}
	inv := *snap.IncomingInvitation
	c.dismissLocked(inv.ID)
	c.resetLocked()
	c.mu.Unlock()

	if inv.CallerID != 0 {
		content := calls.FormatCallLog(inv.CallType.VoiceOnly(), calls.StatusMissed, 0)
		c.background(func(ctx context.Context) {
			if err := c.chat.SendMessage(ctx, inv.CallerID, content); err != nil {
				c.logger.Warn("call log not sent", "invitation_id", inv.ID, "err", err)
			}
		})
	}

	c.publish(events.TopicCallEnded, events.CallEnded{InvitationID: inv.ID, Status: string(calls.StatusRejected)})

	if _, err := c.invites.UpdateInvitation(ctx, inv.ID, calls.StatusRejected, nil); err != nil {
		c.logger.Error("reject call failed", "invitation_id", inv.ID, "err", err)
		return fmt.Errorf("reject call: %w", err)
	}
	c.logger.Info("call rejected", "invitation_id", inv.ID)
	return nil
}

// MarkAnswered records that the callee's media joined. The phase is unchanged.
// With a bus, the media layer can publish TopicOutgoingCallAnswered instead
// of calling this directly.
func (c *Coordinator) MarkAnswered() {
	c.mu.Lock()
	snap := c.store.Snapshot()
	if snap.Phase != callsession.PhaseOutgoing && snap.Phase != callsession.PhaseActive {
		c.mu.Unlock()
		return
	}
	if snap.Answered {
		c.mu.Unlock()
		return
	}
	c.stopTimer(&c.ringTimer)
	c.store.SetAnswered(true)
	c.mu.Unlock()
	c.logger.Info("call answered", "invitation_id", snap.InvitationID())
}

// watchAnswered routes answered events to MarkAnswered. A payload carrying a
// different invitation id belongs to an earlier call and is dropped.
func (c *Coordinator) watchAnswered() {
	defer close(c.watchDone)
	for ev := range c.answered.Events {
		if id, ok := ev.Payload.(int64); ok && id != 0 && id != c.store.Snapshot().InvitationID() {
			c.logger.Debug("stale answered event", "invitation_id", id)
			continue
		}
		c.MarkAnswered()
	}
}

// MediaConnected moves an outgoing call to active once local media is up.
func (c *Coordinator) MediaConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store.Snapshot().Phase != callsession.PhaseOutgoing {
		return
	}
	c.store.Apply(func(s *callsession.Session) {
		s.Phase = callsession.PhaseActive
		s.StartedAt = c.clock.Now()
	})
}

// OutgoingAccepted is reported by the status poll. Activation is left to the
// media layer, so the session does not change.
func (c *Coordinator) OutgoingAccepted() {
	c.logger.Debug("outgoing call accepted", "invitation_id", c.store.Snapshot().OutgoingInvitationID)
}

// OutgoingRejected shows the declined banner, then returns to idle.
func (c *Coordinator) OutgoingRejected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store.Snapshot().Phase != callsession.PhaseOutgoing {
		return
	}
	c.stopTimer(&c.ringTimer)
	c.store.Apply(func(s *callsession.Session) {
		s.Phase = callsession.PhaseDeclined
		s.OutgoingInvitationID = 0
	})
	gen := c.advanceLocked()
	c.declinedTimer = c.clock.AfterFunc(c.declinedDisplay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.store.Snapshot().Phase != callsession.PhaseDeclined {
			return
		}
		c.resetLocked()
	})
	c.logger.Info("outgoing call declined")
}

// EndCall hangs up. durationSeconds is the observed call time.
func (c *Coordinator) EndCall(ctx context.Context, durationSeconds int) error {
	c.mu.Lock()
	snap := c.store.Snapshot()
	if snap.IsIdle() {
		c.mu.Unlock()
		return nil
	}
	if snap.Phase == callsession.PhaseDeclined {
		c.resetLocked()
		c.mu.Unlock()
		return nil
	}

	status := Classify(durationSeconds, snap.Initiator, snap.Answered)
	var id int64
	switch {
	case snap.OutgoingInvitationID != 0:
		id = snap.OutgoingInvitationID
	case snap.CurrentCallInvitationID != 0:
		id = snap.CurrentCallInvitationID
	case snap.IncomingInvitation != nil:
		id = snap.IncomingInvitation.ID
		status = calls.StatusMissed
	}
	if id != 0 {
		c.dismissLocked(id)
	}
	c.resetLocked()
	endedAt := c.clock.Now().Unix()
	c.mu.Unlock()

	var updateErr error
	if id != 0 {
		if _, err := c.invites.UpdateInvitation(ctx, id, status, &endedAt); err != nil {
			c.logger.Error("end call update failed", "invitation_id", id, "status", status, "err", err)
			updateErr = fmt.Errorf("end call: %w", err)
		}
	}

	if snap.Recipient != nil && snap.Initiator {
		recipientID := snap.Recipient.ID
		content := calls.FormatCallLog(snap.IsVoiceOnly, status, durationSeconds)
		c.background(func(ctx context.Context) {
			if err := c.chat.SendMessage(ctx, recipientID, content); err != nil {
				c.logger.Warn("call log not sent", "invitation_id", id, "err", err)
			}
		})
	}

	c.publish(events.TopicCallEnded, events.CallEnded{InvitationID: id, Status: string(status), DurationSeconds: durationSeconds})
	c.logger.Info("call ended", "invitation_id", id, "status", status, "duration_seconds", durationSeconds)
	return updateErr
}

// Classify picks the final invitation status for an ended call.
func Classify(durationSeconds int, initiator, answered bool) calls.Status {
	if durationSeconds > 0 && !(initiator && !answered) {
		return calls.StatusCompleted
	}
	return calls.StatusMissed
}

func (c *Coordinator) Minimize() { c.setMinimized(true) }

func (c *Coordinator) Maximize() { c.setMinimized(false) }

func (c *Coordinator) setMinimized(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store.Snapshot().Phase != callsession.PhaseActive {
		return
	}
	c.store.SetMinimized(v)
}

// BindMedia publishes the media layer's controls.
func (c *Coordinator) BindMedia(m callsession.MediaControls) { c.store.SetMedia(m) }

func (c *Coordinator) UnbindMedia() { c.store.SetMedia(nil) }

// Media returns the bound controls, or the no-op stub.
func (c *Coordinator) Media() callsession.MediaControls { return c.store.Media() }

// Wait blocks until background side effects have finished.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Close ends a call that is still ringing out or connected, then stops
// pending timers and waits for background side effects.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	// Answered events already published are applied before the call is
	// classified.
	if c.watchDone != nil {
		c.answered.Close()
		<-c.watchDone
	}

	snap := c.store.Snapshot()
	if snap.Phase == callsession.PhaseOutgoing || snap.Phase == callsession.PhaseActive {
		duration := 0
		if snap.Phase == callsession.PhaseActive && !snap.StartedAt.IsZero() {
			duration = int(c.clock.Now().Sub(snap.StartedAt) / time.Second)
		}
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		if err := c.EndCall(ctx, duration); err != nil {
			c.logger.Warn("call not ended on shutdown", "invitation_id", snap.InvitationID(), "err", err)
		}
		cancel()
	}

	c.mu.Lock()
	c.stopTimer(&c.ringTimer)
	c.stopTimer(&c.declinedTimer)
	c.gen++
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) ringTimedOut(gen uint64) {
	c.mu.Lock()
	snap := c.store.Snapshot()
	stale := gen != c.gen || snap.Phase != callsession.PhaseOutgoing || snap.Answered
	c.mu.Unlock()
	if stale {
		return
	}
	c.logger.Info("outgoing call unanswered", "invitation_id", snap.OutgoingInvitationID)

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	_ = c.EndCall(ctx, 0)
}

// resetLocked clears the session and cancels timers. c.mu must be held.
func (c *Coordinator) resetLocked() {
	c.stopTimer(&c.ringTimer)
	c.stopTimer(&c.declinedTimer)
	c.store.Reset()
	c.advanceLocked()
}

func (c *Coordinator) advanceLocked() uint64 {
	c.gen++
	return c.gen
}

// dismissLocked remembers id so polls stop resurfacing it. The oldest entry
// is evicted once maxDismissed are held.
func (c *Coordinator) dismissLocked(id int64) {
	if _, ok := c.dismissed[id]; ok {
		return
	}
	if len(c.dismissOrder) >= maxDismissed {
		delete(c.dismissed, c.dismissOrder[0])
		c.dismissOrder = c.dismissOrder[1:]
	}
	c.dismissed[id] = struct{}{}
	c.dismissOrder = append(c.dismissOrder, id)
}

func (c *Coordinator) stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (c *Coordinator) background(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (c *Coordinator) publish(topic events.Topic, payload any) {
	if c.bus != nil {
		c.bus.Publish(topic, payload)
	}
}

func callerOf(inv calls.Invitation) callsession.Participant {
	p := callsession.Participant{ID: inv.CallerID}
	if inv.Caller != nil {
		p.DisplayName = inv.Caller.DisplayName
		p.Online = inv.Caller.Online
	}
	return p
}
