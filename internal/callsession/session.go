// Package callsession holds the client's single call session.
//
// Store is a passive holder: it exposes one setter per field and performs no
// validation. Transition rules live in internal/coordinator.
package callsession

import (
	"sync"
	"time"

	"listenlink/internal/calls"
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseIncoming Phase = "incoming"
	PhaseOutgoing Phase = "outgoing"
	PhaseActive   Phase = "active"
	PhaseDeclined Phase = "declined"
)

// InCall reports whether a new call must be refused while in this phase.
func (p Phase) InCall() bool {
	return p == PhaseIncoming || p == PhaseOutgoing || p == PhaseActive || p == PhaseDeclined
}

// Participant is the remote party of a call.
type Participant struct {
	ID          int64
	DisplayName string
	Online      bool
}

// Session is a value snapshot of the call state.
type Session struct {
	Phase     Phase
	Recipient *Participant

	ChannelName string

	// OutgoingInvitationID is set while our own invitation is pending.
	OutgoingInvitationID int64
	// CurrentCallInvitationID is set once an incoming invitation was accepted.
	CurrentCallInvitationID int64
	// IncomingInvitation is the invitation shown on the incoming screen.
	IncomingInvitation *calls.Invitation

	IsVoiceOnly bool
	IsMinimized bool
	Answered    bool
	// Initiator is true on the side that placed the call.
	Initiator bool

	StartedAt time.Time
}

// InvitationID returns whichever invitation the session currently refers to.
func (s Session) InvitationID() int64 {
	switch {
	case s.OutgoingInvitationID != 0:
		return s.OutgoingInvitationID
	case s.CurrentCallInvitationID != 0:
		return s.CurrentCallInvitationID
	case s.IncomingInvitation != nil:
		return s.IncomingInvitation.ID
	default:
		return 0
	}
}

// IsIdle reports whether the session holds no call.
func (s Session) IsIdle() bool { return s.Phase == PhaseIdle || s.Phase == "" }

func idle() Session { return Session{Phase: PhaseIdle} }

// Store is the process-wide session provider.
type Store struct {
	mu        sync.RWMutex
	s         Session
	media     MediaControls
	listeners []func(Session)
}

func NewStore() *Store {
	return &Store{s: idle(), media: NoopMediaControls{}}
}

// Snapshot returns a copy of the current session.
func (st *Store) Snapshot() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := st.s
	if st.s.Recipient != nil {
		r := *st.s.Recipient
		out.Recipient = &r
	}
	if st.s.IncomingInvitation != nil {
		inv := *st.s.IncomingInvitation
		out.IncomingInvitation = &inv
	}
	return out
}

// Subscribe registers a listener called after every mutation with the new
// snapshot. Listeners run on the mutating goroutine and must not block.
func (st *Store) Subscribe(fn func(Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.listeners = append(st.listeners, fn)
}

func (st *Store) update(fn func(*Session)) {
	st.mu.Lock()
	fn(&st.s)
	listeners := append([]func(Session){}, st.listeners...)
	st.mu.Unlock()

	snap := st.Snapshot()
	for _, l := range listeners {
		l(snap)
	}
}

// Reset clears every field together.
func (st *Store) Reset() {
	st.update(func(s *Session) { *s = idle() })
}

func (st *Store) SetPhase(p Phase) { st.update(func(s *Session) { s.Phase = p }) }

func (st *Store) SetRecipient(p *Participant) {
	st.update(func(s *Session) { s.Recipient = p })
}

func (st *Store) SetChannelName(name string) {
	st.update(func(s *Session) { s.ChannelName = name })
}

func (st *Store) SetOutgoingInvitationID(id int64) {
	st.update(func(s *Session) { s.OutgoingInvitationID = id })
}

func (st *Store) SetCurrentCallInvitationID(id int64) {
	st.update(func(s *Session) { s.CurrentCallInvitationID = id })
}

func (st *Store) SetIncomingInvitation(inv *calls.Invitation) {
	st.update(func(s *Session) { s.IncomingInvitation = inv })
}

func (st *Store) SetVoiceOnly(v bool) { st.update(func(s *Session) { s.IsVoiceOnly = v }) }

func (st *Store) SetMinimized(v bool) { st.update(func(s *Session) { s.IsMinimized = v }) }

func (st *Store) SetAnswered(v bool) { st.update(func(s *Session) { s.Answered = v }) }

func (st *Store) SetInitiator(v bool) { st.update(func(s *Session) { s.Initiator = v }) }

func (st *Store) SetStartedAt(t time.Time) { st.update(func(s *Session) { s.StartedAt = t }) }

// Apply performs several field writes as one mutation, notifying listeners once.
func (st *Store) Apply(fn func(*Session)) { st.update(fn) }

// Media returns the bound media controls, never nil.
func (st *Store) Media() MediaControls {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.media
}

// SetMedia binds media controls; nil restores the no-op stub.
func (st *Store) SetMedia(m MediaControls) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if m == nil {
		m = NoopMediaControls{}
	}
	st.media = m
}
