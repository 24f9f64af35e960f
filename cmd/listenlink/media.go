package main

import (
	"listenlink/internal/calls"
	"listenlink/internal/callsession"
	"listenlink/internal/events"
	"listenlink/internal/poller"
	"listenlink/internal/transport"
)

type outgoingCalls interface {
	Session() callsession.Session
	OutgoingAccepted()
	OutgoingRejected()
	MediaConnected()
}

// terminalMedia stands in for a media SDK. The terminal has no media
// session, so the callee accepting counts as answered and connected. The
// answer is announced on the bus the way a media SDK reports the remote
// joining; the coordinator listens for it.
type terminalMedia struct {
	coord outgoingCalls
	bus   *events.Bus
}

func (m terminalMedia) OutgoingAccepted() {
	m.coord.OutgoingAccepted()
	if m.bus != nil {
		m.bus.Publish(events.TopicOutgoingCallAnswered, m.coord.Session().OutgoingInvitationID)
	}
	m.coord.MediaConnected()
}

func (m terminalMedia) OutgoingRejected() { m.coord.OutgoingRejected() }

type pendingNotifier interface {
	Notify(list []calls.Invitation)
}

// frameRouter dispatches pushed stream frames to the same sinks the pollers use.
type frameRouter struct {
	incoming pendingNotifier
	session  func() callsession.Session
	outgoing poller.OutgoingSink
}

func (r frameRouter) Handle(f transport.StreamFrame) {
	switch f.Type {
	case transport.FramePending:
		r.incoming.Notify(f.Invitations)
	case transport.FrameInvitation:
		if f.Invitation == nil {
			return
		}
		s := r.session()
		if s.Phase != callsession.PhaseOutgoing || s.OutgoingInvitationID != f.Invitation.ID {
			return
		}
		switch f.Invitation.Status {
		case calls.StatusAccepted:
			r.outgoing.OutgoingAccepted()
		case calls.StatusRejected:
			r.outgoing.OutgoingRejected()
		}
	}
}
