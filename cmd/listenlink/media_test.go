package main

import (
	"reflect"
	"testing"

	"listenlink/internal/calls"
	"listenlink/internal/callsession"
	"listenlink/internal/events"
	"listenlink/internal/transport"
)

type callRecorder struct {
	got     []string
	session callsession.Session
}

func (r *callRecorder) Session() callsession.Session { return r.session }
func (r *callRecorder) OutgoingAccepted()            { r.got = append(r.got, "accepted") }
func (r *callRecorder) OutgoingRejected()            { r.got = append(r.got, "rejected") }
func (r *callRecorder) MediaConnected()              { r.got = append(r.got, "connected") }

type notifyRecorder struct{ lists [][]calls.Invitation }

func (n *notifyRecorder) Notify(list []calls.Invitation) { n.lists = append(n.lists, list) }

func TestTerminalMediaConnectsOnAccept(t *testing.T) {
	bus := events.NewBus()
	answered := bus.Subscribe(events.TopicOutgoingCallAnswered)
	defer answered.Close()
	rec := &callRecorder{session: callsession.Session{Phase: callsession.PhaseOutgoing, OutgoingInvitationID: 7}}
	m := terminalMedia{coord: rec, bus: bus}
	m.OutgoingAccepted()
	m.OutgoingRejected()

	want := []string{"accepted", "connected", "rejected"}
	if !reflect.DeepEqual(rec.got, want) {
		t.Fatalf("expected %v, got %v", want, rec.got)
	}
	select {
	case ev := <-answered.Events:
		if id, _ := ev.Payload.(int64); id != 7 {
			t.Fatalf("expected answered event for 7, got %+v", ev.Payload)
		}
	default:
		t.Fatalf("expected answered event")
	}
}

func TestFrameRouter(t *testing.T) {
	rec := &callRecorder{}
	notes := &notifyRecorder{}
	session := callsession.Session{Phase: callsession.PhaseOutgoing, OutgoingInvitationID: 7}
	r := frameRouter{
		incoming: notes,
		session:  func() callsession.Session { return session },
		outgoing: rec,
	}

	r.Handle(transport.StreamFrame{Type: transport.FramePending, Invitations: []calls.Invitation{{ID: 3}}})
	if len(notes.lists) != 1 || notes.lists[0][0].ID != 3 {
		t.Fatalf("expected pending list forwarded, got %+v", notes.lists)
	}

	// Updates for other invitations are ignored.
	r.Handle(transport.StreamFrame{Type: transport.FrameInvitation, Invitation: &calls.Invitation{ID: 8, Status: calls.StatusAccepted}})
	r.Handle(transport.StreamFrame{Type: transport.FrameInvitation, Invitation: &calls.Invitation{ID: 7, Status: calls.StatusPending}})
	if len(rec.got) != 0 {
		t.Fatalf("expected no outgoing callbacks, got %v", rec.got)
	}

	r.Handle(transport.StreamFrame{Type: transport.FrameInvitation, Invitation: &calls.Invitation{ID: 7, Status: calls.StatusRejected}})
	if !reflect.DeepEqual(rec.got, []string{"rejected"}) {
		t.Fatalf("expected rejection, got %v", rec.got)
	}

	session.Phase = callsession.PhaseIdle
	r.Handle(transport.StreamFrame{Type: transport.FrameInvitation, Invitation: &calls.Invitation{ID: 7, Status: calls.StatusAccepted}})
	if len(rec.got) != 1 {
		t.Fatalf("expected no callbacks once idle, got %v", rec.got)
	}
}
