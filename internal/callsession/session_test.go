package callsession

import (
	"testing"

	"listenlink/internal/calls"
)

func TestResetClearsEveryField(t *testing.T) {
	st := NewStore()
	st.Apply(func(s *Session) {
		s.Phase = PhaseActive
		s.Recipient = &Participant{ID: 2, DisplayName: "Bea"}
		s.ChannelName = "ch_1_2"
		s.OutgoingInvitationID = 42
		s.CurrentCallInvitationID = 43
		s.IncomingInvitation = &calls.Invitation{ID: 44}
		s.IsVoiceOnly = true
		s.IsMinimized = true
		s.Answered = true
		s.Initiator = true
	})

	st.Reset()

	got := st.Snapshot()
	if got != (Session{Phase: PhaseIdle}) {
		t.Fatalf("expected idle session, got %+v", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	st := NewStore()
	st.SetRecipient(&Participant{ID: 7, DisplayName: "Ann"})

	snap := st.Snapshot()
	snap.Recipient.DisplayName = "changed"

	if st.Snapshot().Recipient.DisplayName != "Ann" {
		t.Fatalf("snapshot mutation leaked into the store")
	}
}

func TestSubscribersSeeEveryMutation(t *testing.T) {
	st := NewStore()
	var phases []Phase
	st.Subscribe(func(s Session) { phases = append(phases, s.Phase) })

	st.SetPhase(PhaseOutgoing)
	st.SetPhase(PhaseActive)
	st.Reset()

	want := []Phase{PhaseOutgoing, PhaseActive, PhaseIdle}
	if len(phases) != len(want) {
		t.Fatalf("expected %v, got %v", want, phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, phases)
		}
	}
}

func TestInvitationIDPrecedence(t *testing.T) {
	s := Session{IncomingInvitation: &calls.Invitation{ID: 3}}
	if s.InvitationID() != 3 {
		t.Fatalf("expected incoming id")
	}
	s.CurrentCallInvitationID = 2
	if s.InvitationID() != 2 {
		t.Fatalf("expected current call id")
	}
	s.OutgoingInvitationID = 1
	if s.InvitationID() != 1 {
		t.Fatalf("expected outgoing id")
	}
}

func TestMediaDefaultsToNoop(t *testing.T) {
	st := NewStore()
	st.Media().ToggleMute()

	muted := false
	st.SetMedia(FuncMediaControls{OnToggleMute: func() { muted = !muted }})
	st.Media().ToggleMute()
	if !muted {
		t.Fatalf("expected bound controls to run")
	}

	st.SetMedia(nil)
	if _, ok := st.Media().(NoopMediaControls); !ok {
		t.Fatalf("expected nil binding to restore no-op controls")
	}
}
