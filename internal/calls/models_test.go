package calls

import (
	"testing"
	"time"
)

func TestStatusTransitions(t *testing.T) {
	if !StatusPending.CanTransitionTo(StatusAccepted) {
		t.Fatalf("pending -> accepted must be allowed")
	}
	if !StatusAccepted.CanTransitionTo(StatusCompleted) {
		t.Fatalf("accepted -> completed must be allowed")
	}
	if StatusRejected.CanTransitionTo(StatusAccepted) {
		t.Fatalf("rejected is terminal")
	}
	if StatusAccepted.CanTransitionTo(StatusRejected) {
		t.Fatalf("accepted -> rejected must not be allowed")
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusCancelled, StatusCompleted, StatusMissed} {
		if !s.Terminal() {
			t.Fatalf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusAccepted, Status("bogus")} {
		if s.Terminal() {
			t.Fatalf("expected %s to be non-terminal", s)
		}
	}
}

func TestChannelName(t *testing.T) {
	if got := ChannelName(1, 2); got != "ch_1_2" {
		t.Fatalf("expected ch_1_2, got %q", got)
	}
}

func TestCallTypeFor(t *testing.T) {
	if CallTypeFor(true) != CallTypeVoice || CallTypeFor(false) != CallTypeVideo {
		t.Fatalf("unexpected call type mapping")
	}
	if !CallTypeVoice.VoiceOnly() || CallTypeVideo.VoiceOnly() {
		t.Fatalf("unexpected voice-only flag")
	}
}

func TestTalkSeconds(t *testing.T) {
	answered := time.Unix(100, 0)
	ended := answered.Add(125 * time.Second)
	inv := Invitation{Status: StatusCompleted, AnsweredAt: &answered, EndedAt: &ended}
	if got := inv.TalkSeconds(); got != 125 {
		t.Fatalf("expected 125, got %d", got)
	}
	inv.Status = StatusMissed
	if got := inv.TalkSeconds(); got != 0 {
		t.Fatalf("expected 0 for missed, got %d", got)
	}
}
