package httpapi_test

import (
	"context"
	"testing"
	"time"

	"listenlink/internal/calls"
	"listenlink/internal/transport"
)

func TestStreamPushesPendingInvitations(t *testing.T) {
	s := newStack(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan transport.StreamFrame, 16)
	stream := transport.NewStream(s.srv.URL, s.token(t, 2, "listener"), nil)
	go func() { _ = stream.Run(ctx, func(f transport.StreamFrame) { frames <- f }) }()

	next := func() transport.StreamFrame {
		t.Helper()
		select {
		case f := <-frames:
			return f
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame")
			return transport.StreamFrame{}
		}
	}

	// The stream's own upgrade request marks Bea online.
	if f := next(); f.Type != calls.FramePending || len(f.Invitations) != 0 {
		t.Fatalf("expected empty pending frame, got %+v", f)
	}

	inv, err := s.client(t, 1, "member").CreateInvitation(ctx, 2, calls.CallTypeVoice)
	if err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	if f := next(); f.Type != calls.FrameInvitation || f.Invitation == nil || f.Invitation.ID != inv.ID {
		t.Fatalf("expected invitation frame, got %+v", f)
	}
	f := next()
	if f.Type != calls.FramePending || len(f.Invitations) != 1 || f.Invitations[0].ID != inv.ID {
		t.Fatalf("expected pending list with the invitation, got %+v", f)
	}
	if f.Invitations[0].Caller == nil || f.Invitations[0].Caller.DisplayName != "Ann" {
		t.Fatalf("expected decorated caller, got %+v", f.Invitations[0])
	}
}
