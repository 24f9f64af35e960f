package presentation

import (
	"testing"
	"time"

	"listenlink/internal/callsession"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		s    callsession.Session
		want View
	}{
		{"idle", callsession.Session{Phase: callsession.PhaseIdle}, View{Screen: ScreenApp}},
		{"zero value", callsession.Session{}, View{Screen: ScreenApp}},
		{"incoming", callsession.Session{Phase: callsession.PhaseIncoming}, View{Screen: ScreenIncoming}},
		{"outgoing", callsession.Session{Phase: callsession.PhaseOutgoing}, View{Screen: ScreenCall}},
		{"declined", callsession.Session{Phase: callsession.PhaseDeclined}, View{Screen: ScreenCall, Overlay: OverlayDeclined}},
		{"active", callsession.Session{Phase: callsession.PhaseActive}, View{Screen: ScreenCall}},
		{"active minimized", callsession.Session{Phase: callsession.PhaseActive, IsMinimized: true}, View{Screen: ScreenApp, Widget: true}},
		{"minimized ignored outside active", callsession.Session{Phase: callsession.PhaseIncoming, IsMinimized: true}, View{Screen: ScreenIncoming}},
	}
	for _, tc := range cases {
		if got := Resolve(tc.s); got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestElapsedLabel(t *testing.T) {
	if got := ElapsedLabel(125 * time.Second); got != "02:05" {
		t.Fatalf("expected 02:05, got %s", got)
	}
	if got := ElapsedLabel(time.Hour + 2*time.Minute + 3*time.Second); got != "1:02:03" {
		t.Fatalf("expected 1:02:03, got %s", got)
	}
	if got := ElapsedLabel(-time.Second); got != "00:00" {
		t.Fatalf("expected 00:00, got %s", got)
	}
}

func TestMinimizedWidgetDrivesMediaControls(t *testing.T) {
	var muted, camera, maximized, ended int
	media := callsession.FuncMediaControls{
		OnToggleMute:   func() { muted++ },
		OnToggleCamera: func() { camera++ },
		OnMaximize:     func() { maximized++ },
		OnEnd:          func() { ended++ },
	}
	start := time.Unix(1_700_000_000, 0)
	s := callsession.Session{
		Phase:       callsession.PhaseActive,
		IsMinimized: true,
		Recipient:   &callsession.Participant{ID: 2, DisplayName: "Bea"},
		StartedAt:   start,
	}

	w := NewMinimizedWidget(s, media, start.Add(95*time.Second))
	if w.Title != "Bea" || w.Elapsed != "01:35" || !w.CameraOn {
		t.Fatalf("unexpected widget %+v", w)
	}
	w.ToggleMute()
	w.ToggleCamera()
	w.Maximize()
	w.End()
	if !w.Muted || w.CameraOn || muted != 1 || camera != 1 || maximized != 1 || ended != 1 {
		t.Fatalf("controls not forwarded: widget=%+v", w)
	}
}

func TestMinimizedWidgetVoiceCallHasNoCamera(t *testing.T) {
	camera := 0
	s := callsession.Session{Phase: callsession.PhaseActive, IsVoiceOnly: true}
	w := NewMinimizedWidget(s, callsession.FuncMediaControls{OnToggleCamera: func() { camera++ }}, time.Now())
	w.ToggleCamera()
	if camera != 0 || w.CameraOn {
		t.Fatalf("camera toggled on a voice call")
	}
	if w.Title != "Call" || w.Elapsed != "00:00" {
		t.Fatalf("unexpected defaults %+v", w)
	}
}

func TestIncomingNotification(t *testing.T) {
	n := NewIncomingNotification(callsession.Session{
		Phase:     callsession.PhaseIncoming,
		Recipient: &callsession.Participant{ID: 1, DisplayName: "Ann"},
	})
	if n.Headline != "Incoming video call" || n.Caller != "Ann" {
		t.Fatalf("unexpected notification %+v", n)
	}

	n = NewIncomingNotification(callsession.Session{
		Phase:       callsession.PhaseIncoming,
		IsVoiceOnly: true,
		Recipient:   &callsession.Participant{ID: 7},
	})
	if n.Headline != "Incoming voice call" || n.Caller != "User 7" {
		t.Fatalf("unexpected notification %+v", n)
	}
}
