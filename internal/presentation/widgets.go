package presentation

import (
	"fmt"
	"time"

	"listenlink/internal/callsession"
)

// ElapsedLabel formats a running call timer; hours appear only past the first.
func ElapsedLabel(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	h, m, s := secs/3600, (secs/60)%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// MinimizedWidget is the floating control strip shown over the app screen.
type MinimizedWidget struct {
	Title    string
	Elapsed  string
	Muted    bool
	CameraOn bool
	Voice    bool

	media callsession.MediaControls
}

// NewMinimizedWidget binds the widget to the session's media controls.
func NewMinimizedWidget(s callsession.Session, media callsession.MediaControls, now time.Time) MinimizedWidget {
	title := "Call"
	if s.Recipient != nil && s.Recipient.DisplayName != "" {
		title = s.Recipient.DisplayName
	}
	var elapsed time.Duration
	if !s.StartedAt.IsZero() {
		elapsed = now.Sub(s.StartedAt)
	}
	if media == nil {
		media = callsession.NoopMediaControls{}
	}
	return MinimizedWidget{
		Title:    title,
		Elapsed:  ElapsedLabel(elapsed),
		CameraOn: !s.IsVoiceOnly,
		Voice:    s.IsVoiceOnly,
		media:    media,
	}
}

func (w *MinimizedWidget) ToggleMute() {
	w.Muted = !w.Muted
	w.media.ToggleMute()
}

// ToggleCamera does nothing on voice calls.
func (w *MinimizedWidget) ToggleCamera() {
	if w.Voice {
		return
	}
	w.CameraOn = !w.CameraOn
	w.media.ToggleCamera()
}

func (w *MinimizedWidget) Maximize() { w.media.Maximize() }

func (w *MinimizedWidget) End() { w.media.End() }

// IncomingNotification is the headline shown on the incoming-call screen.
type IncomingNotification struct {
	Headline string
	Caller   string
}

func NewIncomingNotification(s callsession.Session) IncomingNotification {
	kind := "video"
	if s.IsVoiceOnly {
		kind = "voice"
	}
	caller := "Unknown caller"
	if s.Recipient != nil {
		switch {
		case s.Recipient.DisplayName != "":
			caller = s.Recipient.DisplayName
		case s.Recipient.ID != 0:
			caller = fmt.Sprintf("User %d", s.Recipient.ID)
		}
	}
	return IncomingNotification{
		Headline: fmt.Sprintf("Incoming %s call", kind),
		Caller:   caller,
	}
}
