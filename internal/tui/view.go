package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"listenlink/internal/callsession"
	"listenlink/internal/presentation"
)

func (a *App) View() string {
	s := a.calls.Session()
	view := presentation.Resolve(s)

	var body string
	switch view.Screen {
	case presentation.ScreenIncoming:
		body = a.renderIncoming(s)
	case presentation.ScreenCall:
		body = a.renderCall(s, view)
	default:
		body = a.renderHome()
		if view.Widget && a.widget != nil {
			body = lipgloss.JoinVertical(lipgloss.Left, body, "", a.renderWidget())
		}
	}

	parts := []string{titleStyle.Render("ListenLink"), "", body}
	if line := a.renderStatus(); line != "" {
		parts = append(parts, "", line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (a *App) renderHome() string {
	kind := "video"
	if a.voiceOnly {
		kind = "voice"
	}
	lines := []string{
		"Call user: " + a.input.View(),
		hintStyle.Render(fmt.Sprintf("[enter] place %s call  [tab] switch type  [esc] quit", kind)),
	}
	if h := a.summary; h != nil {
		lines = append(lines, "", hintStyle.Render(fmt.Sprintf(
			"History: %d completed · %d missed · %d declined · %s total",
			h.CompletedCalls, h.MissedCalls, h.RejectedCalls, presentationDuration(h.TotalDurationSeconds),
		)))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderIncoming(s callsession.Session) string {
	n := presentation.NewIncomingNotification(s)
	content := lipgloss.JoinVertical(lipgloss.Center,
		lipgloss.NewStyle().Bold(true).Render(n.Headline),
		n.Caller,
		"",
		hintStyle.Render("[a] accept  [r] reject"),
	)
	return ringBoxStyle.Render(content)
}

func (a *App) renderCall(s callsession.Session, view presentation.View) string {
	name := "Unknown"
	if s.Recipient != nil && s.Recipient.DisplayName != "" {
		name = s.Recipient.DisplayName
	}

	var state string
	switch s.Phase {
	case callsession.PhaseOutgoing:
		state = "Calling…"
		if s.Answered {
			state = "Connecting…"
		}
	case callsession.PhaseActive:
		state = presentation.ElapsedLabel(a.now().Sub(s.StartedAt))
	default:
		state = ""
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Render(name), state}
	if s.Phase == callsession.PhaseActive {
		lines = append(lines, a.mediaLine(s.IsVoiceOnly))
	}
	if view.Overlay == presentation.OverlayDeclined {
		lines = append(lines, "", bannerStyle.Render("Call declined"))
	} else {
		lines = append(lines, "", hintStyle.Render("[e] end  [m] minimize  [u] mute  [v] camera"))
	}
	return callBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
}

func (a *App) renderWidget() string {
	w := a.widget
	s := a.calls.Session()
	elapsed := presentation.ElapsedLabel(a.now().Sub(s.StartedAt))
	mic := "mic on"
	if w.Muted {
		mic = "muted"
	}
	parts := []string{w.Title, elapsed, mic}
	if !w.Voice {
		cam := "camera off"
		if w.CameraOn {
			cam = "camera on"
		}
		parts = append(parts, cam)
	}
	line := strings.Join(parts, " · ")
	return widgetStyle.Render(line + "\n" + hintStyle.Render("[M] maximize  [u] mute  [v] camera  [e] end"))
}

func (a *App) mediaLine(voice bool) string {
	mic := "mic on"
	if a.muted {
		mic = "muted"
	}
	if voice {
		return mic
	}
	cam := "camera on"
	if a.cameraOff {
		cam = "camera off"
	}
	return mic + " · " + cam
}

func (a *App) renderStatus() string {
	if a.err != nil {
		return errorStyle.Render("Error: " + a.err.Error())
	}
	if a.status != "" {
		return hintStyle.Render(a.status)
	}
	return ""
}

func presentationDuration(seconds int) string {
	return presentation.ElapsedLabel(time.Duration(seconds) * time.Second)
}
