// Package presentation decides what the client shows for a call session.
package presentation

import (
	"listenlink/internal/callsession"
)

type Screen string

const (
	ScreenApp      Screen = "app"
	ScreenIncoming Screen = "incoming"
	ScreenCall     Screen = "call"
)

type Overlay string

const (
	OverlayNone     Overlay = ""
	OverlayDeclined Overlay = "declined"
)

// View is the render decision for one session snapshot.
type View struct {
	Screen  Screen
	Overlay Overlay
	// Widget is set when a minimized call floats over the app screen.
	Widget bool
}

// Resolve is a pure function of the session.
func Resolve(s callsession.Session) View {
	switch s.Phase {
	case callsession.PhaseIncoming:
		return View{Screen: ScreenIncoming}
	case callsession.PhaseOutgoing:
		return View{Screen: ScreenCall}
	case callsession.PhaseDeclined:
		return View{Screen: ScreenCall, Overlay: OverlayDeclined}
	case callsession.PhaseActive:
		if s.IsMinimized {
			return View{Screen: ScreenApp, Widget: true}
		}
		return View{Screen: ScreenCall}
	default:
		return View{Screen: ScreenApp}
	}
}

// BlocksNavigation reports whether the app screen is unreachable.
func (v View) BlocksNavigation() bool { return v.Screen != ScreenApp }
