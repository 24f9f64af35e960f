// Package tui is the terminal client. It renders whatever the presentation
// switch picks for the current call session and forwards key presses to the
// call coordinator.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"listenlink/internal/calls"
	"listenlink/internal/callsession"
	"listenlink/internal/coordinator"
	"listenlink/internal/events"
	"listenlink/internal/presentation"
	"listenlink/internal/transport"
)

const (
	actionTimeout = 10 * time.Second
	tickInterval  = time.Second
)

// Calls is the coordinator surface the client drives.
type Calls interface {
	Session() callsession.Session
	Media() callsession.MediaControls
	BindMedia(m callsession.MediaControls)
	StartOutgoing(ctx context.Context, target callsession.Participant, callType calls.CallType) error
	Accept(ctx context.Context) error
	Reject(ctx context.Context) error
	EndCall(ctx context.Context, durationSeconds int) error
	Minimize()
	Maximize()
}

// Directory resolves a user id to a display record with presence.
type Directory interface {
	User(ctx context.Context, id int64) (calls.UserRef, error)
}

// Visibility is told when the terminal gains or loses focus.
type Visibility interface {
	SetVisible(v bool)
}

// HistorySource reloads the call history summary.
type HistorySource interface {
	History(ctx context.Context) (transport.History, error)
}

type AppOption func(*App)

func WithVisibility(v Visibility) AppOption {
	return func(a *App) { a.visibility = v }
}

func WithHistory(h HistorySource) AppOption {
	return func(a *App) { a.history = h }
}

// WithEvents subscribes the app to call-ended notifications.
func WithEvents(bus *events.Bus) AppOption {
	return func(a *App) {
		if bus != nil {
			sub := bus.Subscribe(events.TopicCallEnded)
			a.ended = &sub
		}
	}
}

// WithNow overrides the clock used for call timers.
func WithNow(now func() time.Time) AppOption {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

type sessionChangedMsg struct{}

type tickMsg time.Time

type actionDoneMsg struct {
	action string
	err    error
}

type callEndedMsg events.CallEnded

type historyMsg struct {
	history transport.History
	err     error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF6B6B")).Padding(0, 2)
	callBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4CAF50")).Padding(1, 3)
	ringBoxStyle = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#F7B801")).Padding(1, 3)
	widgetStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// App is the bubbletea model of the client.
type App struct {
	ctx        context.Context
	calls      Calls
	directory  Directory
	visibility Visibility
	history    HistorySource
	ended      *events.Subscription
	now        func() time.Time

	changes chan struct{}

	input     textinput.Model
	voiceOnly bool
	status    string
	err       error
	summary   *transport.History

	view      presentation.View
	widget    *presentation.MinimizedWidget
	muted     bool
	cameraOff bool
	endAsked  bool

	width  int
	height int
}

func NewApp(ctx context.Context, c Calls, dir Directory, opts ...AppOption) *App {
	ti := textinput.New()
	ti.Placeholder = "user id"
	ti.CharLimit = 18
	ti.Width = 20
	ti.Focus()

	a := &App{
		ctx:       ctx,
		calls:     c,
		directory: dir,
		now:       time.Now,
		changes:   make(chan struct{}, 1),
		input:     ti,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	// The terminal stands in for the media layer, so it binds the controls.
	c.BindMedia(callsession.FuncMediaControls{
		OnToggleMute:   func() { a.muted = !a.muted },
		OnToggleCamera: func() { a.cameraOff = !a.cameraOff },
		OnMaximize:     c.Maximize,
		OnEnd:          func() { a.endAsked = true },
	})
	a.view = presentation.Resolve(c.Session())
	return a
}

// Notify is a callsession.Store listener. It never blocks.
func (a *App) Notify(callsession.Session) {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, a.waitForChange(), a.scheduleTick(), a.fetchHistory()}
	if a.ended != nil {
		cmds = append(cmds, a.waitForCallEnded())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case tea.FocusMsg:
		if a.visibility != nil {
			a.visibility.SetVisible(true)
		}
		return a, nil

	case tea.BlurMsg:
		if a.visibility != nil {
			a.visibility.SetVisible(false)
		}
		return a, nil

	case sessionChangedMsg:
		a.syncView()
		return a, a.waitForChange()

	case tickMsg:
		return a, a.scheduleTick()

	case actionDoneMsg:
		a.handleActionDone(msg)
		a.syncView()
		return a, nil

	case callEndedMsg:
		a.status = endedStatus(events.CallEnded(msg))
		return a, tea.Batch(a.waitForCallEnded(), a.fetchHistory())

	case historyMsg:
		if msg.err == nil {
			h := msg.history
			a.summary = &h
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}
	a.syncView()

	switch {
	case a.view.Screen == presentation.ScreenIncoming:
		switch msg.String() {
		case "a":
			a.status = "Connecting…"
			return a, a.run("accept", func(ctx context.Context) error { return a.calls.Accept(ctx) })
		case "r":
			return a, a.run("reject", func(ctx context.Context) error { return a.calls.Reject(ctx) })
		}

	case a.view.Screen == presentation.ScreenCall:
		switch msg.String() {
		case "e":
			return a, a.endCall()
		case "m":
			a.calls.Minimize()
			a.syncView()
		case "u":
			a.calls.Media().ToggleMute()
		case "v":
			if !a.calls.Session().IsVoiceOnly {
				a.calls.Media().ToggleCamera()
			}
		}

	case a.view.Widget:
		if a.widget == nil {
			return a, nil
		}
		switch msg.String() {
		case "M":
			a.widget.Maximize()
			a.syncView()
		case "u":
			a.widget.ToggleMute()
		case "v":
			a.widget.ToggleCamera()
		case "e":
			a.widget.End()
		}
		if a.endAsked {
			a.endAsked = false
			return a, a.endCall()
		}

	default:
		switch msg.String() {
		case "esc":
			return a, tea.Quit
		case "tab":
			a.voiceOnly = !a.voiceOnly
			return a, nil
		case "enter":
			return a, a.startCall()
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

// syncView recomputes the presentation and keeps widget/input state aligned
// with it.
func (a *App) syncView() {
	s := a.calls.Session()
	a.view = presentation.Resolve(s)

	if a.view.Widget {
		if a.widget == nil {
			w := presentation.NewMinimizedWidget(s, a.calls.Media(), a.now())
			w.Muted = a.muted
			w.CameraOn = !s.IsVoiceOnly && !a.cameraOff
			a.widget = &w
		}
	} else {
		a.widget = nil
	}

	if s.IsIdle() {
		a.muted, a.cameraOff = false, false
		a.input.Focus()
	} else {
		a.input.Blur()
	}
}

func (a *App) startCall() tea.Cmd {
	raw := strings.TrimSpace(a.input.Value())
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		a.err = fmt.Errorf("enter a numeric user id")
		return nil
	}
	a.err = nil
	a.status = "Calling…"
	callType := calls.CallTypeFor(a.voiceOnly)
	return a.run("call", func(ctx context.Context) error {
		u, err := a.directory.User(ctx, id)
		if err != nil {
			return err
		}
		target := callsession.Participant{ID: u.ID, DisplayName: u.DisplayName, Online: u.Online}
		return a.calls.StartOutgoing(ctx, target, callType)
	})
}

func (a *App) endCall() tea.Cmd {
	s := a.calls.Session()
	duration := 0
	if s.Phase == callsession.PhaseActive && !s.StartedAt.IsZero() {
		duration = int(a.now().Sub(s.StartedAt) / time.Second)
	}
	return a.run("end", func(ctx context.Context) error { return a.calls.EndCall(ctx, duration) })
}

func (a *App) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (a *App) handleActionDone(msg actionDoneMsg) {
	if msg.err == nil {
		a.err = nil
		switch msg.action {
		case "call":
			a.input.Reset()
			a.status = ""
		case "accept":
			a.status = ""
		}
		return
	}
	switch {
	case errors.Is(msg.err, coordinator.ErrNoIncomingCall):
		// The call was withdrawn or already answered between key press and accept.
		a.status = ""
		a.err = nil
	case msg.action == "accept":
		a.status = "Call could not be connected"
	case errors.Is(msg.err, coordinator.ErrRecipientOffline):
		a.status = "That user is offline"
	case errors.Is(msg.err, coordinator.ErrCallInProgress):
		a.status = "Finish the current call first"
	case errors.Is(msg.err, transport.ErrNotFound):
		a.status = "No such user"
	default:
		a.status = ""
		a.err = msg.err
	}
}

func (a *App) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.changes:
			return sessionChangedMsg{}
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) waitForCallEnded() tea.Cmd {
	if a.ended == nil {
		return nil
	}
	ch := a.ended.Events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		ended, _ := ev.Payload.(events.CallEnded)
		return callEndedMsg(ended)
	}
}

func (a *App) fetchHistory() tea.Cmd {
	if a.history == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(a.ctx, actionTimeout)
		defer cancel()
		h, err := a.history.History(ctx)
		return historyMsg{history: h, err: err}
	}
}

func (a *App) scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func endedStatus(ev events.CallEnded) string {
	switch calls.Status(ev.Status) {
	case calls.StatusCompleted:
		return "Call ended · " + calls.FormatDuration(ev.DurationSeconds)
	case calls.StatusRejected:
		return "Call declined"
	default:
		return "Call missed"
	}
}
