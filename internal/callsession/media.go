package callsession

// MediaControls is the capability bundle published by whichever component
// has the media session mounted. Callers must tolerate the no-op default.
type MediaControls interface {
	ToggleMute()
	ToggleCamera()
	Maximize()
	End()
}

// NoopMediaControls is bound until the media layer finishes initializing.
type NoopMediaControls struct{}

func (NoopMediaControls) ToggleMute()   {}
func (NoopMediaControls) ToggleCamera() {}
func (NoopMediaControls) Maximize()     {}
func (NoopMediaControls) End()          {}

// FuncMediaControls adapts plain functions; nil fields are no-ops.
type FuncMediaControls struct {
	OnToggleMute   func()
	OnToggleCamera func()
	OnMaximize     func()
	OnEnd          func()
}

func (f FuncMediaControls) ToggleMute()   { call(f.OnToggleMute) }
func (f FuncMediaControls) ToggleCamera() { call(f.OnToggleCamera) }
func (f FuncMediaControls) Maximize()     { call(f.OnMaximize) }
func (f FuncMediaControls) End()          { call(f.OnEnd) }

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
