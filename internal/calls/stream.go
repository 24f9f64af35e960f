package calls

// StreamFrame is one push message on the invitation stream.
//
// A pending frame carries the receiver's full pending list, newest first.
// An invitation frame carries a single changed invitation.
type StreamFrame struct {
	Type        string       `json:"type"`
	Invitations []Invitation `json:"invitations,omitempty"`
	Invitation  *Invitation  `json:"invitation,omitempty"`
}

const (
	FramePending    = "pending"
	FrameInvitation = "invitation"
)
