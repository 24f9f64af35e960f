package calls

import (
	"fmt"
	"time"
)

// Invitation is the server-owned record of a call request between two users.
//
// The status lifecycle is independent of either client's local phase:
// clients only read and write it through the transport.
type Invitation struct {
	ID         int64 `json:"id" db:"id"`
	CallerID   int64 `json:"caller_id" db:"caller_id"`
	ReceiverID int64 `json:"receiver_id" db:"receiver_id"`

	// Caller and Receiver are denormalized display records, filled by the API.
	Caller   *UserRef `json:"caller,omitempty" db:"-"`
	Receiver *UserRef `json:"receiver,omitempty" db:"-"`

	CallType    CallType `json:"call_type" db:"call_type"`
	Status      Status   `json:"status" db:"status"`
	ChannelName string   `json:"channel_name" db:"channel_name"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

// TalkSeconds is the answered duration of a completed call, 0 otherwise.
func (inv Invitation) TalkSeconds() int {
	if inv.Status != StatusCompleted || inv.AnsweredAt == nil || inv.EndedAt == nil {
		return 0
	}
	d := inv.EndedAt.Sub(*inv.AnsweredAt)
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}

// UserRef is the minimal identity shown next to a call.
type UserRef struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Online      bool   `json:"online"`
}

type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeVoice || t == CallTypeVideo
}

// VoiceOnly reports whether the call carries no video.
func (t CallType) VoiceOnly() bool { return t == CallTypeVoice }

// CallTypeFor maps the session's voice flag back to a call type.
func CallTypeFor(voiceOnly bool) CallType {
	if voiceOnly {
		return CallTypeVoice
	}
	return CallTypeVideo
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
)

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected, StatusCancelled, StatusMissed},
	StatusAccepted:  {StatusCompleted, StatusMissed},
	StatusRejected:  {},
	StatusCancelled: {},
	StatusCompleted: {},
	StatusMissed:    {},
}

func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s.Valid() && len(validTransitions[s]) == 0
}

// CanTransitionTo checks the invitation status table.
func (s Status) CanTransitionTo(next Status) bool {
	for _, st := range validTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

// ChannelName builds the media channel identifier for a caller/receiver pair.
func ChannelName(callerID, receiverID int64) string {
	return fmt.Sprintf("ch_%d_%d", callerID, receiverID)
}
