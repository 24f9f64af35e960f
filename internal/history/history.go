// Package history summarizes a user's calls from invitation records.
package history

import (
	"context"
	"errors"

	"listenlink/internal/calls"
)

var ErrInvalidRequest = errors.New("history: invalid request")

const (
	defaultRecent = 10
	scanWindow    = 500
)

// Source lists invitations involving a user, newest first.
type Source interface {
	Recent(ctx context.Context, userID int64, limit int) ([]calls.Invitation, error)
}

// Summary is the per-user call history. Counts cover the latest records the
// service scans, not the full lifetime.
type Summary struct {
	UserID int64 `json:"user_id"`

	CompletedCalls int `json:"completed_calls"`
	MissedCalls    int `json:"missed_calls"`
	RejectedCalls  int `json:"rejected_calls"`

	TotalDurationSeconds int `json:"total_duration_seconds"`

	Recent []calls.Invitation `json:"recent"`
}

type Service struct {
	src Source
}

func NewService(src Source) *Service { return &Service{src: src} }

// Summary aggregates userID's finished calls. recent bounds the list of
// latest invitations returned alongside the counts.
func (s *Service) Summary(ctx context.Context, userID int64, recent int) (Summary, error) {
	if userID <= 0 {
		return Summary{}, ErrInvalidRequest
	}
	if s.src == nil {
		return Summary{}, errors.New("history: source not configured")
	}
	if recent <= 0 {
		recent = defaultRecent
	}

	rows, err := s.src.Recent(ctx, userID, scanWindow)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{UserID: userID, Recent: make([]calls.Invitation, 0, recent)}
	for _, inv := range rows {
		switch inv.Status {
		case calls.StatusCompleted:
			out.CompletedCalls++
			out.TotalDurationSeconds += inv.TalkSeconds()
		case calls.StatusMissed, calls.StatusCancelled:
			out.MissedCalls++
		case calls.StatusRejected:
			out.RejectedCalls++
		case calls.StatusPending, calls.StatusAccepted:
			// still live
		}
		if len(out.Recent) < recent {
			out.Recent = append(out.Recent, inv)
		}
	}
	return out, nil
}
