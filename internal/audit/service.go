package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByInvitation(ctx context.Context, invitationID int64) ([]Event, error)
}

// Service records who moved which invitation where.
// Audit is internal-only. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var (
	ErrInvalidEvent   = errors.New("audit: invalid event")
	ErrInvalidRequest = errors.New("audit: invalid request")
)

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.Type == EventTypeTransition && (e.InvitationID <= 0 || e.ToStatus == "") {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogTransition records an invitation status change. actorUserID is 0 when the
// sweeper expires an invitation.
func (s *Service) LogTransition(ctx context.Context, invitationID, actorUserID int64, from, to string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeTransition,
		ActorUserID:  actorUserID,
		InvitationID: invitationID,
		FromStatus:   from,
		ToStatus:     to,
	})
}

// LogAdminAction records an admin action (including hidden roles).
func (s *Service) LogAdminAction(ctx context.Context, actorUserID int64, actorRole, ip, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     message,
	})
}

// Trail returns the recorded history of one invitation, oldest first.
func (s *Service) Trail(ctx context.Context, invitationID int64) ([]Event, error) {
	if invitationID <= 0 {
		return nil, ErrInvalidRequest
	}
	return s.repo.ListByInvitation(ctx, invitationID)
}
