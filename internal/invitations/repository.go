package invitations

import (
	"context"
	"time"

	"listenlink/internal/calls"
)

// Repository persists invitations. Transition is a compare-and-set on status:
// it fails with ErrConflict when the stored status is no longer from.
type Repository interface {
	Create(ctx context.Context, inv calls.Invitation) (calls.Invitation, error)
	Get(ctx context.Context, id int64) (calls.Invitation, error)
	Transition(ctx context.Context, id int64, from, to calls.Status, at time.Time, endedAt *time.Time) (calls.Invitation, error)
	// PendingFor lists invitations waiting on receiverID, newest first.
	PendingFor(ctx context.Context, receiverID int64) ([]calls.Invitation, error)
	// Live reports whether userID is on either side of a pending or accepted invitation.
	Live(ctx context.Context, userID int64) (bool, error)
	StalePending(ctx context.Context, createdBefore time.Time) ([]calls.Invitation, error)
	// StaleAccepted lists accepted invitations answered before answeredBefore.
	StaleAccepted(ctx context.Context, answeredBefore time.Time) ([]calls.Invitation, error)
	// Recent lists invitations involving userID, newest first.
	Recent(ctx context.Context, userID int64, limit int) ([]calls.Invitation, error)
}
