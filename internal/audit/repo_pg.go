package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the slice of a pgx pool used by PGRepo.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGRepo writes to call_audit_events. The table has no UPDATE or DELETE grants.
type PGRepo struct {
	db Querier
}

func NewPGRepo(db Querier) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO call_audit_events
			(id, type, actor_user_id, actor_role, ip_address, invitation_id, from_status, to_status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.InvitationID, e.FromStatus, e.ToStatus, e.Message, e.CreatedAt,
	)
	return err
}

func (r *PGRepo) ListByInvitation(ctx context.Context, invitationID int64) ([]Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, type, actor_user_id, actor_role, ip_address, invitation_id, from_status, to_status, message, created_at
		FROM call_audit_events
		WHERE invitation_id = $1
		ORDER BY created_at, id`, invitationID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID, &e.Type, &e.ActorUserID, &e.ActorRole, &e.IPAddress,
			&e.InvitationID, &e.FromStatus, &e.ToStatus, &e.Message, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
