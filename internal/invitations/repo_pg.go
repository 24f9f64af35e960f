package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"listenlink/internal/calls"
	"listenlink/pkg/utils"
)

// Querier is the slice of a pgx pool used by PGRepo.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// PGRepo stores invitations in the call_invitations table.
type PGRepo struct {
	db Querier
}

func NewPGRepo(db Querier) *PGRepo { return &PGRepo{db: db} }

const invitationColumns = `id, caller_id, receiver_id, call_type, status, channel_name, created_at, updated_at, answered_at, ended_at`

func scanInvitation(row pgx.Row) (calls.Invitation, error) {
	var inv calls.Invitation
	err := row.Scan(
		&inv.ID, &inv.CallerID, &inv.ReceiverID,
		&inv.CallType, &inv.Status, &inv.ChannelName,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.AnsweredAt, &inv.EndedAt,
	)
	return inv, err
}

// Create inserts a pending invitation. Both participants are held under
// transaction-scoped advisory locks while liveness is re-checked, so two API
// instances cannot book the same user at once.
func (r *PGRepo) Create(ctx context.Context, inv calls.Invitation) (calls.Invitation, error) {
	lo, hi := inv.CallerID, inv.ReceiverID
	if lo > hi {
		lo, hi = hi, lo
	}
	err := utils.WithTx(ctx, r.db, pgx.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1), pg_advisory_xact_lock($2)`, lo, hi); err != nil {
			return fmt.Errorf("lock participants: %w", err)
		}
		var busy bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM call_invitations
				WHERE (caller_id = ANY($1) OR receiver_id = ANY($1)) AND status IN ('pending', 'accepted')
			)`, []int64{lo, hi}).Scan(&busy); err != nil {
			return fmt.Errorf("check participants: %w", err)
		}
		if busy {
			return ErrBusy
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO call_invitations (caller_id, receiver_id, call_type, status, channel_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			inv.CallerID, inv.ReceiverID, string(inv.CallType), string(inv.Status),
			inv.ChannelName, inv.CreatedAt, inv.UpdatedAt,
		).Scan(&inv.ID)
		if err != nil {
			return fmt.Errorf("insert invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return calls.Invitation{}, err
	}
	return inv, nil
}

func (r *PGRepo) Get(ctx context.Context, id int64) (calls.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM call_invitations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return calls.Invitation{}, ErrNotFound
	}
	return inv, err
}

func (r *PGRepo) Transition(ctx context.Context, id int64, from, to calls.Status, at time.Time, endedAt *time.Time) (calls.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRow(ctx, `
		UPDATE call_invitations
		SET status = $3,
			updated_at = $4,
			answered_at = CASE WHEN $3 = 'accepted' THEN $4 ELSE answered_at END,
			ended_at = COALESCE($5, ended_at)
		WHERE id = $1 AND status = $2
		RETURNING `+invitationColumns,
		id, string(from), string(to), at, endedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row is gone or someone moved it first.
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return calls.Invitation{}, ErrNotFound
		}
		return calls.Invitation{}, ErrConflict
	}
	return inv, err
}

func (r *PGRepo) PendingFor(ctx context.Context, receiverID int64) ([]calls.Invitation, error) {
	return r.list(ctx, `
		SELECT `+invitationColumns+` FROM call_invitations
		WHERE receiver_id = $1 AND status = 'pending'
		ORDER BY created_at DESC, id DESC`, receiverID)
}

func (r *PGRepo) Live(ctx context.Context, userID int64) (bool, error) {
	var live bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM call_invitations
			WHERE (caller_id = $1 OR receiver_id = $1) AND status IN ('pending', 'accepted')
		)`, userID).Scan(&live)
	return live, err
}

func (r *PGRepo) StalePending(ctx context.Context, createdBefore time.Time) ([]calls.Invitation, error) {
	return r.list(ctx, `
		SELECT `+invitationColumns+` FROM call_invitations
		WHERE status = 'pending' AND created_at < $1
		ORDER BY id`, createdBefore)
}

func (r *PGRepo) StaleAccepted(ctx context.Context, answeredBefore time.Time) ([]calls.Invitation, error) {
	return r.list(ctx, `
		SELECT `+invitationColumns+` FROM call_invitations
		WHERE status = 'accepted' AND COALESCE(answered_at, updated_at) < $1
		ORDER BY id`, answeredBefore)
}

func (r *PGRepo) Recent(ctx context.Context, userID int64, limit int) ([]calls.Invitation, error) {
	return r.list(ctx, `
		SELECT `+invitationColumns+` FROM call_invitations
		WHERE caller_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
}

func (r *PGRepo) list(ctx context.Context, sql string, args ...any) ([]calls.Invitation, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]calls.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
