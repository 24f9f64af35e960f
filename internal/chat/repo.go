package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// MemoryRepo keeps messages in insertion order.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	msgs   []Message
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{nextID: 1} }

func (r *MemoryRepo) Insert(_ context.Context, m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID
	r.nextID++
	r.msgs = append(r.msgs, m)
	return m, nil
}

func (r *MemoryRepo) Thread(_ context.Context, a, b int64, limit int) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, 0)
	for _, m := range r.msgs {
		if (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a) {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Querier is the slice of a pgx pool used by PGRepo.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGRepo struct {
	db Querier
}

func NewPGRepo(db Querier) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Insert(ctx context.Context, m Message) (Message, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO chat_messages (sender_id, recipient_id, content, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		m.SenderID, m.RecipientID, m.Content, m.Kind, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (r *PGRepo) Thread(ctx context.Context, a, b int64, limit int) ([]Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, sender_id, recipient_id, content, kind, created_at
		FROM chat_messages
		WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, a, b, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.Kind, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
