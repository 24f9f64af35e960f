package invitations

import (
	"context"
	"sort"
	"sync"
	"time"

	"listenlink/internal/calls"
)

// MemoryRepo is an in-memory invitation store for tests and local runs.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]calls.Invitation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{nextID: 1, byID: map[int64]calls.Invitation{}}
}

func (r *MemoryRepo) Create(_ context.Context, inv calls.Invitation) (calls.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.ID = r.nextID
	r.nextID++
	r.byID[inv.ID] = inv
	return inv, nil
}

func (r *MemoryRepo) Get(_ context.Context, id int64) (calls.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byID[id]
	if !ok {
		return calls.Invitation{}, ErrNotFound
	}
	return inv, nil
}

func (r *MemoryRepo) Transition(_ context.Context, id int64, from, to calls.Status, at time.Time, endedAt *time.Time) (calls.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byID[id]
	if !ok {
		return calls.Invitation{}, ErrNotFound
	}
	if inv.Status != from {
		return calls.Invitation{}, ErrConflict
	}
	inv.Status = to
	inv.UpdatedAt = at
	if to == calls.StatusAccepted {
		a := at
		inv.AnsweredAt = &a
	}
	if endedAt != nil {
		e := *endedAt
		inv.EndedAt = &e
	}
	r.byID[id] = inv
	return inv, nil
}

func (r *MemoryRepo) PendingFor(_ context.Context, receiverID int64) ([]calls.Invitation, error) {
	return r.collect(func(inv calls.Invitation) bool {
		return inv.ReceiverID == receiverID && inv.Status == calls.StatusPending
	}, 0), nil
}

func (r *MemoryRepo) Live(_ context.Context, userID int64) (bool, error) {
	live := r.collect(func(inv calls.Invitation) bool {
		return (inv.CallerID == userID || inv.ReceiverID == userID) &&
			(inv.Status == calls.StatusPending || inv.Status == calls.StatusAccepted)
	}, 1)
	return len(live) > 0, nil
}

func (r *MemoryRepo) StalePending(_ context.Context, createdBefore time.Time) ([]calls.Invitation, error) {
	return r.collect(func(inv calls.Invitation) bool {
		return inv.Status == calls.StatusPending && inv.CreatedAt.Before(createdBefore)
	}, 0), nil
}

func (r *MemoryRepo) StaleAccepted(_ context.Context, answeredBefore time.Time) ([]calls.Invitation, error) {
	return r.collect(func(inv calls.Invitation) bool {
		if inv.Status != calls.StatusAccepted {
			return false
		}
		at := inv.UpdatedAt
		if inv.AnsweredAt != nil {
			at = *inv.AnsweredAt
		}
		return at.Before(answeredBefore)
	}, 0), nil
}

func (r *MemoryRepo) Recent(_ context.Context, userID int64, limit int) ([]calls.Invitation, error) {
	return r.collect(func(inv calls.Invitation) bool {
		return inv.CallerID == userID || inv.ReceiverID == userID
	}, limit), nil
}

// collect returns matches newest first, at most limit when limit > 0.
func (r *MemoryRepo) collect(match func(calls.Invitation) bool, limit int) []calls.Invitation {
	r.mu.Lock()
	out := make([]calls.Invitation, 0)
	for _, inv := range r.byID {
		if match(inv) {
			out = append(out, inv)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
