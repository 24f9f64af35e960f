package invitations

import (
	"log/slog"
	"sync"

	"listenlink/internal/calls"
)

const subscriberBuffer = 16

// Hub fans invitation changes out to per-user subscribers in this process.
// Slow subscribers lose updates rather than block the publisher; stream
// handlers resend the full pending list on every update so a drop heals.
type Hub struct {
	mu     sync.Mutex
	subs   map[int64]map[chan calls.Invitation]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   map[int64]map[chan calls.Invitation]struct{}{},
		logger: logger.With("component", "invitation-hub"),
	}
}

// Subscribe registers userID for changes to invitations they take part in.
// Call the returned func to unsubscribe; it closes the channel.
func (h *Hub) Subscribe(userID int64) (<-chan calls.Invitation, func()) {
	ch := make(chan calls.Invitation, subscriberBuffer)
	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = map[chan calls.Invitation]struct{}{}
		h.subs[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(inv calls.Invitation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliverLocked(inv.CallerID, inv)
	if inv.ReceiverID != inv.CallerID {
		h.deliverLocked(inv.ReceiverID, inv)
	}
}

func (h *Hub) deliverLocked(userID int64, inv calls.Invitation) {
	for ch := range h.subs[userID] {
		select {
		case ch <- inv:
		default:
			h.logger.Debug("subscriber full, dropping update", "user_id", userID, "invitation_id", inv.ID)
		}
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
