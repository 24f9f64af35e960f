// Package events is the in-process pub/sub used by call screens to learn
// about lifecycle changes they do not own (for example, history views
// refreshing after a call ends).
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Topic names are part of the client contract; keep them stable.
type Topic string

const (
	TopicCallEnded            Topic = "callEnded"
	TopicOutgoingCallAnswered Topic = "outgoingCallAnswered"
	TopicPostCreated          Topic = "postCreated"
)

const defaultSubscriberCapacity = 16

// Event is a single published notification.
type Event struct {
	Topic   Topic
	At      time.Time
	Payload any
}

// CallEnded is the payload of TopicCallEnded.
type CallEnded struct {
	InvitationID    int64
	Status          string
	DurationSeconds int
}

// Bus fans published events out to topic subscribers. Delivery never blocks
// the publisher: a full subscriber drops the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[*subscriber]struct{}
	capacity    int
	logger      *slog.Logger
}

// Option customizes Bus construction.
type Option func(*Bus)

// WithCapacity overrides the buffered channel size per subscriber.
func WithCapacity(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithLogger injects a logger for drop diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscribers: map[Topic]map[*subscriber]struct{}{},
		capacity:    defaultSubscriberCapacity,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Subscription is an active topic subscription.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription and closes Events.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (b *Bus) Subscribe(topic Topic) Subscription {
	sub := &subscriber{ch: make(chan Event, b.capacity)}
	b.mu.Lock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = map[*subscriber]struct{}{}
	}
	b.subscribers[topic][sub] = struct{}{}
	b.mu.Unlock()

	return Subscription{
		Events: sub.ch,
		cancel: func() { b.remove(topic, sub) },
	}
}

func (b *Bus) Publish(topic Topic, payload any) {
	ev := Event{Topic: topic, At: time.Now(), Payload: payload}

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers[topic]))
	for s := range b.subscribers[topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.deliver(ev) {
			b.logger.Debug("event dropped", "topic", string(topic))
		}
	}
}

func (b *Bus) remove(topic Topic, sub *subscriber) {
	b.mu.Lock()
	if subs := b.subscribers[topic]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, topic)
		}
	}
	b.mu.Unlock()
	sub.close()
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func (s *subscriber) deliver(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
