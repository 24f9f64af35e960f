package invitations

import (
	"testing"

	"listenlink/internal/calls"
)

func TestHub_UnsubscribeClosesAndForgets(t *testing.T) {
	h := NewHub(nil)
	ch, unsub := h.Subscribe(2)
	if h.Subscribers(2) != 1 {
		t.Fatalf("expected one subscriber")
	}
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if h.Subscribers(2) != 0 {
		t.Fatalf("expected no subscribers")
	}
	h.Publish(calls.Invitation{ID: 1, CallerID: 1, ReceiverID: 2})
}

func TestHub_DropsWhenSubscriberFull(t *testing.T) {
	h := NewHub(nil)
	ch, unsub := h.Subscribe(1)
	defer unsub()
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(calls.Invitation{ID: int64(i + 1), CallerID: 1, ReceiverID: 2})
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected buffer full at %d, got %d", subscriberBuffer, len(ch))
	}
}
