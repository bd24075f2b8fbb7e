package kv

import (
	"testing"
	"time"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe("room")
	ch2 := b.Subscribe("room")
	other := b.Subscribe("elsewhere")
	defer b.Unsubscribe("room", ch1)
	defer b.Unsubscribe("room", ch2)
	defer b.Unsubscribe("elsewhere", other)

	b.Publish("room", "hello")

	for i, ch := range []chan string{ch1, ch2} {
		select {
		case got := <-ch:
			if got != "hello" {
				t.Errorf("subscriber %d: expected hello, got %q", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}

	select {
	case got := <-other:
		t.Errorf("unexpected message on other channel: %q", got)
	default:
	}
}

func TestBrokerUnsubscribeCloses(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("room")
	b.Unsubscribe("room", ch)

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish("room", "late")
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("room")
	defer b.Unsubscribe("room", ch)

	// Fill the buffer and one more; the overflow must be dropped, not block.
	for i := 0; i < cap(ch)+1; i++ {
		b.Publish("room", "m")
	}

	got := 0
	for {
		select {
		case <-ch:
			got++
		default:
			if got != cap(ch) {
				t.Errorf("expected %d buffered messages, got %d", cap(ch), got)
			}
			return
		}
	}
}

func TestBrokerPublishWithoutSubscribers(t *testing.T) {
	b := NewBroker()
	b.Publish("empty", "nobody listening") // must not panic
}
