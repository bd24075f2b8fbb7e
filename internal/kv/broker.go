package kv

import "sync"

// Broker is an in-process publish/subscribe hub keyed by channel name.
// Delivery is at-most-once: subscribers that cannot keep up have
// messages dropped rather than slowing the publisher.
type Broker struct {
	mu   sync.RWMutex
	subs map[string][]chan string
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]chan string)}
}

// Subscribe creates a buffered channel that receives messages published
// on the named channel. The caller must Unsubscribe when done.
func (b *Broker) Subscribe(channel string) chan string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan string, 64)
	b.subs[channel] = append(b.subs[channel], ch)
	return ch
}

// Unsubscribe removes ch from the channel's subscribers and closes it.
func (b *Broker) Unsubscribe(channel string, ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[channel]
	for i, s := range subs {
		if s == ch {
			b.subs[channel] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
}

// Publish sends payload to every subscriber of the named channel.
func (b *Broker) Publish(channel, payload string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
			// Drop if the subscriber is too slow.
		}
	}
}
