// Package broker provides topic based pub/sub between the router and the
// per-connection writer goroutines.
package broker

import (
	"errors"
	"sync"

	"relay/broker/channel"
	"relay/broker/subscription"
)

// Topics for message routing.
const (
	// Client carries unicast frames; the detail is the connection reference.
	Client = iota

	// Presence carries presence broadcasts; the detail is Broadcast.
	Presence
)

// Broadcast is the detail shared by every presence subscriber.
const Broadcast = Detail("broadcast")

// Topic identifies a message category.
type Topic int

// Detail narrows a topic down to a single channel.
type Detail string

// ErrSubscriptionNotFound is returned when unsubscribing an unknown subscription.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Broker routes published messages to channel subscribers.
type Broker struct {
	mu       sync.RWMutex
	channels map[Topic]map[Detail]*channel.Channel
}

// New creates a new instance of Broker.
func New() *Broker {
	return &Broker{
		channels: map[Topic]map[Detail]*channel.Channel{},
	}
}

// Publish sends a message to every subscriber of the topic and detail. It
// returns the number of subscribers the message reached. Publishing to a
// channel with no subscribers is not an error; the message is discarded.
func (b *Broker) Publish(topic Topic, detail Detail, message any) int {
	b.mu.RLock()
	ch, ok := b.channels[topic][detail]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return ch.SendAll(message)
}

// Subscribe registers a new subscription for the topic and detail.
func (b *Broker) Subscribe(topic Topic, detail Detail) *subscription.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.channels[topic] == nil {
		b.channels[topic] = map[Detail]*channel.Channel{}
	}
	ch, ok := b.channels[topic][detail]
	if !ok {
		ch = channel.New()
		b.channels[topic][detail] = ch
	}
	sub := subscription.New()
	ch.AddSubscription(sub)
	return sub
}

// Unsubscribe removes a subscription and closes its queue. The channel is
// evicted once the last subscription leaves.
func (b *Broker) Unsubscribe(topic Topic, detail Detail, sub *subscription.Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.channels[topic][detail]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if !ch.RemoveSubscription(sub) {
		return ErrSubscriptionNotFound
	}
	if ch.Empty() {
		delete(b.channels[topic], detail)
	}
	return nil
}
