// Package subscription provides a single subscriber's message queue.
package subscription

// queueSize bounds how far a slow consumer may fall behind before messages
// are dropped instead of blocking the publisher.
const queueSize = 64

// Subscription is a buffered, ordered message queue for one subscriber.
type Subscription struct {
	queue chan any
}

// New creates and initializes a new Subscription instance.
func New() *Subscription {
	return &Subscription{
		queue: make(chan any, queueSize),
	}
}

// Send enqueues a message without blocking. It reports whether the message
// was accepted; a full queue drops the message.
func (s *Subscription) Send(message any) bool {
	select {
	case s.queue <- message:
		return true
	default:
		return false
	}
}

// Receive returns the channel to consume messages from.
func (s *Subscription) Receive() <-chan any {
	return s.queue
}

// Close closes the subscription queue.
func (s *Subscription) Close() {
	close(s.queue)
}
