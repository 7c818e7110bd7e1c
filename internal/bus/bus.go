// Package bus provides the in-process event fan-out used to emit the
// spine's lifecycle events (taskAdded, taskLifecycleEvent, …). It is a
// generalization of the teacher's role-to-role message bus: instead of
// typed Role→Role delivery, components publish a Topic and payload, and
// any number of subscribers or observation taps receive it.
package bus

import (
	"log"
	"sync"
)

const (
	subscriberBufSize = 64
	tapBufSize        = 256
)

// Topic identifies the kind of event published on the bus.
type Topic string

const (
	TopicTaskAdded       Topic = "taskAdded"
	TopicLifecycleEvent  Topic = "taskLifecycleEvent"
)

// Event is the envelope delivered to subscribers and taps.
type Event struct {
	Topic   Topic
	Payload any
}

// Bus is the observable event bus. All lifecycle events pass through it so
// that audit, dashboard, and test observers can tap in without the emitting
// component knowing about them.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic][]chan Event
	taps        []chan Event
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[Topic][]chan Event)}
}

// Publish fans out e to all subscribers of e.Topic and to every tap.
// Non-blocking: a full subscriber channel drops the message with a warning,
// matching the teacher's bus — an overloaded observer must never stall the
// commit path that published the event.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := b.subscribers[e.Topic]
	taps := b.taps
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			log.Printf("[BUS] WARNING: subscriber channel full for topic=%s — event dropped", e.Topic)
		}
	}
	for _, tap := range taps {
		select {
		case tap <- e:
		default:
			log.Printf("[BUS] WARNING: tap channel full — event dropped topic=%s", e.Topic)
		}
	}
}

// Subscribe returns a receive-only channel delivering events of topic t.
func (b *Bus) Subscribe(t Topic) <-chan Event {
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[t] = append(b.subscribers[t], ch)
	b.mu.Unlock()
	return ch
}

// NewTap registers and returns a channel that receives every published event,
// regardless of topic. Used by the audit trail (internal/audit) and by tests.
func (b *Bus) NewTap() <-chan Event {
	ch := make(chan Event, tapBufSize)
	b.mu.Lock()
	b.taps = append(b.taps, ch)
	b.mu.Unlock()
	return ch
}
