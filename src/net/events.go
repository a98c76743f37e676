package net

import (
	"sync"
	"time"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
)

// EventType identifies the events posted by a Transporter.
type EventType int

const (
	// ConnectionOpened ...
	ConnectionOpened EventType = iota
	// ConnectionClosed ...
	ConnectionClosed
	// MessageArrived is posted for each RELOAD message read from a flow.
	MessageArrived
	// ApplicationMessageArrived is posted for raw data read from a
	// non-RELOAD flow.
	ApplicationMessageArrived
	// LocalCandidatesCollected answers CollectCandidates.
	LocalCandidatesCollected
)

// String ...
func (t EventType) String() string {
	switch t {
	case ConnectionOpened:
		return "ConnectionOpened"
	case ConnectionClosed:
		return "ConnectionClosed"
	case MessageArrived:
		return "MessageArrived"
	case ApplicationMessageArrived:
		return "ApplicationMessageArrived"
	case LocalCandidatesCollected:
		return "LocalCandidatesCollected"
	default:
		return "Unknown"
	}
}

// Event is implemented by every event type.
type Event interface {
	Type() EventType
}

// ConnectionOpenedEvent reports a new flow after a successful handshake.
type ConnectionOpenedEvent struct {
	FlowID      uint64
	Node        id.NodeID
	Application uint16
	Inbound     bool
}

// Type implements Event.
func (e *ConnectionOpenedEvent) Type() EventType { return ConnectionOpened }

// ConnectionClosedEvent reports that a flow was closed, on error or on
// request.
type ConnectionClosedEvent struct {
	FlowID      uint64
	Node        id.NodeID
	Application uint16
}

// Type implements Event.
func (e *ConnectionClosedEvent) Type() EventType { return ConnectionClosed }

// MessageArrivedEvent carries a decoded RELOAD message. The sending node has
// already been appended to its via list.
type MessageArrivedEvent struct {
	Node    id.NodeID
	Message *message.Message
}

// Type implements Event.
func (e *MessageArrivedEvent) Type() EventType { return MessageArrived }

// ApplicationMessageArrivedEvent carries raw bytes from an application flow.
type ApplicationMessageArrivedEvent struct {
	FlowID      uint64
	Node        id.NodeID
	Application uint16
	Data        []byte
}

// Type implements Event.
func (e *ApplicationMessageArrivedEvent) Type() EventType { return ApplicationMessageArrived }

// LocalCandidatesCollectedEvent carries the candidates gathered for
// CollectCandidates.
type LocalCandidatesCollectedEvent struct {
	TransactionID uint64
	Node          id.NodeID
	Application   uint16
	Candidates    []string
}

// Type implements Event.
func (e *LocalCandidatesCollectedEvent) Type() EventType { return LocalCandidatesCollected }

// queue is an unbounded FIFO with a wake-up channel. Producers never block,
// which lets the reactor queue work for itself.
type queue[T any] struct {
	lock   sync.Mutex
	items  []T
	notify chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{notify: make(chan struct{}, 1)}
}

func (q *queue[T]) push(item T) {
	q.lock.Lock()
	q.items = append(q.items, item)
	q.lock.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue[T]) pop() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

func (q *queue[T]) len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

// EventQueue carries transporter events to the forwarding layer.
type EventQueue struct {
	q *queue[Event]
}

// NewEventQueue ...
func NewEventQueue() *EventQueue {
	return &EventQueue{q: newQueue[Event]()}
}

// Push appends e. It never blocks.
func (eq *EventQueue) Push(e Event) {
	eq.q.push(e)
}

// Pop returns the oldest event, waiting up to timeout for one.
func (eq *EventQueue) Pop(timeout time.Duration) (Event, bool) {
	if e, ok := eq.q.pop(); ok {
		return e, true
	}
	if timeout <= 0 {
		return nil, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-eq.q.notify:
			if e, ok := eq.q.pop(); ok {
				return e, true
			}
		case <-timer.C:
			return eq.q.pop()
		}
	}
}

// Len returns the number of queued events.
func (eq *EventQueue) Len() int {
	return eq.q.len()
}
