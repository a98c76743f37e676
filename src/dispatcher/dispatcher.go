package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyRegistered is returned when a second sink is registered for a
// message type.
var ErrAlreadyRegistered = errors.New("message type already registered")

// ErrNoForwarder is returned by Send before SetForwarder was called.
var ErrNoForwarder = errors.New("dispatcher has no forwarder")

// Sink consumes messages delivered by the Dispatcher.
type Sink interface {
	Consume(msg *message.Message)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg *message.Message)

// Consume implements Sink.
func (f SinkFunc) Consume(msg *message.Message) {
	f(msg)
}

// TimeoutSink is a Sink that wants to know when a request it sent was never
// answered.
type TimeoutSink interface {
	Sink
	Timeout(req *message.Message)
}

// Forwarder takes outbound messages. It is implemented by the forwarding
// layer.
type Forwarder interface {
	Forward(msg *message.Message) error
}

type pendingRequest struct {
	sink     Sink
	request  *message.Message
	attempts int
	deadline time.Time
}

// Dispatcher delivers local messages to the component interested in them.
// Answers go first to whoever sent the matching request, then to the sink
// registered for their type. Requests go to the sink registered for their
// type; unknown requests are answered with a Forbidden error.
type Dispatcher struct {
	logger *logrus.Entry

	forwarder Forwarder

	registry     map[message.Type]Sink
	registryLock sync.RWMutex

	pending     map[uint64]*pendingRequest
	pendingLock sync.Mutex

	clock      clock.Clock
	timeout    time.Duration
	maxRetries int
}

// NewDispatcher creates a Dispatcher. Requests sent with a sink are
// retransmitted every timeout, up to maxRetries times. A nil clock uses the
// wall clock.
func NewDispatcher(timeout time.Duration, maxRetries int, clk clock.Clock, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Dispatcher{
		logger:     logger,
		registry:   make(map[message.Type]Sink),
		pending:    make(map[uint64]*pendingRequest),
		clock:      clk,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// SetForwarder sets the component that carries outbound messages.
func (d *Dispatcher) SetForwarder(f Forwarder) {
	d.forwarder = f
}

// Register makes sink the consumer of unsolicited messages of type t.
func (d *Dispatcher) Register(t message.Type, sink Sink) error {
	d.registryLock.Lock()
	defer d.registryLock.Unlock()

	if _, ok := d.registry[t]; ok {
		return fmt.Errorf("%s: %w", t, ErrAlreadyRegistered)
	}
	d.registry[t] = sink
	return nil
}

func (d *Dispatcher) lookup(t message.Type) Sink {
	d.registryLock.RLock()
	defer d.registryLock.RUnlock()
	return d.registry[t]
}

// Post delivers a message addressed to this node.
func (d *Dispatcher) Post(msg *message.Message) {
	if !msg.IsRequest() {
		if sink := d.takePending(msg); sink != nil {
			sink.Consume(msg)
			return
		}
		if sink := d.lookup(msg.Type()); sink != nil {
			sink.Consume(msg)
			return
		}
		d.logger.WithFields(logrus.Fields{
			"type": msg.Type(),
			"tid":  fmt.Sprintf("%016x", msg.TransactionID),
		}).Debug("Dropping unsolicited response")
		return
	}

	if sink := d.lookup(msg.Type()); sink != nil {
		sink.Consume(msg)
		return
	}

	d.logger.WithField("type", msg.Type()).Info("No sink for request, answering Forbidden")

	resp, err := msg.MakeErrorResponse(message.ErrForbidden, "Message not understood")
	if err != nil {
		d.logger.WithError(err).Error("Building error response")
		return
	}
	if err := d.forward(resp); err != nil {
		d.logger.WithError(err).Error("Forwarding error response")
	}
}

// takePending removes and returns the sink waiting for the answer to msg.
func (d *Dispatcher) takePending(msg *message.Message) Sink {
	d.pendingLock.Lock()
	defer d.pendingLock.Unlock()

	p, ok := d.pending[msg.TransactionID]
	if !ok {
		return nil
	}
	if msg.Type() != message.Error && msg.Type() != p.request.Type().Answer() {
		return nil
	}
	delete(d.pending, msg.TransactionID)
	return p.sink
}

// Send hands msg to the forwarder. When msg is a request and sink is not nil,
// the answer with the same transaction id is delivered to sink exactly once.
func (d *Dispatcher) Send(msg *message.Message, sink Sink) error {
	if msg.IsRequest() && sink != nil {
		d.pendingLock.Lock()
		d.pending[msg.TransactionID] = &pendingRequest{
			sink:     sink,
			request:  msg.Clone(),
			deadline: d.clock.Now().Add(d.timeout),
		}
		d.pendingLock.Unlock()
	}
	return d.forward(msg)
}

func (d *Dispatcher) forward(msg *message.Message) error {
	if d.forwarder == nil {
		return ErrNoForwarder
	}
	return d.forwarder.Forward(msg)
}

// Tick retransmits requests whose answer is overdue, and gives up on those
// that used all their retries.
func (d *Dispatcher) Tick() {
	now := d.clock.Now()

	var resend []*message.Message
	var expired []*pendingRequest

	d.pendingLock.Lock()
	for tid, p := range d.pending {
		if now.Before(p.deadline) {
			continue
		}
		if p.attempts < d.maxRetries {
			p.attempts++
			p.deadline = now.Add(d.timeout)
			resend = append(resend, p.request.Clone())
			continue
		}
		delete(d.pending, tid)
		expired = append(expired, p)
	}
	d.pendingLock.Unlock()

	for _, m := range resend {
		d.logger.WithFields(logrus.Fields{
			"type": m.Type(),
			"tid":  fmt.Sprintf("%016x", m.TransactionID),
		}).Debug("Retransmitting request")
		if err := d.forward(m); err != nil {
			d.logger.WithError(err).Debug("Retransmission failed")
		}
	}

	for _, p := range expired {
		d.logger.WithFields(logrus.Fields{
			"type": p.request.Type(),
			"tid":  fmt.Sprintf("%016x", p.request.TransactionID),
		}).Info("Request timed out")
		if ts, ok := p.sink.(TimeoutSink); ok {
			ts.Timeout(p.request)
		}
	}
}

// Pending returns the number of requests waiting for an answer.
func (d *Dispatcher) Pending() int {
	d.pendingLock.Lock()
	defer d.pendingLock.Unlock()
	return len(d.pending)
}
