package forwarding

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/mosaicnetworks/reload/src/net"
	"github.com/mosaicnetworks/reload/src/topology"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnsupported is reported for destinations the layer cannot route,
	// such as compressed ids.
	ErrUnsupported = errors.New("unsupported destination")

	// ErrAppRegistered is returned when a second handler is registered for an
	// application id.
	ErrAppRegistered = errors.New("application already registered")
)

// Transporter is the part of net.Transporter the layer uses.
type Transporter interface {
	Send(n id.NodeID, msg *message.Message)
	Events() *net.EventQueue
}

// Dispatcher receives the messages delivered to this node.
type Dispatcher interface {
	Post(msg *message.Message)
}

// AppHandler consumes the flows of a non-RELOAD application.
type AppHandler interface {
	FlowOpened(flowID uint64, n id.NodeID)
	FlowClosed(flowID uint64, n id.NodeID)
	DataArrived(flowID uint64, n id.NodeID, data []byte)
}

// Config holds the options of a Layer.
type Config struct {
	// Signer signs the messages this node originates. Nil leaves them
	// unsigned.
	Signer message.Signer

	// Verifier checks signatures before local delivery.
	Verifier message.Verifier

	// VerifySignatures drops messages that fail verification instead of
	// logging a warning.
	VerifySignatures bool

	Metrics *Metrics
}

// Layer moves messages between the transporter, the topology and the
// dispatcher. Messages addressed elsewhere are sent to a connected node;
// messages for this node are posted to the dispatcher.
type Layer struct {
	logger *logrus.Entry

	topology    topology.Topology
	transporter Transporter
	dispatcher  Dispatcher

	signer           message.Signer
	verifier         message.Verifier
	verifySignatures bool
	metrics          *Metrics

	apps     map[uint16]AppHandler
	appsLock sync.RWMutex
}

// NewLayer ...
func NewLayer(conf Config, topo topology.Topology, transporter Transporter, dispatcher Dispatcher, logger *logrus.Entry) *Layer {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	if conf.Verifier == nil {
		conf.Verifier = message.ECDSAVerifier{}
	}
	if conf.Metrics == nil {
		conf.Metrics = NewMetrics(nil)
	}

	return &Layer{
		logger:           logger,
		topology:         topo,
		transporter:      transporter,
		dispatcher:       dispatcher,
		signer:           conf.Signer,
		verifier:         conf.Verifier,
		verifySignatures: conf.VerifySignatures,
		metrics:          conf.Metrics,
		apps:             make(map[uint16]AppHandler),
	}
}

// RegisterApplication routes the flows of application app to h.
func (l *Layer) RegisterApplication(app uint16, h AppHandler) error {
	l.appsLock.Lock()
	defer l.appsLock.Unlock()

	if _, ok := l.apps[app]; ok || app == message.RELOADApplication {
		return fmt.Errorf("application %d: %w", app, ErrAppRegistered)
	}
	l.apps[app] = h
	return nil
}

func (l *Layer) app(app uint16) AppHandler {
	l.appsLock.RLock()
	defer l.appsLock.RUnlock()
	return l.apps[app]
}

// Process handles the next transporter event, waiting up to timeout for
// one. It reports whether an event was handled.
func (l *Layer) Process(timeout time.Duration) bool {
	ev, ok := l.transporter.Events().Pop(timeout)
	if !ok {
		return false
	}

	switch e := ev.(type) {
	case *net.ConnectionOpenedEvent:
		if e.Application == message.RELOADApplication {
			l.topology.NewConnectionFormed(e.Node, e.Inbound)
		} else if h := l.app(e.Application); h != nil {
			h.FlowOpened(e.FlowID, e.Node)
		}
	case *net.ConnectionClosedEvent:
		if e.Application == message.RELOADApplication {
			l.topology.ConnectionLost(e.Node)
		} else if h := l.app(e.Application); h != nil {
			h.FlowClosed(e.FlowID, e.Node)
		}
	case *net.LocalCandidatesCollectedEvent:
		l.topology.CandidatesCollected(e.TransactionID, e.Node, e.Application, e.Candidates)
	case *net.ApplicationMessageArrivedEvent:
		if h := l.app(e.Application); h != nil {
			h.DataArrived(e.FlowID, e.Node, e.Data)
		} else {
			l.logger.WithField("app", e.Application).Debug("No handler for application data")
		}
	case *net.MessageArrivedEvent:
		l.route(e.Message, false)
	default:
		l.logger.WithField("type", ev.Type()).Error("Unknown event")
	}
	return true
}

// Forward implements dispatcher.Forwarder. It signs messages this node
// originates and routes them. A message with no destination is for this
// node.
func (l *Layer) Forward(msg *message.Message) error {
	if l.signer != nil && !msg.Signature.IsSigned() {
		if err := msg.Sign(l.signer); err != nil {
			return err
		}
	}
	return l.route(msg, true)
}

// route runs the forwarding algorithm on the front of the destination list.
// Entries are only removed when they address this node.
func (l *Layer) route(msg *message.Message, local bool) error {
	if len(msg.Destinations) == 0 {
		if local {
			l.deliver(msg)
			return nil
		}
		l.drop(msg, "empty_destinations")
		return nil
	}

	self := l.topology.NodeID()

	for {
		dest, ok := msg.FrontDestination()
		if !ok {
			l.deliver(msg)
			return nil
		}

		switch dest.Type {
		case id.ResourceDestination:
			x := dest.Resource.NodeID()
			if !l.topology.IsResponsible(x) {
				return l.sendToNextHop(msg, x)
			}
			msg.PopDestination()
			if len(msg.Destinations) > 0 {
				l.logger.WithField("msg", msg).Info("Resource destination followed by more entries")
				l.drop(msg, "resource_not_last")
				return nil
			}
			l.deliver(msg)
			return nil

		case id.PeerDestination:
			n := dest.Node
			if n == self {
				msg.PopDestination()
				continue
			}
			if l.topology.IsConnected(n) {
				l.send(n, msg)
				return nil
			}
			if l.topology.IsResponsible(n) {
				l.logger.WithFields(logrus.Fields{
					"dest": n.Short(),
					"msg":  msg,
				}).Error(topology.ErrRoutingInconsistency)
				l.drop(msg, "inconsistency")
				return topology.ErrRoutingInconsistency
			}
			return l.sendToNextHop(msg, n)

		case id.CompressedDestination:
			l.logger.WithField("msg", msg).Info(ErrUnsupported)
			l.drop(msg, "unsupported")
			return ErrUnsupported

		default:
			l.drop(msg, "unknown_destination")
			return ErrUnsupported
		}
	}
}

func (l *Layer) sendToNextHop(msg *message.Message, x id.NodeID) error {
	hop, err := l.topology.FindNextHop(x)
	if err != nil {
		l.logger.WithError(err).WithField("target", x.Short()).Info("No next hop")
		l.drop(msg, "no_route")
		return err
	}
	l.send(hop, msg)
	return nil
}

func (l *Layer) send(n id.NodeID, msg *message.Message) {
	l.logger.WithFields(logrus.Fields{
		"to":  n.Short(),
		"msg": msg,
	}).Debug("Forwarding")
	l.metrics.Forwarded.Inc()
	l.transporter.Send(n, msg)
}

func (l *Layer) deliver(msg *message.Message) {
	if err := msg.Verify(l.verifier); err != nil {
		if l.verifySignatures {
			l.logger.WithError(err).WithField("msg", msg).Warn("Dropping unverified message")
			l.drop(msg, "signature")
			return
		}
		if errors.Is(err, message.ErrUnsigned) {
			l.logger.WithField("msg", msg).Debug("Unsigned message")
		} else {
			l.logger.WithError(err).WithField("msg", msg).Warn("Signature check failed")
		}
	}

	l.metrics.Delivered.Inc()
	l.dispatcher.Post(msg)
}

func (l *Layer) drop(msg *message.Message, reason string) {
	l.logger.WithFields(logrus.Fields{
		"reason": reason,
		"msg":    msg,
	}).Debug("Dropping message")
	l.metrics.Dropped.WithLabelValues(reason).Inc()
}
