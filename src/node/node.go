package node

import (
	"context"
	"crypto/ecdsa"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/reload/src/config"
	"github.com/mosaicnetworks/reload/src/dispatcher"
	"github.com/mosaicnetworks/reload/src/forwarding"
	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/mosaicnetworks/reload/src/net"
	"github.com/mosaicnetworks/reload/src/node/state"
	"github.com/mosaicnetworks/reload/src/storage"
	"github.com/mosaicnetworks/reload/src/topology"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// leaveFlushLimit bounds the number of transporter commands run after
// LeaveReqs are queued on shutdown.
const leaveFlushLimit = 64

// Node is an overlay node. It owns every component and runs them on a single
// reactor goroutine.
type Node struct {
	// state covers the lifetime of the node, not its overlay membership,
	// which the topology tracks.
	state state.Manager

	conf   *config.Config
	logger *logrus.Entry

	id      id.NodeID
	overlay uint32

	transporter net.Transporter
	dispatcher  *dispatcher.Dispatcher
	topology    *topology.Chord
	forwarding  *forwarding.Layer
	storage     *storage.Storage

	controlTimer *ControlTimer
	shutdownCh   chan struct{}
	doneCh       chan struct{}
	running      int32

	start time.Time
}

// NewNode wires the components of a node around trans and backend. The
// transporter's bootstrap listener must already be bound; bootstrapAddrs are
// the addresses handed to joining nodes and, for a node that is not the
// overlay's bootstrap node, the addresses it joins through.
func NewNode(conf *config.Config,
	key *ecdsa.PrivateKey,
	self id.NodeID,
	bootstrapAddrs []string,
	trans net.Transporter,
	backend storage.Backend,
	reg prometheus.Registerer,
) (*Node, error) {

	logger := conf.Logger().WithField("this_id", self.Short())
	overlay := message.OverlayID(conf.Overlay)

	disp := dispatcher.NewDispatcher(
		conf.RequestTimeout,
		conf.MaxRetries,
		nil,
		logger.WithField("component", "dispatcher"),
	)

	chord := topology.NewChord(
		topology.Config{
			Self:              self,
			Overlay:           overlay,
			Bootstrap:         conf.Bootstrap,
			BootstrapAddrs:    bootstrapAddrs,
			NumInitialFingers: conf.NumInitialFingers,
			NumNeighbors:      conf.NumNeighbors,
		},
		trans,
		disp,
		logger.WithField("component", "topology"),
	)

	fwdConf := forwarding.Config{
		VerifySignatures: conf.VerifySignatures,
		Metrics:          forwarding.NewMetrics(reg),
	}
	if key != nil {
		fwdConf.Signer = message.NewECDSASigner(key)
	}
	layer := forwarding.NewLayer(
		fwdConf,
		chord,
		trans,
		disp,
		logger.WithField("component", "forwarding"),
	)
	disp.SetForwarder(layer)

	store := storage.NewStorage(
		backend,
		disp,
		chord,
		nil,
		logger.WithField("component", "storage"),
	)
	chord.SetResourceCounter(store)

	if err := chord.Register(disp); err != nil {
		return nil, err
	}
	if err := store.Register(disp); err != nil {
		return nil, err
	}

	node := &Node{
		conf:         conf,
		logger:       logger,
		id:           self,
		overlay:      overlay,
		transporter:  trans,
		dispatcher:   disp,
		topology:     chord,
		forwarding:   layer,
		storage:      store,
		controlTimer: NewRandomControlTimer(),
		shutdownCh:   make(chan struct{}),
		doneCh:       make(chan struct{}),
		start:        time.Now(),
	}

	return node, nil
}

// Init starts joining the overlay. A bootstrap node becomes a member at once.
// Other nodes connect to their first bootstrap address and become members
// when the JoinAns arrives.
func (n *Node) Init() error {
	n.logger.WithField("bootstrap", n.conf.Bootstrap).Debug("Init")
	return n.topology.JoinOverlay()
}

// RunAsync calls Run in a separate goroutine.
func (n *Node) RunAsync(ctx context.Context) {
	n.logger.Debug("runasync")
	go n.Run(ctx)
}

// Run drives the node until ctx is done or Shutdown is called. The reactor
// alternates between transporter commands and forwarding events; the
// maintenance timer runs beside it. Only the first call runs, later ones
// return at once.
func (n *Node) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&n.running, 0, 1) {
		return nil
	}
	defer close(n.doneCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n.controlTimer.Run(ctx, n.conf.RefreshInterval)
		return nil
	})

	g.Go(func() error {
		defer cancel()
		return n.reactor(ctx)
	})

	return g.Wait()
}

func (n *Node) reactor(ctx context.Context) error {
	tick := n.conf.TickInterval
	if tick <= 0 {
		tick = config.DefaultTickInterval
	}

	for {
		select {
		case <-ctx.Done():
			n.leave()
			return nil
		case <-n.shutdownCh:
			n.leave()
			return nil
		case <-n.controlTimer.TickCh():
			n.maintain()
		default:
		}

		n.transporter.Process(tick)
		for n.forwarding.Process(0) {
		}
		n.dispatcher.Tick()
	}
}

// maintain runs the periodic work: topology refresh and storage expiry.
func (n *Node) maintain() {
	n.topology.Refresh()
	n.storage.Prune()
	n.logStats()
}

// leave announces the departure to the neighbors and flushes the resulting
// writes before the transporter is closed.
func (n *Node) leave() {
	if n.topology.State() != state.Member {
		return
	}
	n.topology.LeaveOverlay()
	for n.forwarding.Process(0) {
	}
	for i := 0; i < leaveFlushLimit && n.transporter.Process(0); i++ {
	}
}

// Send queues msg for the dispatcher and returns. The reactor sends it, so
// local delivery and sink both run on the reactor goroutine, never inside
// Send. When sink is not nil it receives the answer, or a timeout if sink is
// a dispatcher.TimeoutSink.
func (n *Node) Send(msg *message.Message, sink dispatcher.Sink) error {
	if n.state.GetState() == state.Shutdown {
		return net.ErrTransportShutdown
	}
	n.transporter.Post(func() {
		if err := n.dispatcher.Send(msg, sink); err != nil {
			n.logger.WithError(err).WithField("msg", msg).Warn("Send")
		}
	})
	return nil
}

// NewMessage builds a request for this node's overlay addressed to dest.
func (n *Node) NewMessage(body message.Body, dest ...id.Destination) (*message.Message, error) {
	msg, err := message.New(n.overlay, body)
	if err != nil {
		return nil, err
	}
	msg.Destinations = dest
	return msg, nil
}

// RegisterApplication routes the flows of a non-RELOAD application to h.
func (n *Node) RegisterApplication(app uint16, h forwarding.AppHandler) error {
	return n.forwarding.RegisterApplication(app, h)
}

// Shutdown stops the reactor, waits for it when it was running and closes the
// transporter and the storage.
func (n *Node) Shutdown() {
	if n.state.GetState() == state.Shutdown {
		return
	}
	n.logger.Debug("Shutdown")

	n.state.SetState(state.Shutdown)
	close(n.shutdownCh)

	if atomic.LoadInt32(&n.running) == 1 {
		<-n.doneCh
	}

	if err := n.transporter.Close(); err != nil {
		n.logger.WithError(err).Debug("Closing transporter")
	}
	if err := n.storage.Close(); err != nil {
		n.logger.WithError(err).Debug("Closing storage")
	}
}

// ID returns the NodeID of this node.
func (n *Node) ID() id.NodeID {
	return n.id
}

// State returns the overlay membership state.
func (n *Node) State() state.State {
	return n.topology.State()
}

// Snapshot returns a copy of the routing tables.
func (n *Node) Snapshot() topology.Snapshot {
	return n.topology.Snapshot()
}

// GetStats returns stats
func (n *Node) GetStats() map[string]string {
	snap := n.topology.Snapshot()

	uptime := time.Since(n.start).Truncate(time.Second)

	return map[string]string{
		"id":               n.id.String(),
		"moniker":          n.conf.Moniker,
		"overlay":          n.conf.Overlay,
		"state":            snap.State,
		"bootstrap":        strconv.FormatBool(snap.Bootstrap),
		"num_fingers":      strconv.Itoa(len(snap.Fingers)),
		"num_predecessors": strconv.Itoa(len(snap.Predecessors)),
		"num_successors":   strconv.Itoa(len(snap.Successors)),
		"pending_requests": strconv.Itoa(n.dispatcher.Pending()),
		"queued_events":    strconv.Itoa(n.transporter.Events().Len()),
		"num_resources":    strconv.Itoa(n.storage.ResourceCount()),
		"uptime":           uptime.String(),
	}
}

func (n *Node) logStats() {
	stats := n.GetStats()

	n.logger.WithFields(logrus.Fields{
		"state":            stats["state"],
		"num_fingers":      stats["num_fingers"],
		"num_predecessors": stats["num_predecessors"],
		"num_successors":   stats["num_successors"],
		"pending_requests": stats["pending_requests"],
		"num_resources":    stats["num_resources"],
	}).Debug("Stats")
}
