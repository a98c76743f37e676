package topology

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/mosaicnetworks/reload/src/node/state"
	"github.com/sirupsen/logrus"
)

// Config holds the parameters of a Chord topology.
type Config struct {
	Self              id.NodeID
	Overlay           uint32
	Bootstrap         bool
	BootstrapAddrs    []string
	NumInitialFingers int
	NumNeighbors      int
}

// Chord is the Chord topology plugin. It keeps the finger table (every node
// this node is directly connected to), the predecessor and successor lists,
// and answers the overlay maintenance requests.
//
// Chord never calls the Transporter or the Sender while holding its lock.
// Sending can deliver locally and come straight back into Consume.
type Chord struct {
	logger *logrus.Entry
	conf   Config

	transporter Transporter
	sender      Sender
	counter     ResourceCounter

	state    state.Manager
	wantJoin bool

	lock            sync.RWMutex
	fingers         []id.NodeID
	predecessors    []id.NodeID
	successors      []id.NodeID
	bootstrapAddrs  []string
	pendingConnects map[uint64]*message.Message

	// refresh round in which each finger slot was last looked for
	refreshRound uint64
	fingerTried  map[int]uint64
}

// fingerRetryRounds is the number of refreshes between two attempts to fill
// the same finger slot. Every attempt opens candidate listeners.
const fingerRetryRounds = 6

// NewChord creates a Chord topology for conf.Self.
func NewChord(conf Config, transporter Transporter, sender Sender, logger *logrus.Entry) *Chord {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	if conf.NumNeighbors <= 0 {
		conf.NumNeighbors = 1
	}

	return &Chord{
		logger:          logger.WithField("node", conf.Self.Short()),
		conf:            conf,
		transporter:     transporter,
		sender:          sender,
		bootstrapAddrs:  append([]string(nil), conf.BootstrapAddrs...),
		pendingConnects: make(map[uint64]*message.Message),
		fingerTried:     make(map[int]uint64),
	}
}

// Register subscribes the topology to the requests it answers.
func (c *Chord) Register(r Registrar) error {
	for _, t := range []message.Type{
		message.ConnectReq,
		message.JoinReq,
		message.JoinAns,
		message.UpdateReq,
		message.LeaveReq,
		message.PingReq,
		message.RouteQueryReq,
	} {
		if err := r.Register(t, c); err != nil {
			return err
		}
	}
	return nil
}

// SetResourceCounter sets the source of the num_resources ping information.
func (c *Chord) SetResourceCounter(rc ResourceCounter) {
	c.counter = rc
}

// NodeID implements Topology.
func (c *Chord) NodeID() id.NodeID {
	return c.conf.Self
}

// State returns the membership phase.
func (c *Chord) State() state.State {
	return c.state.GetState()
}

// ResourceID returns the resource id naming node n.
func (c *Chord) ResourceID(n id.NodeID) id.ResourceID {
	return id.ResourceIDFromNode(n)
}

// JoinOverlay starts joining the overlay. A bootstrap node is a member
// straight away; any other node dials its first bootstrap address and joins
// once the connection is up.
func (c *Chord) JoinOverlay() error {
	if c.conf.Bootstrap {
		if !c.state.CompareAndSwap(state.Unjoined, state.Member) {
			return ErrAlreadyJoining
		}
		c.logger.Info("Bootstrap node, overlay formed")
		return nil
	}

	c.lock.Lock()
	if len(c.bootstrapAddrs) == 0 {
		c.lock.Unlock()
		return ErrNoBootstrap
	}
	addr := c.bootstrapAddrs[0]
	c.lock.Unlock()

	if !c.state.CompareAndSwap(state.Unjoined, state.Joining) {
		return ErrAlreadyJoining
	}
	c.wantJoin = true

	c.logger.WithField("addr", addr).Info("Joining overlay")
	c.transporter.ConnectBootstrap(addr)
	return nil
}

// NewConnectionFormed implements Topology. The node joins the finger table.
// The first connection of a joining node is to its bootstrap peer, which
// becomes its successor until the overlay says otherwise.
func (c *Chord) NewConnectionFormed(n id.NodeID, inbound bool) {
	c.lock.Lock()
	first := !c.conf.Bootstrap && !inbound && len(c.fingers) == 0 && len(c.successors) == 0
	if err := c.addFinger(n); err != nil {
		c.lock.Unlock()
		c.logger.WithError(err).WithField("peer", n.Short()).Error("NewConnectionFormed")
		return
	}
	if first {
		c.successors = []id.NodeID{n}
	}
	c.lock.Unlock()

	c.logger.WithFields(logrus.Fields{
		"peer":    n.Short(),
		"inbound": inbound,
	}).Debug("Connection formed")

	if !first {
		return
	}

	c.transporter.CollectCandidates(0, c.conf.Self, message.RELOADApplication)
	c.buildFingerTable()
	c.sendJoin()
}

// ConnectionLost implements Topology.
func (c *Chord) ConnectionLost(n id.NodeID) {
	c.lock.Lock()
	c.fingers = removeNode(c.fingers, n)
	c.predecessors = removeNode(c.predecessors, n)
	c.successors = removeNode(c.successors, n)
	c.lock.Unlock()

	c.logger.WithField("peer", n.Short()).Debug("Connection lost")
}

// IsConnected implements Topology.
func (c *Chord) IsConnected(n id.NodeID) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return containsNode(c.fingers, n)
}

// IsResponsible implements Topology. Without a predecessor only the bootstrap
// node claims the ring.
func (c *Chord) IsResponsible(x id.NodeID) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.isResponsible(x)
}

func (c *Chord) isResponsible(x id.NodeID) bool {
	if len(c.predecessors) == 0 {
		return c.conf.Bootstrap
	}
	return x.InRange(c.predecessors[0], c.conf.Self)
}

// FindNextHop implements Topology. The returned node is in the finger table
// unless the table is empty, in which case it is the first successor.
func (c *Chord) FindNextHop(x id.NodeID) (id.NodeID, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.isResponsible(x) {
		return id.NodeID{}, fmt.Errorf("next hop toward %s requested by its responsible node: %w", x.Short(), ErrRoutingInconsistency)
	}

	self := c.conf.Self
	if len(c.successors) > 0 {
		succ := c.successors[0]
		if x.InRange(self, succ) && (len(c.fingers) == 0 || containsNode(c.fingers, succ)) {
			return succ, nil
		}
	}

	if len(c.fingers) == 0 {
		if len(c.successors) > 0 {
			return c.successors[0], nil
		}
		return id.NodeID{}, ErrNoRoute
	}

	// Closest preceding finger: the largest clockwise distance from self that
	// does not overshoot x.
	target := x.Sub(self)
	best := -1
	var bestDist id.NodeID
	for i, f := range c.fingers {
		d := f.Sub(self)
		if d.Compare(target) > 0 {
			continue
		}
		if best < 0 || d.Compare(bestDist) > 0 {
			best = i
			bestDist = d
		}
	}
	if best >= 0 {
		return c.fingers[best], nil
	}

	// Every finger lies past x; take the first one clockwise.
	first := c.fingers[0]
	firstDist := first.Sub(self)
	for _, f := range c.fingers[1:] {
		if d := f.Sub(self); d.Less(firstDist) {
			first, firstDist = f, d
		}
	}
	return first, nil
}

// ReplicationSet returns the nodes that hold replicas of the resources this
// node is responsible for.
func (c *Chord) ReplicationSet() []id.NodeID {
	c.lock.RLock()
	defer c.lock.RUnlock()

	n := len(c.successors)
	if n > 2 {
		n = 2
	}
	return append([]id.NodeID(nil), c.successors[:n]...)
}

// AddNewNeighbors merges nodes into the successor and predecessor lists. It
// reports whether either list changed. Nodes that entered a list and are not
// connected are attached to, unless adjustNextOnly is set.
func (c *Chord) AddNewNeighbors(nodes []id.NodeID, adjustNextOnly bool) bool {
	c.lock.Lock()
	changed, attach := c.addNewNeighbors(nodes, adjustNextOnly)
	c.lock.Unlock()

	for _, n := range attach {
		c.attach(n)
	}
	return changed
}

func (c *Chord) addNewNeighbors(nodes []id.NodeID, adjustNextOnly bool) (bool, []id.NodeID) {
	self := c.conf.Self
	changed := false
	var attach []id.NodeID

	for _, n := range nodes {
		if n == self {
			continue
		}

		var succChanged, predChanged bool
		c.successors, succChanged = insertNeighbor(c.successors, n, func(m id.NodeID) id.NodeID {
			return m.Sub(self)
		}, c.conf.NumNeighbors)
		if !adjustNextOnly {
			c.predecessors, predChanged = insertNeighbor(c.predecessors, n, func(m id.NodeID) id.NodeID {
				return self.Sub(m)
			}, c.conf.NumNeighbors)
		}

		if !succChanged && !predChanged {
			continue
		}
		changed = true
		if !adjustNextOnly && !containsNode(c.fingers, n) && !containsNode(attach, n) {
			attach = append(attach, n)
		}
	}

	if changed {
		c.logger.WithFields(logrus.Fields{
			"predecessors": shortList(c.predecessors),
			"successors":   shortList(c.successors),
		}).Debug("Neighbors changed")
	}
	return changed, attach
}

// CandidatesCollected implements Topology. Candidates collected with tid 0
// start an attach to n. Otherwise they answer the ConnectReq with that tid.
func (c *Chord) CandidatesCollected(tid uint64, n id.NodeID, app uint16, candidates []string) {
	if tid == 0 {
		c.sendConnect(n, app, candidates)
		return
	}

	c.lock.Lock()
	req, ok := c.pendingConnects[tid]
	delete(c.pendingConnects, tid)
	c.lock.Unlock()

	if !ok {
		c.logger.WithField("tid", fmt.Sprintf("%016x", tid)).Debug("Candidates for unknown ConnectReq")
		return
	}
	c.answerConnect(req, app, candidates)
}

func (c *Chord) answerConnect(req *message.Message, app uint16, candidates []string) {
	resp, err := req.MakeResponse(&message.ConnectAnsBody{
		ConnectReqAns: message.ConnectReqAns{
			Application: app,
			Role:        []byte("active"),
			Candidates:  candidates,
		},
	})
	if err != nil {
		c.logger.WithError(err).Error("Building ConnectAns")
		return
	}
	c.send(resp, false)
}

// Consume implements dispatcher.Sink.
func (c *Chord) Consume(msg *message.Message) {
	body, err := msg.Body()
	if err != nil {
		c.logger.WithError(err).WithField("type", msg.Type()).Error("Decoding message body")
		return
	}

	switch b := body.(type) {
	case *message.ConnectReqBody:
		c.consumeConnectReq(msg, b)
	case *message.JoinReqBody:
		c.consumeJoinReq(msg, b)
	case *message.JoinAnsBody:
		c.consumeJoinAns(b)
	case *message.UpdateReqBody:
		c.consumeUpdateReq(msg, b)
	case *message.LeaveReqBody:
		c.consumeLeaveReq(msg, b)
	case *message.PingReqBody:
		c.consumePingReq(msg, b)
	case *message.RouteQueryReqBody:
		c.consumeRouteQueryReq(msg, b)
	case *message.ErrorResponse:
		c.logger.WithFields(logrus.Fields{
			"code":   b.Code,
			"reason": b.Reason,
			"tid":    fmt.Sprintf("%016x", msg.TransactionID),
		}).Warn("Error response")
	default:
		c.logger.WithField("type", msg.Type()).Debug("Answer received")
	}
}

// Timeout implements dispatcher.TimeoutSink.
func (c *Chord) Timeout(req *message.Message) {
	c.logger.WithFields(logrus.Fields{
		"type": req.Type(),
		"tid":  fmt.Sprintf("%016x", req.TransactionID),
	}).Warn("Request unanswered")
}

func (c *Chord) consumeConnectReq(msg *message.Message, b *message.ConnectReqBody) {
	origin, ok := msg.OriginNode()
	if !ok || origin == c.conf.Self {
		c.logger.Debug("Ignoring ConnectReq from self")
		return
	}

	c.lock.Lock()
	connected := containsNode(c.fingers, origin)
	reuse := connected && b.Application == message.RELOADApplication
	if !reuse {
		c.pendingConnects[msg.TransactionID] = msg
	}
	c.lock.Unlock()

	c.logger.WithFields(logrus.Fields{
		"peer":      origin.Short(),
		"app":       b.Application,
		"connected": connected,
	}).Debug("ConnectReq")

	// the existing flow serves; no listener is opened for it
	if reuse {
		c.answerConnect(msg, b.Application, nil)
		return
	}

	c.transporter.CollectCandidates(msg.TransactionID, origin, b.Application)
	c.transporter.Connect(origin, b.Candidates, b.Application)
}

func (c *Chord) consumeJoinReq(msg *message.Message, b *message.JoinReqBody) {
	joiner := b.JoiningPeer
	if !c.IsResponsible(joiner) {
		c.respondError(msg, message.ErrNotFound, "Not responsible for this Join")
		return
	}

	c.logger.WithField("joiner", joiner.Short()).Info("Admitting node")

	if c.AddNewNeighbors([]id.NodeID{joiner}, false) {
		c.sendUpdates()
	}

	c.lock.RLock()
	addrs := c.addressList()
	c.lock.RUnlock()

	data, err := message.EncodeAddressList(addrs)
	if err != nil {
		c.logger.WithError(err).Error("Encoding bootstrap addresses")
		data = nil
	}
	c.respond(msg, &message.JoinAnsBody{OverlayData: data})
}

func (c *Chord) consumeJoinAns(b *message.JoinAnsBody) {
	if c.state.CompareAndSwap(state.Joining, state.Member) {
		c.logger.Info("Joined overlay")
	}

	if len(b.OverlayData) == 0 {
		return
	}
	addrs, err := message.DecodeAddressList(b.OverlayData)
	if err != nil {
		c.logger.WithError(err).Warn("Decoding JoinAns addresses")
		return
	}

	c.lock.Lock()
	for _, a := range addrs {
		s := a.String()
		if !containsString(c.bootstrapAddrs, s) {
			c.bootstrapAddrs = append(c.bootstrapAddrs, s)
		}
	}
	c.lock.Unlock()
}

func (c *Chord) consumeUpdateReq(msg *message.Message, b *message.UpdateReqBody) {
	update, err := message.DecodeChordUpdate(b.OverlayData)
	if err != nil {
		c.respondError(msg, message.ErrInvalidMessage, err.Error())
		return
	}

	var nodes []id.NodeID
	nodes = append(nodes, update.Predecessors...)
	nodes = append(nodes, update.Successors...)
	nodes = append(nodes, update.Fingers...)
	if origin, ok := msg.OriginNode(); ok {
		nodes = append(nodes, origin)
	}

	c.logger.WithFields(logrus.Fields{
		"kind":  update.Type,
		"nodes": len(nodes),
	}).Debug("UpdateReq")

	if c.AddNewNeighbors(nodes, false) {
		c.sendUpdates()
	}
	c.respond(msg, &message.UpdateAnsBody{})
}

func (c *Chord) consumeLeaveReq(msg *message.Message, b *message.LeaveReqBody) {
	leaving := b.LeavingPeer

	c.lock.Lock()
	before := len(c.predecessors) + len(c.successors)
	c.predecessors = removeNode(c.predecessors, leaving)
	c.successors = removeNode(c.successors, leaving)
	changed := len(c.predecessors)+len(c.successors) != before
	c.lock.Unlock()

	c.logger.WithField("peer", leaving.Short()).Info("Node leaving")

	if changed {
		c.sendUpdates()
	}
	c.respond(msg, &message.LeaveAnsBody{})
}

func (c *Chord) consumePingReq(msg *message.Message, b *message.PingReqBody) {
	ans := &message.PingAnsBody{ResponseID: message.NewTransactionID()}
	for _, t := range b.RequestedInfo {
		switch t {
		case message.PingResponsibleSet:
			ans.Info = append(ans.Info, message.PingInformation{Type: t, Value: c.responsiblePPB()})
		case message.PingNumResources:
			count := 0
			if c.counter != nil {
				count = c.counter.ResourceCount()
			}
			ans.Info = append(ans.Info, message.PingInformation{Type: t, Value: uint32(count)})
		}
	}
	c.respond(msg, ans)
}

func (c *Chord) consumeRouteQueryReq(msg *message.Message, b *message.RouteQueryReqBody) {
	var target id.NodeID
	switch {
	case b.Destination.IsNode():
		target = b.Destination.Node
	case b.Destination.IsResource():
		target = b.Destination.Resource.NodeID()
	default:
		c.respondError(msg, message.ErrUnsupportedForwardOption, "Compressed destination")
		return
	}

	next := c.conf.Self
	if !c.IsResponsible(target) {
		hop, err := c.FindNextHop(target)
		if err != nil {
			c.respondError(msg, message.ErrNotFound, err.Error())
			return
		}
		next = hop
	}
	c.respond(msg, &message.RouteQueryAnsBody{OverlayData: message.EncodeNodeIDData(next)})

	if origin, ok := msg.OriginNode(); ok && b.SendUpdate {
		c.sendUpdate(origin, message.Full)
	}
}

// responsiblePPB returns the share of the ring this node is responsible for,
// in parts per billion.
func (c *Chord) responsiblePPB() uint32 {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if len(c.predecessors) == 0 {
		if c.conf.Bootstrap {
			return 1000000000
		}
		return 0
	}
	span := c.conf.Self.Sub(c.predecessors[0])
	return uint32(((span.High >> 32) * 1000000000) >> 32)
}

// Refresh runs periodic maintenance. A member that lost every connection
// rejoins. Otherwise neighbors are refreshed and missing fingers are looked
// for again.
func (c *Chord) Refresh() {
	switch c.state.GetState() {
	case state.Unjoined:
		if c.wantJoin {
			if err := c.JoinOverlay(); err != nil {
				c.logger.WithError(err).Debug("Rejoin")
			}
		}
	case state.Member:
		c.lock.Lock()
		lonely := !c.conf.Bootstrap && len(c.fingers) == 0
		if lonely {
			c.predecessors = nil
			c.successors = nil
		}
		fingers := len(c.fingers)
		c.lock.Unlock()

		if lonely {
			c.logger.Warn("Lost all connections, rejoining")
			c.state.SetState(state.Unjoined)
			if err := c.JoinOverlay(); err != nil {
				c.logger.WithError(err).Error("Rejoin")
			}
			return
		}

		c.sendUpdates()
		if fingers < c.conf.NumInitialFingers {
			c.refreshFingers()
		}
	}
}

// refreshFingers looks again for the finger slots nobody covers, skipping
// slots tried in the last fingerRetryRounds refreshes.
func (c *Chord) refreshFingers() {
	c.lock.Lock()
	c.refreshRound++
	var targets []id.NodeID
	for i := 0; i < c.conf.NumInitialFingers && i < 128; i++ {
		if c.slotCovered(i) {
			delete(c.fingerTried, i)
			continue
		}
		if last, ok := c.fingerTried[i]; ok && c.refreshRound-last < fingerRetryRounds {
			continue
		}
		c.fingerTried[i] = c.refreshRound
		targets = append(targets, c.conf.Self.Add2Pow(uint(127-i)))
	}
	c.lock.Unlock()

	for _, t := range targets {
		c.logger.WithField("target", t.Short()).Debug("Looking for finger")
		c.transporter.CollectCandidates(0, t, message.RELOADApplication)
	}
}

// slotCovered reports whether finger slot i, whose target is
// self + 2^(127-i), needs no new connection. Callers hold the lock.
func (c *Chord) slotCovered(i int) bool {
	self := c.conf.Self
	target := self.Add2Pow(uint(127 - i))

	if c.isResponsible(target) {
		return true
	}
	if len(c.successors) > 0 && target.InRange(self, c.successors[0]) && containsNode(c.fingers, c.successors[0]) {
		return true
	}

	// finger distances in [2^(127-i), 2^(128-i)) fill the slot
	var zero id.NodeID
	lower := zero.Add2Pow(uint(127 - i))
	var upper id.NodeID
	if i > 0 {
		upper = zero.Add2Pow(uint(128 - i))
	}
	for _, f := range c.fingers {
		d := f.Sub(self)
		if d.Less(lower) {
			continue
		}
		if i == 0 || d.Less(upper) {
			return true
		}
	}
	return false
}

// LeaveOverlay tells the immediate neighbors this node is going away.
func (c *Chord) LeaveOverlay() {
	if !c.state.CompareAndSwap(state.Member, state.Leaving) {
		return
	}

	c.lock.RLock()
	var targets []id.NodeID
	if len(c.predecessors) > 0 {
		targets = append(targets, c.predecessors[0])
	}
	if len(c.successors) > 0 && !containsNode(targets, c.successors[0]) {
		targets = append(targets, c.successors[0])
	}
	c.lock.RUnlock()

	for _, t := range targets {
		msg, err := message.New(c.conf.Overlay, &message.LeaveReqBody{LeavingPeer: c.conf.Self})
		if err != nil {
			c.logger.WithError(err).Error("Building LeaveReq")
			return
		}
		msg.Destinations = []id.Destination{id.NodeDestination(t)}
		c.send(msg, false)
	}
}

// Snapshot is a copy of the routing state.
type Snapshot struct {
	Self         id.NodeID
	State        string
	Bootstrap    bool
	Fingers      []id.NodeID
	Predecessors []id.NodeID
	Successors   []id.NodeID
}

// Snapshot returns a copy of the routing state.
func (c *Chord) Snapshot() Snapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return Snapshot{
		Self:         c.conf.Self,
		State:        c.state.GetState().String(),
		Bootstrap:    c.conf.Bootstrap,
		Fingers:      append([]id.NodeID(nil), c.fingers...),
		Predecessors: append([]id.NodeID(nil), c.predecessors...),
		Successors:   append([]id.NodeID(nil), c.successors...),
	}
}

/*******************************************************************************
Outbound
*******************************************************************************/

func (c *Chord) buildFingerTable() {
	for i := 0; i < c.conf.NumInitialFingers && i < 128; i++ {
		target := c.conf.Self.Add2Pow(uint(127 - i))
		c.transporter.CollectCandidates(0, target, message.RELOADApplication)
	}
}

func (c *Chord) attach(n id.NodeID) {
	c.transporter.CollectCandidates(0, n, message.RELOADApplication)
}

func (c *Chord) sendJoin() {
	msg, err := message.New(c.conf.Overlay, &message.JoinReqBody{JoiningPeer: c.conf.Self})
	if err != nil {
		c.logger.WithError(err).Error("Building JoinReq")
		return
	}
	msg.Destinations = []id.Destination{
		id.ResourceIDDestination(id.ResourceIDFromNode(c.conf.Self)),
	}
	c.send(msg, true)
}

func (c *Chord) sendConnect(target id.NodeID, app uint16, candidates []string) {
	msg, err := message.New(c.conf.Overlay, &message.ConnectReqBody{
		ConnectReqAns: message.ConnectReqAns{
			Application: app,
			Role:        []byte("passive"),
			Candidates:  candidates,
		},
	})
	if err != nil {
		c.logger.WithError(err).Error("Building ConnectReq")
		return
	}
	msg.Destinations = []id.Destination{
		id.ResourceIDDestination(id.ResourceIDFromNode(target)),
	}
	c.send(msg, true)
}

// sendUpdates sends a Neighbors update to every entry of the predecessor and
// successor lists.
func (c *Chord) sendUpdates() {
	c.lock.RLock()
	targets := make([]id.NodeID, 0, len(c.predecessors)+len(c.successors))
	targets = append(targets, c.predecessors...)
	targets = append(targets, c.successors...)
	c.lock.RUnlock()

	for _, t := range targets {
		c.sendUpdate(t, message.Neighbors)
	}
}

func (c *Chord) sendUpdate(target id.NodeID, kind message.ChordUpdateType) {
	c.lock.RLock()
	update := &message.ChordUpdate{
		Type:         kind,
		Predecessors: append([]id.NodeID(nil), c.predecessors...),
		Successors:   append([]id.NodeID(nil), c.successors...),
	}
	if kind == message.Full {
		update.Fingers = append([]id.NodeID(nil), c.fingers...)
	}
	c.lock.RUnlock()

	data, err := update.Encode()
	if err != nil {
		c.logger.WithError(err).Error("Encoding ChordUpdate")
		return
	}
	msg, err := message.New(c.conf.Overlay, &message.UpdateReqBody{OverlayData: data})
	if err != nil {
		c.logger.WithError(err).Error("Building UpdateReq")
		return
	}
	msg.Destinations = []id.Destination{id.NodeDestination(target)}
	c.send(msg, true)
}

func (c *Chord) respond(req *message.Message, body message.Body) {
	resp, err := req.MakeResponse(body)
	if err != nil {
		c.logger.WithError(err).WithField("type", body.Type()).Error("Building response")
		return
	}
	c.send(resp, false)
}

func (c *Chord) respondError(req *message.Message, code message.ErrorCode, reason string) {
	c.logger.WithFields(logrus.Fields{
		"type":   req.Type(),
		"code":   code,
		"reason": reason,
	}).Debug("Answering with error")

	resp, err := req.MakeErrorResponse(code, reason)
	if err != nil {
		c.logger.WithError(err).Error("Building error response")
		return
	}
	c.send(resp, false)
}

// send hands msg to the sender. Requests expecting an answer come back to the
// topology.
func (c *Chord) send(msg *message.Message, expectAnswer bool) {
	var err error
	if expectAnswer {
		err = c.sender.Send(msg, c)
	} else {
		err = c.sender.Send(msg, nil)
	}
	if err != nil {
		c.logger.WithError(err).WithField("type", msg.Type()).Debug("Send failed")
	}
}

/*******************************************************************************
Helpers
*******************************************************************************/

// addFinger inserts n into the finger table, kept sorted by id.
func (c *Chord) addFinger(n id.NodeID) error {
	i := sort.Search(len(c.fingers), func(i int) bool {
		return !c.fingers[i].Less(n)
	})
	if i < len(c.fingers) && c.fingers[i] == n {
		return fmt.Errorf("finger %s already present: %w", n.Short(), ErrRoutingInconsistency)
	}
	c.fingers = append(c.fingers, id.NodeID{})
	copy(c.fingers[i+1:], c.fingers[i:])
	c.fingers[i] = n
	return nil
}

func (c *Chord) addressList() []message.IPAddressPort {
	var res []message.IPAddressPort
	for _, a := range c.bootstrapAddrs {
		host, portStr, err := net.SplitHostPort(a)
		if err != nil {
			continue
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			continue
		}
		ip := net.ParseIP(host)
		if ip == nil {
			continue
		}
		res = append(res, message.IPAddressPort{IP: ip, Port: uint16(port)})
	}
	return res
}

// insertNeighbor inserts n into list, which is ordered by dist, and keeps at
// most max entries. It reports whether the list changed.
func insertNeighbor(list []id.NodeID, n id.NodeID, dist func(id.NodeID) id.NodeID, max int) ([]id.NodeID, bool) {
	if containsNode(list, n) {
		return list, false
	}
	d := dist(n)
	pos := len(list)
	for i, m := range list {
		if d.Less(dist(m)) {
			pos = i
			break
		}
	}
	if pos >= max {
		return list, false
	}

	res := make([]id.NodeID, 0, len(list)+1)
	res = append(res, list[:pos]...)
	res = append(res, n)
	res = append(res, list[pos:]...)
	if len(res) > max {
		res = res[:max]
	}
	return res, true
}

func containsNode(list []id.NodeID, n id.NodeID) bool {
	for _, m := range list {
		if m == n {
			return true
		}
	}
	return false
}

func removeNode(list []id.NodeID, n id.NodeID) []id.NodeID {
	res := list[:0]
	for _, m := range list {
		if m != n {
			res = append(res, m)
		}
	}
	return res
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func shortList(list []id.NodeID) []string {
	res := make([]string, len(list))
	for i, n := range list {
		res[i] = n.Short()
	}
	return res
}
