package net

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

var (
	errNotAdvertisable = errors.New("local bind address is not advertisable")
	errNotTCP          = errors.New("local address is not a TCP address")
)

// TCPConfig holds the parameters of a TCPTransporter.
type TCPConfig struct {
	// Self is the NodeID sent in the handshake.
	Self id.NodeID

	// BindAddr is the address of the listener accepting bootstrap
	// connections. Candidate listeners bind ephemeral ports on the same IP.
	BindAddr string

	// AdvertiseAddr optionally overrides the IP put in candidates.
	AdvertiseAddr string

	// Timeout applies to dials, handshakes and writes.
	Timeout time.Duration

	// ListenerTimeout closes candidate listeners nobody connected to.
	ListenerTimeout time.Duration

	MaxMessageSize int

	Metrics *Metrics
}

type flow struct {
	id      uint64
	node    id.NodeID
	app     uint16
	inbound bool
	conn    net.Conn
}

type listenerKey struct {
	node id.NodeID
	app  uint16
}

type candidateListener struct {
	listener net.Listener
	timer    *time.Timer
}

// TCPTransporter is a Transporter over plain TCP. The flow and listener maps
// belong to the goroutine calling Process; socket I/O runs in goroutines
// that hand their results back through ioCh.
type TCPTransporter struct {
	logger *logrus.Entry

	self            id.NodeID
	bindIP          net.IP
	advertiseIP     net.IP
	timeout         time.Duration
	listenerTimeout time.Duration
	maxMessageSize  int
	metrics         *Metrics

	commands *queue[func()]
	ioCh     chan func()
	events   *EventQueue

	flows      map[uint64]*flow
	nodeFlows  map[id.NodeID]*flow
	listeners  map[listenerKey]*candidateListener
	nextFlowID uint64

	bootstrap net.Listener

	closers     map[io.Closer]struct{}
	closersLock sync.Mutex
	closed      bool

	wg           sync.WaitGroup
	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewTCPTransporter binds the bootstrap listener on conf.BindAddr and returns
// the transporter. Bind failures are returned.
func NewTCPTransporter(conf TCPConfig, logger *logrus.Entry) (*TCPTransporter, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	if conf.MaxMessageSize <= 0 {
		conf.MaxMessageSize = DefaultMaxMessageSize
	}
	if conf.Timeout <= 0 {
		conf.Timeout = 5 * time.Second
	}
	if conf.ListenerTimeout <= 0 {
		conf.ListenerTimeout = 30 * time.Second
	}
	if conf.Metrics == nil {
		conf.Metrics = NewMetrics(nil)
	}

	// Try to bind
	list, err := net.Listen("tcp", conf.BindAddr)
	if err != nil {
		return nil, err
	}

	// Try to resolve the advertise address
	var resolvedAdvertise net.Addr
	if conf.AdvertiseAddr != "" {
		resolvedAdvertise, err = net.ResolveTCPAddr("tcp", conf.AdvertiseAddr)
		if err != nil {
			list.Close()
			return nil, err
		}
	}
	if resolvedAdvertise == nil {
		resolvedAdvertise = list.Addr()
	}

	// Verify that we have a usable advertise address
	addr, ok := resolvedAdvertise.(*net.TCPAddr)
	if !ok {
		list.Close()
		return nil, errNotTCP
	}
	if addr.IP.IsUnspecified() {
		list.Close()
		return nil, errNotAdvertisable
	}

	t := &TCPTransporter{
		logger:          logger,
		self:            conf.Self,
		bindIP:          list.Addr().(*net.TCPAddr).IP,
		advertiseIP:     addr.IP,
		timeout:         conf.Timeout,
		listenerTimeout: conf.ListenerTimeout,
		maxMessageSize:  conf.MaxMessageSize,
		metrics:         conf.Metrics,
		commands:        newQueue[func()](),
		ioCh:            make(chan func(), ioBacklog),
		events:          NewEventQueue(),
		flows:           make(map[uint64]*flow),
		nodeFlows:       make(map[id.NodeID]*flow),
		listeners:       make(map[listenerKey]*candidateListener),
		bootstrap:       list,
		closers:         make(map[io.Closer]struct{}),
		shutdownCh:      make(chan struct{}),
	}

	t.track(list)
	t.wg.Add(1)
	go t.acceptLoop(list, message.RELOADApplication)

	return t, nil
}

// LocalAddr returns the address of the bootstrap listener.
func (t *TCPTransporter) LocalAddr() string {
	return t.bootstrap.Addr().String()
}

// Events implements Transporter.
func (t *TCPTransporter) Events() *EventQueue {
	return t.events
}

/*******************************************************************************
Commands
*******************************************************************************/

// AddListener implements Transporter.
func (t *TCPTransporter) AddListener(addr string) {
	t.commands.push(func() { t.addListenerImpl(addr) })
}

// ConnectBootstrap implements Transporter.
func (t *TCPTransporter) ConnectBootstrap(addr string) {
	t.commands.push(func() { t.dial(addr, message.RELOADApplication, nil) })
}

// Connect implements Transporter.
func (t *TCPTransporter) Connect(n id.NodeID, candidates []string, app uint16) {
	t.commands.push(func() { t.connectImpl(n, candidates, app) })
}

// CollectCandidates implements Transporter.
func (t *TCPTransporter) CollectCandidates(tid uint64, n id.NodeID, app uint16) {
	t.commands.push(func() { t.collectCandidatesImpl(tid, n, app) })
}

// Send implements Transporter.
func (t *TCPTransporter) Send(n id.NodeID, msg *message.Message) {
	t.commands.push(func() { t.sendImpl(n, msg) })
}

// SendRaw implements Transporter.
func (t *TCPTransporter) SendRaw(flowID uint64, data []byte) {
	t.commands.push(func() { t.sendRawImpl(flowID, data) })
}

// Post implements Transporter.
func (t *TCPTransporter) Post(fn func()) {
	t.commands.push(fn)
}

// Process implements Transporter.
func (t *TCPTransporter) Process(timeout time.Duration) bool {
	if t.isShutdown() {
		return false
	}

	if t.commands.len() == 0 && len(t.ioCh) == 0 {
		timer := time.NewTimer(timeout)
		select {
		case fn := <-t.ioCh:
			fn()
		case <-t.commands.notify:
		case <-timer.C:
		case <-t.shutdownCh:
			timer.Stop()
			return false
		}
		timer.Stop()
	}

	for done := false; !done; {
		select {
		case fn := <-t.ioCh:
			fn()
		default:
			done = true
		}
	}

	cmd, ok := t.commands.pop()
	if !ok {
		return false
	}
	cmd()
	return true
}

func (t *TCPTransporter) addListenerImpl(addr string) {
	list, err := net.Listen("tcp", addr)
	if err != nil {
		t.logger.WithError(err).WithField("addr", addr).Error("AddListener")
		return
	}
	if !t.track(list) {
		list.Close()
		return
	}
	t.logger.WithField("addr", list.Addr().String()).Info("Listening")

	t.wg.Add(1)
	go t.acceptLoop(list, message.RELOADApplication)
}

func (t *TCPTransporter) connectImpl(n id.NodeID, candidates []string, app uint16) {
	if app == message.RELOADApplication {
		if _, ok := t.nodeFlows[n]; ok {
			t.logger.WithField("peer", n.Short()).Debug("Already connected")
			return
		}
	}

	for _, c := range candidates {
		addr, err := decodeCandidate(c)
		if err != nil {
			t.logger.WithError(err).Debug("Skipping candidate")
			continue
		}
		expected := n
		t.dial(addr, app, &expected)
		return
	}

	t.logger.WithField("peer", n.Short()).Warn("No usable candidate")
}

func (t *TCPTransporter) collectCandidatesImpl(tid uint64, n id.NodeID, app uint16) {
	key := listenerKey{node: n, app: app}

	cl, ok := t.listeners[key]
	if !ok {
		list, err := net.Listen("tcp", net.JoinHostPort(t.bindIP.String(), "0"))
		if err != nil {
			t.logger.WithError(err).Error("Opening candidate listener")
			return
		}
		if !t.track(list) {
			list.Close()
			return
		}

		cl = &candidateListener{
			listener: list,
			timer:    time.AfterFunc(t.listenerTimeout, func() { list.Close() }),
		}
		t.listeners[key] = cl

		t.wg.Add(1)
		go t.acceptOnce(cl, key)
	}

	port := cl.listener.Addr().(*net.TCPAddr).Port
	cand, err := encodeCandidate(&net.TCPAddr{IP: t.advertiseIP, Port: port})
	if err != nil {
		t.logger.WithError(err).Error("Encoding candidate")
		return
	}

	t.events.Push(&LocalCandidatesCollectedEvent{
		TransactionID: tid,
		Node:          n,
		Application:   app,
		Candidates:    []string{cand},
	})
}

func (t *TCPTransporter) sendImpl(n id.NodeID, msg *message.Message) {
	if msg.TTL <= 1 {
		t.logger.WithFields(logrus.Fields{
			"peer": n.Short(),
			"msg":  msg,
		}).Info(ErrTTLExhausted)
		t.metrics.SendsDropped.WithLabelValues("ttl").Inc()
		return
	}
	msg.TTL--

	f, ok := t.nodeFlows[n]
	if !ok {
		t.logger.WithField("peer", n.Short()).Error(ErrUnknownNode)
		t.metrics.SendsDropped.WithLabelValues("unknown_node").Inc()
		return
	}

	data, err := msg.Encode()
	if err != nil {
		t.logger.WithError(err).Error("Encoding message")
		t.metrics.SendsDropped.WithLabelValues("encode").Inc()
		return
	}

	// the peer would close the flow on an oversized frame
	if len(data) > t.maxMessageSize {
		t.logger.WithFields(logrus.Fields{
			"peer":   n.Short(),
			"length": len(data),
			"max":    t.maxMessageSize,
			"msg":    msg,
		}).Warn(ErrFrameTooLarge)
		t.metrics.SendsDropped.WithLabelValues("too_large").Inc()
		return
	}

	if err := t.write(f, data); err != nil {
		t.closeFlow(f, err)
	}
}

func (t *TCPTransporter) sendRawImpl(flowID uint64, data []byte) {
	f, ok := t.flows[flowID]
	if !ok {
		t.logger.WithField("flow", flowID).Error("SendRaw on unknown flow")
		t.metrics.SendsDropped.WithLabelValues("unknown_flow").Inc()
		return
	}
	if err := t.write(f, data); err != nil {
		t.closeFlow(f, err)
	}
}

func (t *TCPTransporter) write(f *flow, data []byte) error {
	f.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	n, err := f.conn.Write(data)
	t.metrics.BytesSent.Add(float64(n))
	return err
}

/*******************************************************************************
Flows
*******************************************************************************/

func (t *TCPTransporter) addFlow(conn net.Conn, peer id.NodeID, app uint16, inbound bool) {
	if app == message.RELOADApplication {
		if _, ok := t.nodeFlows[peer]; ok {
			t.logger.WithField("peer", peer.Short()).Debug("Duplicate flow, closing new connection")
			t.closeConn(conn)
			return
		}
	}

	t.nextFlowID++
	f := &flow{
		id:      t.nextFlowID,
		node:    peer,
		app:     app,
		inbound: inbound,
		conn:    conn,
	}
	t.flows[f.id] = f
	if app == message.RELOADApplication {
		t.nodeFlows[peer] = f
	}
	t.metrics.FlowsOpened.WithLabelValues(direction(inbound)).Inc()

	t.logger.WithFields(logrus.Fields{
		"peer":    peer.Short(),
		"app":     app,
		"flow":    f.id,
		"inbound": inbound,
		"remote":  conn.RemoteAddr().String(),
	}).Debug("Flow opened")

	t.events.Push(&ConnectionOpenedEvent{
		FlowID:      f.id,
		Node:        peer,
		Application: app,
		Inbound:     inbound,
	})

	t.wg.Add(1)
	go t.readLoop(f)
}

func (t *TCPTransporter) closeFlow(f *flow, reason error) {
	if _, ok := t.flows[f.id]; !ok {
		return
	}
	delete(t.flows, f.id)
	if t.nodeFlows[f.node] == f {
		delete(t.nodeFlows, f.node)
	}
	t.closeConn(f.conn)
	t.metrics.FlowsClosed.Inc()

	t.logger.WithFields(logrus.Fields{
		"peer": f.node.Short(),
		"flow": f.id,
	}).WithError(reason).Debug("Flow closed")

	t.events.Push(&ConnectionClosedEvent{
		FlowID:      f.id,
		Node:        f.node,
		Application: f.app,
	})
}

func (t *TCPTransporter) readLoop(f *flow) {
	defer t.wg.Done()

	var err error
	if f.app == message.RELOADApplication {
		err = t.readMessages(f)
	} else {
		err = t.readRaw(f)
	}

	t.post(func() { t.closeFlow(f, err) })
}

func (t *TCPTransporter) readMessages(f *flow) error {
	r := bufio.NewReader(f.conn)
	header := make([]byte, message.FrameHeaderLength)

	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return err
		}
		length, err := message.FrameLength(header)
		if err != nil {
			return err
		}
		if length > t.maxMessageSize {
			return fmt.Errorf("%d bytes: %w", length, ErrFrameTooLarge)
		}

		frame := make([]byte, length)
		copy(frame, header)
		if _, err := io.ReadFull(r, frame[message.FrameHeaderLength:]); err != nil {
			return err
		}

		msg, err := message.Decode(frame)
		if err != nil {
			return err
		}
		msg.PushVia(id.NodeDestination(f.node))

		node := f.node
		if !t.post(func() {
			t.events.Push(&MessageArrivedEvent{Node: node, Message: msg})
		}) {
			return ErrTransportShutdown
		}
	}
}

func (t *TCPTransporter) readRaw(f *flow) error {
	buf := make([]byte, rawReadSize)
	for {
		n, err := f.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			ev := &ApplicationMessageArrivedEvent{
				FlowID:      f.id,
				Node:        f.node,
				Application: f.app,
				Data:        data,
			}
			if !t.post(func() { t.events.Push(ev) }) {
				return ErrTransportShutdown
			}
		}
		if err != nil {
			return err
		}
	}
}

/*******************************************************************************
Connection setup
*******************************************************************************/

func (t *TCPTransporter) acceptLoop(list net.Listener, app uint16) {
	defer t.wg.Done()

	for {
		conn, err := list.Accept()
		if err != nil {
			if !t.isShutdown() {
				t.logger.WithError(err).Debug("Accept")
			}
			return
		}
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.setup(conn, app, true, nil)
		}()
	}
}

// acceptOnce serves a candidate listener. The listener closes after its
// first connection or when its timer fires.
func (t *TCPTransporter) acceptOnce(cl *candidateListener, key listenerKey) {
	defer t.wg.Done()

	conn, err := cl.listener.Accept()
	cl.timer.Stop()
	cl.listener.Close()
	t.untrack(cl.listener)

	t.post(func() {
		if t.listeners[key] == cl {
			delete(t.listeners, key)
		}
	})

	if err != nil {
		t.logger.WithError(err).WithField("peer", key.node.Short()).Debug("Candidate listener closed")
		return
	}
	t.setup(conn, key.app, true, nil)
}

func (t *TCPTransporter) dial(addr string, app uint16, expected *id.NodeID) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		conn, err := net.DialTimeout("tcp", addr, t.timeout)
		if err != nil {
			t.logger.WithError(err).WithField("addr", addr).Warn("Dial failed")
			return
		}
		t.setup(conn, app, false, expected)
	}()
}

// setup runs the handshake on a new connection and hands the flow to the
// reactor.
func (t *TCPTransporter) setup(conn net.Conn, app uint16, inbound bool, expected *id.NodeID) {
	if !t.track(conn) {
		conn.Close()
		return
	}

	peer, err := t.handshake(conn)
	if err != nil {
		t.logger.WithError(err).WithField("remote", conn.RemoteAddr().String()).Warn("Handshake failed")
		t.closeConn(conn)
		return
	}

	if expected != nil && *expected != peer {
		t.logger.WithFields(logrus.Fields{
			"expected": expected.Short(),
			"got":      peer.Short(),
		}).Warn("Connected to a different node than requested")
	}

	if !t.post(func() { t.addFlow(conn, peer, app, inbound) }) {
		t.closeConn(conn)
	}
}

// handshake exchanges NodeIDs: each side writes its own 16 bytes and reads
// the peer's.
func (t *TCPTransporter) handshake(conn net.Conn) (id.NodeID, error) {
	conn.SetDeadline(time.Now().Add(t.timeout))
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write(t.self.Bytes()); err != nil {
		return id.NodeID{}, err
	}
	buf := make([]byte, id.NodeIDLength)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return id.NodeID{}, err
	}
	return id.FromBytes(buf), nil
}

// post hands fn to the reactor. It reports false once the transporter is
// shut down.
func (t *TCPTransporter) post(fn func()) bool {
	select {
	case t.ioCh <- fn:
		return true
	case <-t.shutdownCh:
		return false
	}
}

/*******************************************************************************
Shutdown
*******************************************************************************/

func (t *TCPTransporter) track(c io.Closer) bool {
	t.closersLock.Lock()
	defer t.closersLock.Unlock()
	if t.closed {
		return false
	}
	t.closers[c] = struct{}{}
	return true
}

func (t *TCPTransporter) untrack(c io.Closer) {
	t.closersLock.Lock()
	defer t.closersLock.Unlock()
	delete(t.closers, c)
}

func (t *TCPTransporter) closeConn(conn net.Conn) {
	conn.Close()
	t.untrack(conn)
}

func (t *TCPTransporter) isShutdown() bool {
	select {
	case <-t.shutdownCh:
		return true
	default:
		return false
	}
}

// Close implements Transporter.
func (t *TCPTransporter) Close() error {
	t.shutdownLock.Lock()
	if t.shutdown {
		t.shutdownLock.Unlock()
		return nil
	}
	t.shutdown = true
	close(t.shutdownCh)
	t.shutdownLock.Unlock()

	t.closersLock.Lock()
	t.closed = true
	var err error
	for c := range t.closers {
		if cerr := c.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	t.closers = make(map[io.Closer]struct{})
	t.closersLock.Unlock()

	t.wg.Wait()
	return err
}
