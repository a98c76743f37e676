package forwarding

import (
	"testing"

	"github.com/mosaicnetworks/reload/src/common"
	"github.com/mosaicnetworks/reload/src/crypto/keys"
	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/mosaicnetworks/reload/src/net"
	"github.com/mosaicnetworks/reload/src/topology"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTopology struct {
	self        id.NodeID
	responsible func(x id.NodeID) bool
	connected   map[id.NodeID]bool
	nextHop     id.NodeID

	formed []id.NodeID
	lost   []id.NodeID
	cands  []uint64
}

func (f *fakeTopology) NodeID() id.NodeID { return f.self }

func (f *fakeTopology) IsResponsible(x id.NodeID) bool {
	return f.responsible != nil && f.responsible(x)
}

func (f *fakeTopology) IsConnected(n id.NodeID) bool { return f.connected[n] }

func (f *fakeTopology) FindNextHop(x id.NodeID) (id.NodeID, error) {
	if f.IsResponsible(x) {
		return id.NodeID{}, topology.ErrRoutingInconsistency
	}
	if f.nextHop.IsZero() {
		return id.NodeID{}, topology.ErrNoRoute
	}
	return f.nextHop, nil
}

func (f *fakeTopology) NewConnectionFormed(n id.NodeID, inbound bool) {
	f.formed = append(f.formed, n)
}

func (f *fakeTopology) ConnectionLost(n id.NodeID) {
	f.lost = append(f.lost, n)
}

func (f *fakeTopology) CandidatesCollected(tid uint64, n id.NodeID, app uint16, candidates []string) {
	f.cands = append(f.cands, tid)
}

type sentMessage struct {
	to  id.NodeID
	msg *message.Message
}

type fakeTransporter struct {
	events *net.EventQueue
	sent   []sentMessage
}

func (f *fakeTransporter) Send(n id.NodeID, msg *message.Message) {
	f.sent = append(f.sent, sentMessage{to: n, msg: msg})
}

func (f *fakeTransporter) Events() *net.EventQueue { return f.events }

type fakeDispatcher struct {
	posted []*message.Message
}

func (f *fakeDispatcher) Post(msg *message.Message) {
	f.posted = append(f.posted, msg)
}

type recordingApp struct {
	opened []uint64
	data   [][]byte
}

func (a *recordingApp) FlowOpened(flowID uint64, n id.NodeID) { a.opened = append(a.opened, flowID) }

func (a *recordingApp) FlowClosed(flowID uint64, n id.NodeID) {}

func (a *recordingApp) DataArrived(flowID uint64, n id.NodeID, data []byte) {
	a.data = append(a.data, data)
}

var (
	self  = id.NodeID{High: 100}
	peer  = id.NodeID{High: 200}
	other = id.NodeID{High: 900}
	hop   = id.NodeID{High: 500}
)

type fixture struct {
	layer *Layer
	topo  *fakeTopology
	trans *fakeTransporter
	disp  *fakeDispatcher
}

func newFixture(t *testing.T, conf Config) *fixture {
	topo := &fakeTopology{
		self: self,
		responsible: func(x id.NodeID) bool {
			return x.InRange(id.NodeID{High: 50}, self)
		},
		connected: map[id.NodeID]bool{peer: true, hop: true},
		nextHop:   hop,
	}
	trans := &fakeTransporter{events: net.NewEventQueue()}
	disp := &fakeDispatcher{}
	layer := NewLayer(conf, topo, trans, disp, common.NewTestEntry(t, "forwarding"))
	return &fixture{layer: layer, topo: topo, trans: trans, disp: disp}
}

func newMessage(t *testing.T, dests ...id.Destination) *message.Message {
	msg, err := message.New(1, &message.PingReqBody{})
	require.NoError(t, err)
	msg.Destinations = dests
	return msg
}

func arrive(f *fixture, msg *message.Message) {
	f.trans.events.Push(&net.MessageArrivedEvent{Node: peer, Message: msg})
	f.layer.Process(0)
}

func TestSelfThenResourcePopsTwice(t *testing.T) {
	f := newFixture(t, Config{})

	x := id.ResourceIDFromNode(id.NodeID{High: 70})
	msg := newMessage(t, id.NodeDestination(self), id.ResourceIDDestination(x))
	arrive(f, msg)

	require.Len(t, f.disp.posted, 1)
	assert.Empty(t, f.disp.posted[0].Destinations)
	assert.Empty(t, f.trans.sent)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.layer.metrics.Delivered))
}

func TestResourceNotResponsibleGoesToNextHop(t *testing.T) {
	f := newFixture(t, Config{})

	x := id.ResourceIDFromNode(id.NodeID{High: 3000})
	arrive(f, newMessage(t, id.ResourceIDDestination(x)))

	require.Len(t, f.trans.sent, 1)
	assert.Equal(t, hop, f.trans.sent[0].to)
	assert.Len(t, f.trans.sent[0].msg.Destinations, 1, "destinations for other nodes are not popped")
	assert.Empty(t, f.disp.posted)
}

func TestResourceFollowedByMoreIsDropped(t *testing.T) {
	f := newFixture(t, Config{})

	x := id.ResourceIDFromNode(id.NodeID{High: 70})
	arrive(f, newMessage(t, id.ResourceIDDestination(x), id.NodeDestination(other)))

	assert.Empty(t, f.disp.posted)
	assert.Empty(t, f.trans.sent)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.layer.metrics.Dropped.WithLabelValues("resource_not_last")))
}

func TestConnectedPeerSentDirectly(t *testing.T) {
	f := newFixture(t, Config{})

	arrive(f, newMessage(t, id.NodeDestination(self), id.NodeDestination(peer)))

	require.Len(t, f.trans.sent, 1)
	assert.Equal(t, peer, f.trans.sent[0].to)
	assert.Equal(t, []id.Destination{id.NodeDestination(peer)}, f.trans.sent[0].msg.Destinations)
}

func TestUnconnectedPeerGoesToNextHop(t *testing.T) {
	f := newFixture(t, Config{})

	arrive(f, newMessage(t, id.NodeDestination(other)))

	require.Len(t, f.trans.sent, 1)
	assert.Equal(t, hop, f.trans.sent[0].to)
}

func TestPeerInOwnRangeIsInconsistent(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.layer.Forward(newMessage(t, id.NodeDestination(id.NodeID{High: 60})))
	assert.ErrorIs(t, err, topology.ErrRoutingInconsistency)
	assert.Empty(t, f.trans.sent)
	assert.Empty(t, f.disp.posted)
}

func TestNoRoute(t *testing.T) {
	f := newFixture(t, Config{})
	f.topo.nextHop = id.NodeID{}

	err := f.layer.Forward(newMessage(t, id.NodeDestination(other)))
	assert.ErrorIs(t, err, topology.ErrNoRoute)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.layer.metrics.Dropped.WithLabelValues("no_route")))
}

func TestCompressedUnsupported(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.layer.Forward(newMessage(t, id.CompressedIDDestination([]byte{1, 2})))
	assert.Equal(t, ErrUnsupported, err)
	assert.Empty(t, f.trans.sent)
}

func TestEmptyDestinations(t *testing.T) {
	f := newFixture(t, Config{})

	arrive(f, newMessage(t))
	assert.Empty(t, f.disp.posted, "arrived with nothing to route")

	require.NoError(t, f.layer.Forward(newMessage(t)))
	assert.Len(t, f.disp.posted, 1, "local message for this node")
}

func TestSignaturesEnforced(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)

	f := newFixture(t, Config{
		Signer:           message.NewECDSASigner(key),
		VerifySignatures: true,
	})

	arrive(f, newMessage(t, id.NodeDestination(self)))
	assert.Empty(t, f.disp.posted, "unsigned message dropped")

	signed := newMessage(t, id.NodeDestination(self))
	require.NoError(t, signed.Sign(message.NewECDSASigner(key)))
	arrive(f, signed)
	assert.Len(t, f.disp.posted, 1)

	tampered := newMessage(t, id.NodeDestination(self))
	require.NoError(t, tampered.Sign(message.NewECDSASigner(key)))
	tampered.TransactionID++
	arrive(f, tampered)
	assert.Len(t, f.disp.posted, 1)

	// local messages are signed on the way out
	out := newMessage(t, id.NodeDestination(peer))
	require.NoError(t, f.layer.Forward(out))
	assert.True(t, out.Signature.IsSigned())
	assert.NoError(t, out.Verify(message.ECDSAVerifier{}))
}

func TestSignaturesAdvisory(t *testing.T) {
	f := newFixture(t, Config{})

	arrive(f, newMessage(t, id.NodeDestination(self)))
	assert.Len(t, f.disp.posted, 1)
}

func TestConnectionEvents(t *testing.T) {
	f := newFixture(t, Config{})
	app := &recordingApp{}
	require.NoError(t, f.layer.RegisterApplication(5060, app))
	assert.ErrorIs(t, f.layer.RegisterApplication(5060, app), ErrAppRegistered)
	assert.ErrorIs(t, f.layer.RegisterApplication(message.RELOADApplication, app), ErrAppRegistered)

	f.trans.events.Push(&net.ConnectionOpenedEvent{FlowID: 1, Node: peer, Application: message.RELOADApplication})
	f.trans.events.Push(&net.ConnectionOpenedEvent{FlowID: 2, Node: peer, Application: 5060})
	f.trans.events.Push(&net.ApplicationMessageArrivedEvent{FlowID: 2, Node: peer, Application: 5060, Data: []byte("x")})
	f.trans.events.Push(&net.LocalCandidatesCollectedEvent{TransactionID: 9, Node: peer})
	f.trans.events.Push(&net.ConnectionClosedEvent{FlowID: 1, Node: peer, Application: message.RELOADApplication})

	for f.layer.Process(0) {
	}

	assert.Equal(t, []id.NodeID{peer}, f.topo.formed)
	assert.Equal(t, []id.NodeID{peer}, f.topo.lost)
	assert.Equal(t, []uint64{9}, f.topo.cands)
	assert.Equal(t, []uint64{2}, app.opened)
	assert.Equal(t, [][]byte{[]byte("x")}, app.data)
}
