package dispatcher

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mosaicnetworks/reload/src/common"
	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingForwarder struct {
	sent []*message.Message
}

func (f *recordingForwarder) Forward(msg *message.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

type recordingSink struct {
	consumed []*message.Message
	timedOut []*message.Message
}

func (s *recordingSink) Consume(msg *message.Message) {
	s.consumed = append(s.consumed, msg)
}

func (s *recordingSink) Timeout(req *message.Message) {
	s.timedOut = append(s.timedOut, req)
}

func newTestDispatcher(t *testing.T, clk clock.Clock) (*Dispatcher, *recordingForwarder) {
	d := NewDispatcher(time.Second, 2, clk, common.NewTestLogger(t, logrus.DebugLevel).WithField("prefix", "dispatcher"))
	f := &recordingForwarder{}
	d.SetForwarder(f)
	return d, f
}

func newRequest(t *testing.T) *message.Message {
	msg, err := message.New(1, &message.JoinReqBody{JoiningPeer: id.NodeID{Low: 1}})
	require.NoError(t, err)
	msg.Via = []id.Destination{id.NodeDestination(id.NodeID{Low: 1})}
	return msg
}

func TestRegisterTwice(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	require.NoError(t, d.Register(message.JoinReq, &recordingSink{}))
	err := d.Register(message.JoinReq, &recordingSink{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestPostRegisteredRequest(t *testing.T) {
	d, f := newTestDispatcher(t, nil)
	sink := &recordingSink{}
	require.NoError(t, d.Register(message.JoinReq, sink))

	req := newRequest(t)
	d.Post(req)

	require.Len(t, sink.consumed, 1)
	assert.Equal(t, req, sink.consumed[0])
	assert.Empty(t, f.sent)
}

func TestPostUnregisteredRequestAnswersForbidden(t *testing.T) {
	d, f := newTestDispatcher(t, nil)

	req := newRequest(t)
	d.Post(req)

	require.Len(t, f.sent, 1)
	resp := f.sent[0]
	assert.Equal(t, message.Error, resp.Type())
	assert.Equal(t, req.TransactionID, resp.TransactionID)
	assert.Equal(t, []id.Destination{id.NodeDestination(id.NodeID{Low: 1})}, resp.Destinations)

	body, err := resp.Body()
	require.NoError(t, err)
	errBody := body.(*message.ErrorResponse)
	assert.Equal(t, message.ErrForbidden, errBody.Code)
	assert.Equal(t, "Message not understood", errBody.Reason)
}

func TestPostUnregisteredResponseIsDropped(t *testing.T) {
	d, f := newTestDispatcher(t, nil)

	resp, err := newRequest(t).MakeResponse(&message.JoinAnsBody{})
	require.NoError(t, err)

	d.Post(resp)
	assert.Empty(t, f.sent)
}

func TestResponseDeliveredOnceToRequester(t *testing.T) {
	d, f := newTestDispatcher(t, nil)

	typeSink := &recordingSink{}
	require.NoError(t, d.Register(message.JoinAns, typeSink))

	requester := &recordingSink{}
	req := newRequest(t)
	require.NoError(t, d.Send(req, requester))
	require.Len(t, f.sent, 1)
	assert.Equal(t, 1, d.Pending())

	resp, err := req.MakeResponse(&message.JoinAnsBody{})
	require.NoError(t, err)

	d.Post(resp)
	require.Len(t, requester.consumed, 1)
	assert.Empty(t, typeSink.consumed)
	assert.Equal(t, 0, d.Pending())

	// a duplicate answer falls through to the type registry
	d.Post(resp)
	assert.Len(t, requester.consumed, 1)
	assert.Len(t, typeSink.consumed, 1)
}

func TestErrorAnswerReachesRequester(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)

	requester := &recordingSink{}
	req := newRequest(t)
	require.NoError(t, d.Send(req, requester))

	resp, err := req.MakeErrorResponse(message.ErrNotFound, "Not responsible for this Join")
	require.NoError(t, err)
	d.Post(resp)

	require.Len(t, requester.consumed, 1)
	assert.Equal(t, message.Error, requester.consumed[0].Type())
}

func TestRetransmitAndTimeout(t *testing.T) {
	clk := clock.NewMock()
	d, f := newTestDispatcher(t, clk)

	requester := &recordingSink{}
	req := newRequest(t)
	require.NoError(t, d.Send(req, requester))
	require.Len(t, f.sent, 1)

	d.Tick()
	assert.Len(t, f.sent, 1, "nothing is due yet")

	clk.Add(time.Second)
	d.Tick()
	require.Len(t, f.sent, 2)
	assert.Equal(t, req.TransactionID, f.sent[1].TransactionID)

	clk.Add(time.Second)
	d.Tick()
	require.Len(t, f.sent, 3)

	clk.Add(time.Second)
	d.Tick()
	assert.Len(t, f.sent, 3, "retries exhausted")
	require.Len(t, requester.timedOut, 1)
	assert.Equal(t, req.TransactionID, requester.timedOut[0].TransactionID)
	assert.Equal(t, 0, d.Pending())
}

func TestSendWithoutForwarder(t *testing.T) {
	d := NewDispatcher(time.Second, 0, nil, nil)
	assert.Equal(t, ErrNoForwarder, d.Send(newRequest(t), nil))
}
