package storage

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mosaicnetworks/reload/src/common"
	"github.com/mosaicnetworks/reload/src/dispatcher"
	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []*message.Message
}

func (s *recordingSender) Send(msg *message.Message, sink dispatcher.Sink) error {
	s.sent = append(s.sent, msg)
	return nil
}

type fixedReplicas []id.NodeID

func (r fixedReplicas) ReplicationSet() []id.NodeID { return r }

const testKind = 12

var testResource = id.ResourceIDFromName("alice@example.com")

func newTestStorage(t *testing.T, backend Backend) (*Storage, *recordingSender, *clock.Mock) {
	clk := clock.NewMock()
	clk.Add(1000 * time.Hour)
	snd := &recordingSender{}
	s := NewStorage(backend, snd, fixedReplicas{{High: 1}, {High: 2}}, clk, common.NewTestEntry(t, "storage"))
	return s, snd, clk
}

func storedValue(s *Storage, lifetime uint32, key string, value string) message.StoredData {
	return message.StoredData{
		StorageTime: s.nowMillis(),
		Lifetime:    lifetime,
		Value: message.StoredDataValue{
			Model: message.Dictionary,
			Key:   []byte(key),
			Value: message.DataValue{Exists: true, Value: []byte(value)},
		},
	}
}

func storeReq(generation uint64, values ...message.StoredData) *message.StoreReqBody {
	return &message.StoreReqBody{
		Resource: testResource,
		KindData: []message.StoreKindData{{
			Kind:       testKind,
			Model:      message.Dictionary,
			Generation: generation,
			Values:     values,
		}},
	}
}

func fetchAll(t *testing.T, s *Storage, generation uint64) message.FetchKindResponse {
	ans, err := s.Fetch(&message.FetchReqBody{
		Resource:   testResource,
		Specifiers: []message.StoredDataSpecifier{{Kind: testKind, Model: message.Dictionary, Generation: generation}},
	})
	require.NoError(t, err)
	require.Len(t, ans.KindResponses, 1)
	return ans.KindResponses[0]
}

func TestStoreAndFetchEveryBackend(t *testing.T) {
	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			s, _, _ := newTestStorage(t, b)

			ans, err := s.Store(storeReq(0, storedValue(s, 60, "a", "1"), storedValue(s, 60, "b", "2")))
			require.NoError(t, err)
			require.Len(t, ans.KindResponses, 1)
			assert.Equal(t, uint64(1), ans.KindResponses[0].Generation)
			assert.Equal(t, []id.NodeID{{High: 1}, {High: 2}}, ans.KindResponses[0].Replicas)

			_, err = s.Store(storeReq(1, storedValue(s, 60, "a", "3")))
			require.NoError(t, err)

			resp := fetchAll(t, s, 0)
			assert.Equal(t, uint64(2), resp.Generation)
			require.Len(t, resp.Values, 2)
			assert.Equal(t, []byte("3"), resp.Values[0].Value.Value.Value)
			assert.Equal(t, []byte("2"), resp.Values[1].Value.Value.Value)

			assert.Equal(t, 1, s.ResourceCount())
		})
	}
}

func TestStoreGenerationTooLow(t *testing.T) {
	s, snd, _ := newTestStorage(t, NewInmemBackend())

	for i := 0; i < 3; i++ {
		_, err := s.Store(storeReq(0, storedValue(s, 0, "a", "x")))
		require.NoError(t, err)
	}

	req, err := message.New(1, storeReq(2, storedValue(s, 0, "a", "stale")))
	require.NoError(t, err)
	req.Via = []id.Destination{id.NodeDestination(id.NodeID{High: 9})}
	s.Consume(req)

	require.Len(t, snd.sent, 1)
	body, err := snd.sent[0].Body()
	require.NoError(t, err)
	errBody, ok := body.(*message.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, message.ErrGenerationCounterTooLow, errBody.Code)

	assert.Equal(t, []byte("x"), fetchAll(t, s, 0).Values[0].Value.Value.Value)
}

func TestStoreModelMismatch(t *testing.T) {
	s, _, _ := newTestStorage(t, NewInmemBackend())

	_, err := s.Store(storeReq(0, storedValue(s, 0, "a", "x")))
	require.NoError(t, err)

	req := storeReq(0)
	req.KindData[0].Model = message.Array
	_, err = s.Store(req)
	assert.Error(t, err)
}

func TestFetchSkipsExpired(t *testing.T) {
	s, _, clk := newTestStorage(t, NewInmemBackend())

	_, err := s.Store(storeReq(0, storedValue(s, 10, "short", "1"), storedValue(s, 0, "forever", "2")))
	require.NoError(t, err)

	clk.Add(11 * time.Second)

	resp := fetchAll(t, s, 0)
	require.Len(t, resp.Values, 1)
	assert.Equal(t, []byte("forever"), resp.Values[0].Value.Key)

	assert.Equal(t, 1, s.Prune())
	assert.Equal(t, 0, s.Prune())
}

func TestFetchUnchangedGeneration(t *testing.T) {
	s, _, _ := newTestStorage(t, NewInmemBackend())

	_, err := s.Store(storeReq(0, storedValue(s, 0, "a", "1")))
	require.NoError(t, err)

	resp := fetchAll(t, s, 1)
	assert.Equal(t, uint64(1), resp.Generation)
	assert.Empty(t, resp.Values)
}

func TestFetchMissingKind(t *testing.T) {
	s, _, _ := newTestStorage(t, NewInmemBackend())

	resp := fetchAll(t, s, 0)
	assert.Equal(t, uint64(0), resp.Generation)
	assert.Empty(t, resp.Values)
}

func TestFetchDictionaryKeys(t *testing.T) {
	s, _, _ := newTestStorage(t, NewInmemBackend())

	_, err := s.Store(storeReq(0, storedValue(s, 0, "a", "1"), storedValue(s, 0, "b", "2")))
	require.NoError(t, err)

	ans, err := s.Fetch(&message.FetchReqBody{
		Resource: testResource,
		Specifiers: []message.StoredDataSpecifier{{
			Kind:  testKind,
			Model: message.Dictionary,
			Keys:  [][]byte{[]byte("b")},
		}},
	})
	require.NoError(t, err)
	require.Len(t, ans.KindResponses[0].Values, 1)
	assert.Equal(t, []byte("2"), ans.KindResponses[0].Values[0].Value.Value.Value)
}

func TestArrayAppend(t *testing.T) {
	s, _, _ := newTestStorage(t, NewInmemBackend())

	value := func(index uint32, v string) message.StoredData {
		return message.StoredData{
			StorageTime: s.nowMillis(),
			Value: message.StoredDataValue{
				Model: message.Array,
				Index: index,
				Value: message.DataValue{Exists: true, Value: []byte(v)},
			},
		}
	}

	_, err := s.Store(&message.StoreReqBody{
		Resource: testResource,
		KindData: []message.StoreKindData{{
			Kind:   testKind,
			Model:  message.Array,
			Values: []message.StoredData{value(0, "zero"), value(appendIndex, "one"), value(appendIndex, "two")},
		}},
	})
	require.NoError(t, err)

	ans, err := s.Fetch(&message.FetchReqBody{
		Resource: testResource,
		Specifiers: []message.StoredDataSpecifier{{
			Kind:    testKind,
			Model:   message.Array,
			Indices: []message.ArrayRange{{First: 1, Last: 2}},
		}},
	})
	require.NoError(t, err)
	values := ans.KindResponses[0].Values
	require.Len(t, values, 2)
	assert.Equal(t, uint32(1), values[0].Value.Index)
	assert.Equal(t, []byte("two"), values[1].Value.Value.Value)
}

func TestRemove(t *testing.T) {
	s, _, _ := newTestStorage(t, NewInmemBackend())

	_, err := s.Store(storeReq(0, storedValue(s, 0, "a", "1"), storedValue(s, 0, "b", "2")))
	require.NoError(t, err)

	ans, err := s.Remove(&message.RemoveReqBody{
		Resource: testResource,
		Specifiers: []message.StoredDataSpecifier{{
			Kind:  testKind,
			Model: message.Dictionary,
			Keys:  [][]byte{[]byte("a")},
		}},
	})
	require.NoError(t, err)
	require.Len(t, ans.KindResponses, 1)
	assert.Equal(t, uint64(2), ans.KindResponses[0].Generation)

	resp := fetchAll(t, s, 0)
	require.Len(t, resp.Values, 1)
	assert.Equal(t, []byte("b"), resp.Values[0].Value.Key)
}

func TestFindClosest(t *testing.T) {
	s, _, _ := newTestStorage(t, NewInmemBackend())

	resource := func(h uint64) id.ResourceID {
		return id.ResourceIDFromNode(id.NodeID{High: h})
	}
	for _, h := range []uint64{10, 50, 90} {
		_, err := s.Store(&message.StoreReqBody{
			Resource: resource(h),
			KindData: []message.StoreKindData{{Kind: testKind, Model: message.Dictionary}},
		})
		require.NoError(t, err)
	}

	ans, err := s.Find(&message.FindReqBody{Resource: resource(40), Kinds: []uint32{testKind, 99}})
	require.NoError(t, err)
	require.Len(t, ans.Results, 2)
	assert.Equal(t, resource(50), ans.Results[0].Closest)
	assert.Empty(t, ans.Results[1].Closest)

	// past the last resource the search wraps around the ring
	ans, err = s.Find(&message.FindReqBody{Resource: resource(95), Kinds: []uint32{testKind}})
	require.NoError(t, err)
	assert.Equal(t, resource(10), ans.Results[0].Closest)
}

func TestConsumeAnswersStore(t *testing.T) {
	s, snd, _ := newTestStorage(t, NewInmemBackend())

	req, err := message.New(1, storeReq(0, storedValue(s, 0, "a", "1")))
	require.NoError(t, err)
	req.Via = []id.Destination{id.NodeDestination(id.NodeID{High: 9})}
	s.Consume(req)

	require.Len(t, snd.sent, 1)
	assert.Equal(t, message.StoreAns, snd.sent[0].Type())
	assert.Equal(t, req.TransactionID, snd.sent[0].TransactionID)
}
