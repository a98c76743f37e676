package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/reload/src/common"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Backend {
	dir := t.TempDir()
	logger := common.NewTestEntry(t, "storage")

	badgerBackend, err := NewBadgerBackend(filepath.Join(dir, "badger"), logger)
	require.NoError(t, err)
	boltBackend, err := NewBoltBackend(filepath.Join(dir, "bolt", "reload.db"))
	require.NoError(t, err)

	backends := map[string]Backend{
		InmemBackendType:  NewInmemBackend(),
		BadgerBackendType: badgerBackend,
		BoltBackendType:   boltBackend,
	}
	t.Cleanup(func() {
		for _, b := range backends {
			b.Close()
		}
	})
	return backends
}

func TestBackends(t *testing.T) {
	for name, b := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Get([]byte("missing"))
			assert.Equal(t, ErrKeyNotFound, err)

			require.NoError(t, b.Set([]byte("a/2"), []byte("two")))
			require.NoError(t, b.Set([]byte("a/1"), []byte("one")))
			require.NoError(t, b.Set([]byte("b/1"), []byte("other")))

			v, err := b.Get([]byte("a/1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), v)

			var keys []string
			err = b.Iterate([]byte("a/"), func(key, value []byte) error {
				keys = append(keys, fmt.Sprintf("%s=%s", key, value))
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"a/1=one", "a/2=two"}, keys)

			require.NoError(t, b.Delete([]byte("a/1")))
			_, err = b.Get([]byte("a/1"))
			assert.Equal(t, ErrKeyNotFound, err)
		})
	}
}

func TestNewBackendUnknownType(t *testing.T) {
	_, err := NewBackend("leveldb", t.TempDir(), nil)
	assert.Error(t, err)
}

func TestKindEntryMsgpack(t *testing.T) {
	e := &KindEntry{
		Resource:   []byte{1, 2, 3},
		Kind:       7,
		Model:      message.Dictionary,
		Generation: 4,
		Values: []message.StoredData{{
			StorageTime: 1000,
			Lifetime:    60,
			Value: message.StoredDataValue{
				Model: message.Dictionary,
				Key:   []byte("k"),
				Value: message.DataValue{Exists: true, Value: []byte("v")},
			},
		}},
	}

	data, err := e.Marshal()
	require.NoError(t, err)

	var got KindEntry
	require.NoError(t, got.Unmarshal(data))
	assert.Equal(t, e.Resource, got.Resource)
	assert.Equal(t, e.Kind, got.Kind)
	assert.Equal(t, e.Model, got.Model)
	assert.Equal(t, e.Generation, got.Generation)
	require.Len(t, got.Values, 1)
	assert.Equal(t, []byte("k"), got.Values[0].Value.Key)
	assert.Equal(t, []byte("v"), got.Values[0].Value.Value.Value)
	assert.True(t, got.Values[0].Value.Value.Exists)
}
