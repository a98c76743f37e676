package storage

import (
	"bytes"
	"encoding/binary"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/ugorji/go/codec"
)

const kindPrefix = 'k'

// KindEntry is everything stored for one kind of one resource.
type KindEntry struct {
	Resource   []byte
	Kind       uint32
	Model      message.DataModel
	Generation uint64
	Values     []message.StoredData
}

// Marshal encodes the entry with msgpack.
func (e *KindEntry) Marshal() ([]byte, error) {
	var b bytes.Buffer
	mh := new(codec.MsgpackHandle)
	enc := codec.NewEncoder(&b, mh)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal decodes an entry produced by Marshal.
func (e *KindEntry) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	mh := new(codec.MsgpackHandle)
	dec := codec.NewDecoder(b, mh)
	return dec.Decode(e)
}

// entryKey orders entries by kind first so that all resources of a kind can
// be scanned with one prefix.
func entryKey(kind uint32, resource id.ResourceID) []byte {
	key := make([]byte, 5, 5+len(resource))
	key[0] = kindPrefix
	binary.BigEndian.PutUint32(key[1:5], kind)
	return append(key, resource...)
}

func kindKeyPrefix(kind uint32) []byte {
	return entryKey(kind, nil)
}

func allKeysPrefix() []byte {
	return []byte{kindPrefix}
}

func resourceFromKey(key []byte) id.ResourceID {
	return id.ResourceID(append([]byte(nil), key[5:]...))
}

// expired reports whether v outlived its lifetime at now, in milliseconds.
func expired(v message.StoredData, nowMillis uint64) bool {
	if v.Lifetime == 0 {
		return false
	}
	return v.StorageTime+uint64(v.Lifetime)*1000 <= nowMillis
}

// sameSlot reports whether a and b address the same position in an entry of
// the given model.
func sameSlot(model message.DataModel, a, b message.StoredDataValue) bool {
	switch model {
	case message.Array:
		return a.Index == b.Index
	case message.Dictionary:
		return bytes.Equal(a.Key, b.Key)
	default:
		return true
	}
}
