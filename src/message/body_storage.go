package message

import (
	"fmt"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/wire"
)

// DataModel is the shape of the values stored under a kind.
type DataModel uint8

// Data models.
const (
	SingleValue DataModel = 1
	Array       DataModel = 2
	Dictionary  DataModel = 3
)

func checkModel(m DataModel) error {
	switch m {
	case SingleValue, Array, Dictionary:
		return nil
	default:
		return wire.NewParseError("DataModel", wire.UnknownTag, fmt.Sprintf("%d", m))
	}
}

// DataValue is a value that may have been deleted.
type DataValue struct {
	Exists bool
	Value  []byte
}

func (v DataValue) encode(e *wire.Encoder) error {
	e.WriteBool(v.Exists)
	return e.WriteOpaque(4, v.Value, "DataValue")
}

func decodeDataValue(d *wire.Decoder) (DataValue, error) {
	var v DataValue
	var err error
	if v.Exists, err = d.ReadBool(); err != nil {
		return v, err
	}
	v.Value, err = d.ReadOpaque(4)
	return v, err
}

// StoredDataValue is a DataValue placed according to its model: alone, at an
// array index, or under a dictionary key.
type StoredDataValue struct {
	Model DataModel
	Index uint32
	Key   []byte
	Value DataValue
}

func (v StoredDataValue) encode(e *wire.Encoder) error {
	if err := checkModel(v.Model); err != nil {
		return err
	}
	e.WriteUint8(uint8(v.Model))
	switch v.Model {
	case Array:
		e.WriteUint32(v.Index)
	case Dictionary:
		if err := e.WriteOpaque(2, v.Key, "DictionaryKey"); err != nil {
			return err
		}
	}
	return v.Value.encode(e)
}

func decodeStoredDataValue(d *wire.Decoder) (StoredDataValue, error) {
	var v StoredDataValue
	m, err := d.ReadUint8()
	if err != nil {
		return v, err
	}
	v.Model = DataModel(m)
	if err := checkModel(v.Model); err != nil {
		return v, err
	}
	switch v.Model {
	case Array:
		if v.Index, err = d.ReadUint32(); err != nil {
			return v, err
		}
	case Dictionary:
		if v.Key, err = d.ReadOpaque(2); err != nil {
			return v, err
		}
	}
	v.Value, err = decodeDataValue(d)
	return v, err
}

// StoredData is one value with its storage time, lifetime in seconds and the
// signature of whoever stored it.
type StoredData struct {
	StorageTime uint64
	Lifetime    uint32
	Value       StoredDataValue
	Signature   Signature
}

func (s StoredData) encode(e *wire.Encoder) error {
	return e.WriteVar(4, "StoredData", func(inner *wire.Encoder) error {
		inner.WriteUint64(s.StorageTime)
		inner.WriteUint32(s.Lifetime)
		if err := s.Value.encode(inner); err != nil {
			return err
		}
		return s.Signature.Encode(inner)
	})
}

func decodeStoredData(d *wire.Decoder) (StoredData, error) {
	var s StoredData
	inner, err := d.ReadVar(4, "StoredData")
	if err != nil {
		return s, err
	}
	if s.StorageTime, err = inner.ReadUint64(); err != nil {
		return s, err
	}
	if s.Lifetime, err = inner.ReadUint32(); err != nil {
		return s, err
	}
	if s.Value, err = decodeStoredDataValue(inner); err != nil {
		return s, err
	}
	if s.Signature, err = DecodeSignature(inner); err != nil {
		return s, err
	}
	return s, inner.Finish()
}

func encodeStoredDataList(e *wire.Encoder, values []StoredData) error {
	return e.WriteVar(4, "values", func(inner *wire.Encoder) error {
		for _, v := range values {
			if err := v.encode(inner); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeStoredDataList(d *wire.Decoder) ([]StoredData, error) {
	var values []StoredData
	err := d.ReadList(4, "values", func(ld *wire.Decoder) error {
		v, err := decodeStoredData(ld)
		if err != nil {
			return err
		}
		values = append(values, v)
		return nil
	})
	return values, err
}

// StoreKindData groups the values of one kind in a StoreReq.
type StoreKindData struct {
	Kind       uint32
	Model      DataModel
	Generation uint64
	Values     []StoredData
}

// StoreReqBody ...
type StoreReqBody struct {
	Resource id.ResourceID
	Replica  uint8
	KindData []StoreKindData
}

// Type implements Body.
func (b *StoreReqBody) Type() Type { return StoreReq }

func (b *StoreReqBody) encode(e *wire.Encoder) error {
	if err := b.Resource.Encode(e); err != nil {
		return err
	}
	e.WriteUint8(b.Replica)
	return e.WriteVar(4, "kind_data", func(inner *wire.Encoder) error {
		for _, k := range b.KindData {
			if err := checkModel(k.Model); err != nil {
				return err
			}
			inner.WriteUint32(k.Kind)
			inner.WriteUint8(uint8(k.Model))
			inner.WriteUint64(k.Generation)
			if err := encodeStoredDataList(inner, k.Values); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeStoreReq(d *wire.Decoder) (*StoreReqBody, error) {
	b := &StoreReqBody{}
	var err error
	if b.Resource, err = id.DecodeResourceID(d); err != nil {
		return nil, err
	}
	if b.Replica, err = d.ReadUint8(); err != nil {
		return nil, err
	}
	err = d.ReadList(4, "kind_data", func(ld *wire.Decoder) error {
		var k StoreKindData
		var err error
		if k.Kind, err = ld.ReadUint32(); err != nil {
			return err
		}
		m, err := ld.ReadUint8()
		if err != nil {
			return err
		}
		k.Model = DataModel(m)
		if err := checkModel(k.Model); err != nil {
			return err
		}
		if k.Generation, err = ld.ReadUint64(); err != nil {
			return err
		}
		if k.Values, err = decodeStoredDataList(ld); err != nil {
			return err
		}
		b.KindData = append(b.KindData, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// StoreKindResponse reports the new generation of a kind and the replicas it
// was copied to.
type StoreKindResponse struct {
	Kind       uint32
	Generation uint64
	Replicas   []id.NodeID
}

func encodeStoreKindResponses(e *wire.Encoder, responses []StoreKindResponse) error {
	return e.WriteVar(2, "kind_responses", func(inner *wire.Encoder) error {
		for _, r := range responses {
			inner.WriteUint32(r.Kind)
			inner.WriteUint64(r.Generation)
			err := inner.WriteVar(2, "replicas", func(rl *wire.Encoder) error {
				for _, n := range r.Replicas {
					id.EncodeNodeID(rl, n)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeStoreKindResponses(d *wire.Decoder) ([]StoreKindResponse, error) {
	var responses []StoreKindResponse
	err := d.ReadList(2, "kind_responses", func(ld *wire.Decoder) error {
		var r StoreKindResponse
		var err error
		if r.Kind, err = ld.ReadUint32(); err != nil {
			return err
		}
		if r.Generation, err = ld.ReadUint64(); err != nil {
			return err
		}
		err = ld.ReadList(2, "replicas", func(rl *wire.Decoder) error {
			n, err := id.DecodeNodeID(rl)
			if err != nil {
				return err
			}
			r.Replicas = append(r.Replicas, n)
			return nil
		})
		if err != nil {
			return err
		}
		responses = append(responses, r)
		return nil
	})
	return responses, err
}

// StoreAnsBody ...
type StoreAnsBody struct {
	KindResponses []StoreKindResponse
}

// Type implements Body.
func (b *StoreAnsBody) Type() Type { return StoreAns }

func (b *StoreAnsBody) encode(e *wire.Encoder) error {
	return encodeStoreKindResponses(e, b.KindResponses)
}

// RemoveAnsBody ...
type RemoveAnsBody struct {
	KindResponses []StoreKindResponse
}

// Type implements Body.
func (b *RemoveAnsBody) Type() Type { return RemoveAns }

func (b *RemoveAnsBody) encode(e *wire.Encoder) error {
	return encodeStoreKindResponses(e, b.KindResponses)
}

// ArrayRange selects the inclusive index range [First, Last] of an array.
type ArrayRange struct {
	First uint32
	Last  uint32
}

// StoredDataSpecifier selects values of one kind in a FetchReq or RemoveReq.
// Indices is used with the Array model and Keys with the Dictionary model. An
// empty selection means every value.
type StoredDataSpecifier struct {
	Kind       uint32
	Model      DataModel
	Generation uint64
	Indices    []ArrayRange
	Keys       [][]byte
}

func (s StoredDataSpecifier) encode(e *wire.Encoder) error {
	if err := checkModel(s.Model); err != nil {
		return err
	}
	e.WriteUint32(s.Kind)
	e.WriteUint8(uint8(s.Model))
	e.WriteUint64(s.Generation)
	return e.WriteVar(2, "model_specifier", func(inner *wire.Encoder) error {
		switch s.Model {
		case Array:
			return inner.WriteVar(2, "indices", func(il *wire.Encoder) error {
				for _, r := range s.Indices {
					il.WriteUint32(r.First)
					il.WriteUint32(r.Last)
				}
				return nil
			})
		case Dictionary:
			return inner.WriteVar(2, "keys", func(kl *wire.Encoder) error {
				for _, k := range s.Keys {
					if err := kl.WriteOpaque(2, k, "DictionaryKey"); err != nil {
						return err
					}
				}
				return nil
			})
		}
		return nil
	})
}

func decodeSpecifier(d *wire.Decoder) (StoredDataSpecifier, error) {
	var s StoredDataSpecifier
	var err error
	if s.Kind, err = d.ReadUint32(); err != nil {
		return s, err
	}
	m, err := d.ReadUint8()
	if err != nil {
		return s, err
	}
	s.Model = DataModel(m)
	if err := checkModel(s.Model); err != nil {
		return s, err
	}
	if s.Generation, err = d.ReadUint64(); err != nil {
		return s, err
	}
	inner, err := d.ReadVar(2, "model_specifier")
	if err != nil {
		return s, err
	}
	switch s.Model {
	case Array:
		err = inner.ReadList(2, "indices", func(il *wire.Decoder) error {
			var r ArrayRange
			var err error
			if r.First, err = il.ReadUint32(); err != nil {
				return err
			}
			if r.Last, err = il.ReadUint32(); err != nil {
				return err
			}
			s.Indices = append(s.Indices, r)
			return nil
		})
	case Dictionary:
		err = inner.ReadList(2, "keys", func(kl *wire.Decoder) error {
			k, err := kl.ReadOpaque(2)
			if err != nil {
				return err
			}
			s.Keys = append(s.Keys, k)
			return nil
		})
	}
	if err != nil {
		return s, err
	}
	return s, inner.Finish()
}

func encodeSpecifiedResource(e *wire.Encoder, r id.ResourceID, specifiers []StoredDataSpecifier) error {
	if err := r.Encode(e); err != nil {
		return err
	}
	return e.WriteVar(2, "specifiers", func(inner *wire.Encoder) error {
		for _, s := range specifiers {
			if err := s.encode(inner); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeSpecifiedResource(d *wire.Decoder) (id.ResourceID, []StoredDataSpecifier, error) {
	r, err := id.DecodeResourceID(d)
	if err != nil {
		return nil, nil, err
	}
	var specifiers []StoredDataSpecifier
	err = d.ReadList(2, "specifiers", func(ld *wire.Decoder) error {
		s, err := decodeSpecifier(ld)
		if err != nil {
			return err
		}
		specifiers = append(specifiers, s)
		return nil
	})
	return r, specifiers, err
}

// FetchReqBody ...
type FetchReqBody struct {
	Resource   id.ResourceID
	Specifiers []StoredDataSpecifier
}

// Type implements Body.
func (b *FetchReqBody) Type() Type { return FetchReq }

func (b *FetchReqBody) encode(e *wire.Encoder) error {
	return encodeSpecifiedResource(e, b.Resource, b.Specifiers)
}

// RemoveReqBody ...
type RemoveReqBody struct {
	Resource   id.ResourceID
	Specifiers []StoredDataSpecifier
}

// Type implements Body.
func (b *RemoveReqBody) Type() Type { return RemoveReq }

func (b *RemoveReqBody) encode(e *wire.Encoder) error {
	return encodeSpecifiedResource(e, b.Resource, b.Specifiers)
}

// FetchKindResponse holds the values of one kind returned by a fetch.
type FetchKindResponse struct {
	Kind       uint32
	Generation uint64
	Values     []StoredData
}

// FetchAnsBody ...
type FetchAnsBody struct {
	KindResponses []FetchKindResponse
}

// Type implements Body.
func (b *FetchAnsBody) Type() Type { return FetchAns }

func (b *FetchAnsBody) encode(e *wire.Encoder) error {
	return e.WriteVar(4, "kind_responses", func(inner *wire.Encoder) error {
		for _, r := range b.KindResponses {
			inner.WriteUint32(r.Kind)
			inner.WriteUint64(r.Generation)
			if err := encodeStoredDataList(inner, r.Values); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeFetchAns(d *wire.Decoder) (*FetchAnsBody, error) {
	b := &FetchAnsBody{}
	err := d.ReadList(4, "kind_responses", func(ld *wire.Decoder) error {
		var r FetchKindResponse
		var err error
		if r.Kind, err = ld.ReadUint32(); err != nil {
			return err
		}
		if r.Generation, err = ld.ReadUint64(); err != nil {
			return err
		}
		if r.Values, err = decodeStoredDataList(ld); err != nil {
			return err
		}
		b.KindResponses = append(b.KindResponses, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// FindReqBody asks for the closest resource of each kind.
type FindReqBody struct {
	Resource id.ResourceID
	Kinds    []uint32
}

// Type implements Body.
func (b *FindReqBody) Type() Type { return FindReq }

func (b *FindReqBody) encode(e *wire.Encoder) error {
	if err := b.Resource.Encode(e); err != nil {
		return err
	}
	return e.WriteVar(1, "kinds", func(inner *wire.Encoder) error {
		for _, k := range b.Kinds {
			inner.WriteUint32(k)
		}
		return nil
	})
}

func decodeFindReq(d *wire.Decoder) (*FindReqBody, error) {
	b := &FindReqBody{}
	var err error
	if b.Resource, err = id.DecodeResourceID(d); err != nil {
		return nil, err
	}
	err = d.ReadList(1, "kinds", func(ld *wire.Decoder) error {
		k, err := ld.ReadUint32()
		if err != nil {
			return err
		}
		b.Kinds = append(b.Kinds, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// FindKindData is the closest resource found for one kind. Closest is empty
// when nothing was found.
type FindKindData struct {
	Kind    uint32
	Closest id.ResourceID
}

// FindAnsBody ...
type FindAnsBody struct {
	Results []FindKindData
}

// Type implements Body.
func (b *FindAnsBody) Type() Type { return FindAns }

func (b *FindAnsBody) encode(e *wire.Encoder) error {
	return e.WriteVar(2, "results", func(inner *wire.Encoder) error {
		for _, r := range b.Results {
			inner.WriteUint32(r.Kind)
			if err := r.Closest.Encode(inner); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeFindAns(d *wire.Decoder) (*FindAnsBody, error) {
	b := &FindAnsBody{}
	err := d.ReadList(2, "results", func(ld *wire.Decoder) error {
		var r FindKindData
		var err error
		if r.Kind, err = ld.ReadUint32(); err != nil {
			return err
		}
		if r.Closest, err = id.DecodeResourceID(ld); err != nil {
			return err
		}
		b.Results = append(b.Results, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
