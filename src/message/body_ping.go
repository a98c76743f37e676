package message

import (
	"fmt"

	"github.com/mosaicnetworks/reload/src/wire"
)

// PingInfoType selects a piece of information requested by a PingReq.
type PingInfoType uint8

const (
	// PingResponsibleSet asks for the fraction of the ring the node is
	// responsible for, in parts per billion.
	PingResponsibleSet PingInfoType = 1
	// PingNumResources asks for the number of resources the node stores.
	PingNumResources PingInfoType = 2
)

// PingInformation is one answer entry of a PingAns.
type PingInformation struct {
	Type  PingInfoType
	Value uint32
}

// PingReqBody ...
type PingReqBody struct {
	RequestedInfo []PingInfoType
}

// Type implements Body.
func (b *PingReqBody) Type() Type { return PingReq }

func (b *PingReqBody) encode(e *wire.Encoder) error {
	return e.WriteVar(1, "requested_info", func(inner *wire.Encoder) error {
		for _, t := range b.RequestedInfo {
			inner.WriteUint8(uint8(t))
		}
		return nil
	})
}

func decodePingReq(d *wire.Decoder) (*PingReqBody, error) {
	b := &PingReqBody{}
	err := d.ReadList(1, "requested_info", func(ld *wire.Decoder) error {
		t, err := ld.ReadUint8()
		if err != nil {
			return err
		}
		b.RequestedInfo = append(b.RequestedInfo, PingInfoType(t))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// PingAnsBody ...
type PingAnsBody struct {
	ResponseID uint64
	Info       []PingInformation
}

// Type implements Body.
func (b *PingAnsBody) Type() Type { return PingAns }

func (b *PingAnsBody) encode(e *wire.Encoder) error {
	e.WriteUint64(b.ResponseID)
	return e.WriteVar(2, "ping_info", func(inner *wire.Encoder) error {
		for _, info := range b.Info {
			switch info.Type {
			case PingResponsibleSet, PingNumResources:
			default:
				return wire.NewParseError("PingInformation", wire.UnknownTag, fmt.Sprintf("%d", info.Type))
			}
			inner.WriteUint8(uint8(info.Type))
			inner.WriteUint32(info.Value)
		}
		return nil
	})
}

func decodePingAns(d *wire.Decoder) (*PingAnsBody, error) {
	b := &PingAnsBody{}
	var err error
	if b.ResponseID, err = d.ReadUint64(); err != nil {
		return nil, err
	}
	err = d.ReadList(2, "ping_info", func(ld *wire.Decoder) error {
		t, err := ld.ReadUint8()
		if err != nil {
			return err
		}
		switch PingInfoType(t) {
		case PingResponsibleSet, PingNumResources:
		default:
			return wire.NewParseError("PingInformation", wire.UnknownTag, fmt.Sprintf("%d", t))
		}
		v, err := ld.ReadUint32()
		if err != nil {
			return err
		}
		b.Info = append(b.Info, PingInformation{Type: PingInfoType(t), Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
