package message

import (
	"fmt"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/wire"
)

// Body is the typed content of a message payload.
type Body interface {
	Type() Type
	encode(e *wire.Encoder) error
}

// EncodeBody serializes a body into payload bytes.
func EncodeBody(b Body) ([]byte, error) {
	e := wire.NewEncoder()
	if err := b.encode(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// DecodeBody parses payload according to the message code t. The whole
// payload must be consumed.
func DecodeBody(t Type, payload []byte) (Body, error) {
	d := wire.NewDecoder(payload, t.String())

	var b Body
	var err error

	switch t {
	case PingReq:
		b, err = decodePingReq(d)
	case PingAns:
		b, err = decodePingAns(d)
	case ConnectReq:
		var c ConnectReqBody
		c.ConnectReqAns, err = decodeConnectReqAns(d)
		b = &c
	case ConnectAns:
		var c ConnectAnsBody
		c.ConnectReqAns, err = decodeConnectReqAns(d)
		b = &c
	case TunnelReq:
		b, err = decodeTunnelReq(d)
	case TunnelAns:
		b = &TunnelAnsBody{}
	case StoreReq:
		b, err = decodeStoreReq(d)
	case StoreAns:
		var s StoreAnsBody
		s.KindResponses, err = decodeStoreKindResponses(d)
		b = &s
	case FetchReq:
		var f FetchReqBody
		f.Resource, f.Specifiers, err = decodeSpecifiedResource(d)
		b = &f
	case FetchAns:
		b, err = decodeFetchAns(d)
	case RemoveReq:
		var r RemoveReqBody
		r.Resource, r.Specifiers, err = decodeSpecifiedResource(d)
		b = &r
	case RemoveAns:
		var r RemoveAnsBody
		r.KindResponses, err = decodeStoreKindResponses(d)
		b = &r
	case FindReq:
		b, err = decodeFindReq(d)
	case FindAns:
		b, err = decodeFindAns(d)
	case JoinReq:
		var j JoinReqBody
		j.JoiningPeer, j.OverlayData, err = decodePeerAndData(d)
		b = &j
	case JoinAns:
		var j JoinAnsBody
		j.OverlayData, err = d.ReadOpaque(2)
		b = &j
	case LeaveReq:
		var l LeaveReqBody
		l.LeavingPeer, l.OverlayData, err = decodePeerAndData(d)
		b = &l
	case LeaveAns:
		b = &LeaveAnsBody{}
	case UpdateReq:
		var u UpdateReqBody
		u.OverlayData, err = d.ReadOpaque(3)
		b = &u
	case UpdateAns:
		var u UpdateAnsBody
		u.OverlayData, err = d.ReadOpaque(2)
		b = &u
	case RouteQueryReq:
		b, err = decodeRouteQueryReq(d)
	case RouteQueryAns:
		var r RouteQueryAnsBody
		r.OverlayData, err = d.ReadOpaque(2)
		b = &r
	case Error:
		b, err = decodeErrorResponse(d)
	default:
		return nil, wire.NewParseError("message_code", wire.UnknownTag, fmt.Sprintf("%d", uint16(t)))
	}

	if err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return b, nil
}

/*******************************************************************************
Join, Leave, Update, RouteQuery
*******************************************************************************/

// JoinReqBody asks the responsible node to admit JoiningPeer.
type JoinReqBody struct {
	JoiningPeer id.NodeID
	OverlayData []byte
}

// Type implements Body.
func (b *JoinReqBody) Type() Type { return JoinReq }

func (b *JoinReqBody) encode(e *wire.Encoder) error {
	id.EncodeNodeID(e, b.JoiningPeer)
	return e.WriteOpaque(2, b.OverlayData, "overlay_specific_data")
}

// JoinAnsBody ...
type JoinAnsBody struct {
	OverlayData []byte
}

// Type implements Body.
func (b *JoinAnsBody) Type() Type { return JoinAns }

func (b *JoinAnsBody) encode(e *wire.Encoder) error {
	return e.WriteOpaque(2, b.OverlayData, "overlay_specific_data")
}

// LeaveReqBody announces that LeavingPeer is leaving the overlay.
type LeaveReqBody struct {
	LeavingPeer id.NodeID
	OverlayData []byte
}

// Type implements Body.
func (b *LeaveReqBody) Type() Type { return LeaveReq }

func (b *LeaveReqBody) encode(e *wire.Encoder) error {
	id.EncodeNodeID(e, b.LeavingPeer)
	return e.WriteOpaque(2, b.OverlayData, "overlay_specific_data")
}

// LeaveAnsBody ...
type LeaveAnsBody struct{}

// Type implements Body.
func (b *LeaveAnsBody) Type() Type { return LeaveAns }

func (b *LeaveAnsBody) encode(e *wire.Encoder) error { return nil }

func decodePeerAndData(d *wire.Decoder) (id.NodeID, []byte, error) {
	peer, err := id.DecodeNodeID(d)
	if err != nil {
		return peer, nil, err
	}
	data, err := d.ReadOpaque(2)
	return peer, data, err
}

// UpdateReqBody carries an overlay specific update, a ChordUpdate for the
// chord topology.
type UpdateReqBody struct {
	OverlayData []byte
}

// Type implements Body.
func (b *UpdateReqBody) Type() Type { return UpdateReq }

func (b *UpdateReqBody) encode(e *wire.Encoder) error {
	return e.WriteOpaque(3, b.OverlayData, "overlay_specific_data")
}

// UpdateAnsBody ...
type UpdateAnsBody struct {
	OverlayData []byte
}

// Type implements Body.
func (b *UpdateAnsBody) Type() Type { return UpdateAns }

func (b *UpdateAnsBody) encode(e *wire.Encoder) error {
	return e.WriteOpaque(2, b.OverlayData, "overlay_specific_data")
}

// RouteQueryReqBody asks a node where it would route Destination.
type RouteQueryReqBody struct {
	SendUpdate  bool
	Destination id.Destination
	OverlayData []byte
}

// Type implements Body.
func (b *RouteQueryReqBody) Type() Type { return RouteQueryReq }

func (b *RouteQueryReqBody) encode(e *wire.Encoder) error {
	e.WriteBool(b.SendUpdate)
	if err := b.Destination.Encode(e); err != nil {
		return err
	}
	return e.WriteOpaque(2, b.OverlayData, "overlay_specific_data")
}

func decodeRouteQueryReq(d *wire.Decoder) (*RouteQueryReqBody, error) {
	b := &RouteQueryReqBody{}
	var err error
	if b.SendUpdate, err = d.ReadBool(); err != nil {
		return nil, err
	}
	if b.Destination, err = id.DecodeDestination(d); err != nil {
		return nil, err
	}
	if b.OverlayData, err = d.ReadOpaque(2); err != nil {
		return nil, err
	}
	return b, nil
}

// RouteQueryAnsBody ...
type RouteQueryAnsBody struct {
	OverlayData []byte
}

// Type implements Body.
func (b *RouteQueryAnsBody) Type() Type { return RouteQueryAns }

func (b *RouteQueryAnsBody) encode(e *wire.Encoder) error {
	return e.WriteOpaque(2, b.OverlayData, "overlay_specific_data")
}

/*******************************************************************************
Error
*******************************************************************************/

// ErrorResponse is the body of Error messages.
type ErrorResponse struct {
	Code   ErrorCode
	Reason string
	Info   []byte
}

// Type implements Body.
func (b *ErrorResponse) Type() Type { return Error }

func (b *ErrorResponse) encode(e *wire.Encoder) error {
	e.WriteUint16(uint16(b.Code))
	if err := e.WriteOpaque(1, []byte(b.Reason), "reason_phrase"); err != nil {
		return err
	}
	return e.WriteOpaque(2, b.Info, "error_info")
}

// Error implements the error interface.
func (b *ErrorResponse) Error() string {
	return fmt.Sprintf("%d %s: %s", uint16(b.Code), b.Code, b.Reason)
}

func decodeErrorResponse(d *wire.Decoder) (*ErrorResponse, error) {
	b := &ErrorResponse{}
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	b.Code = ErrorCode(code)
	reason, err := d.ReadOpaque(1)
	if err != nil {
		return nil, err
	}
	b.Reason = string(reason)
	if b.Info, err = d.ReadOpaque(2); err != nil {
		return nil, err
	}
	return b, nil
}

/*******************************************************************************
Tunnel
*******************************************************************************/

// TunnelReqBody carries an application PDU to the destination.
type TunnelReqBody struct {
	Application    uint16
	DialogID       []byte
	ApplicationPDU []byte
}

// Type implements Body.
func (b *TunnelReqBody) Type() Type { return TunnelReq }

func (b *TunnelReqBody) encode(e *wire.Encoder) error {
	e.WriteUint16(b.Application)
	if err := e.WriteOpaque(1, b.DialogID, "dialog_id"); err != nil {
		return err
	}
	return e.WriteOpaque(3, b.ApplicationPDU, "application_pdu")
}

func decodeTunnelReq(d *wire.Decoder) (*TunnelReqBody, error) {
	b := &TunnelReqBody{}
	var err error
	if b.Application, err = d.ReadUint16(); err != nil {
		return nil, err
	}
	if b.DialogID, err = d.ReadOpaque(1); err != nil {
		return nil, err
	}
	if b.ApplicationPDU, err = d.ReadOpaque(3); err != nil {
		return nil, err
	}
	return b, nil
}

// TunnelAnsBody ...
type TunnelAnsBody struct{}

// Type implements Body.
func (b *TunnelAnsBody) Type() Type { return TunnelAns }

func (b *TunnelAnsBody) encode(e *wire.Encoder) error { return nil }
