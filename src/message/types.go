package message

import "fmt"

// Type is the message code carried in the forwarding header.
type Type uint16

// Message codes. Odd codes are requests and the following even code is the
// matching answer.
const (
	PingReq       Type = 1
	PingAns       Type = 2
	ConnectReq    Type = 3
	ConnectAns    Type = 4
	TunnelReq     Type = 5
	TunnelAns     Type = 6
	StoreReq      Type = 7
	StoreAns      Type = 8
	FetchReq      Type = 9
	FetchAns      Type = 10
	RemoveReq     Type = 11
	RemoveAns     Type = 12
	FindReq       Type = 13
	FindAns       Type = 14
	JoinReq       Type = 15
	JoinAns       Type = 16
	LeaveReq      Type = 17
	LeaveAns      Type = 18
	UpdateReq     Type = 19
	UpdateAns     Type = 20
	RouteQueryReq Type = 21
	RouteQueryAns Type = 22
	Error         Type = 0xFFFF
)

var typeNames = map[Type]string{
	PingReq:       "PingReq",
	PingAns:       "PingAns",
	ConnectReq:    "ConnectReq",
	ConnectAns:    "ConnectAns",
	TunnelReq:     "TunnelReq",
	TunnelAns:     "TunnelAns",
	StoreReq:      "StoreReq",
	StoreAns:      "StoreAns",
	FetchReq:      "FetchReq",
	FetchAns:      "FetchAns",
	RemoveReq:     "RemoveReq",
	RemoveAns:     "RemoveAns",
	FindReq:       "FindReq",
	FindAns:       "FindAns",
	JoinReq:       "JoinReq",
	JoinAns:       "JoinAns",
	LeaveReq:      "LeaveReq",
	LeaveAns:      "LeaveAns",
	UpdateReq:     "UpdateReq",
	UpdateAns:     "UpdateAns",
	RouteQueryReq: "RouteQueryReq",
	RouteQueryAns: "RouteQueryAns",
	Error:         "Error",
}

// String ...
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint16(t))
}

// Known reports whether t is one of the defined message codes.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// IsRequest reports whether t is a request code. Error is an answer.
func (t Type) IsRequest() bool {
	return t != Error && t%2 == 1
}

// Answer returns the answer code matching a request code.
func (t Type) Answer() Type {
	if t.IsRequest() {
		return t + 1
	}
	return t
}

// ErrorCode is the code of an ErrorResponse.
type ErrorCode uint16

// Error codes.
const (
	ErrInvalidMessage           ErrorCode = 400
	ErrForbidden                ErrorCode = 403
	ErrNotFound                 ErrorCode = 404
	ErrRequestTimeout           ErrorCode = 408
	ErrGenerationCounterTooLow  ErrorCode = 409
	ErrUnsupportedForwardOption ErrorCode = 410
	ErrMessageTooLarge          ErrorCode = 413
	ErrUnknownKind              ErrorCode = 414
	ErrIncompatibleWithOverlay  ErrorCode = 498
	ErrTTLExceeded              ErrorCode = 499
)

// String ...
func (c ErrorCode) String() string {
	switch c {
	case ErrForbidden:
		return "Forbidden"
	case ErrNotFound:
		return "NotFound"
	case ErrRequestTimeout:
		return "RequestTimeout"
	case ErrGenerationCounterTooLow:
		return "GenerationCounterTooLow"
	case ErrUnsupportedForwardOption:
		return "UnsupportedForwardOption"
	case ErrIncompatibleWithOverlay:
		return "IncompatibleWithOverlay"
	case ErrTTLExceeded:
		return "TTLExceeded"
	case ErrMessageTooLarge:
		return "MessageTooLarge"
	case ErrUnknownKind:
		return "UnknownKind"
	case ErrInvalidMessage:
		return "InvalidMessage"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint16(c))
	}
}

// RELOADApplication is the application id of flows carrying RELOAD messages.
// Flows opened for any other application carry raw bytes.
const RELOADApplication uint16 = 8675
