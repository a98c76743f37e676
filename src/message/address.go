package message

import (
	"fmt"
	"net"

	"github.com/mosaicnetworks/reload/src/wire"
)

// AddressType ...
type AddressType uint8

// Address types.
const (
	IPv4Address AddressType = 1
	IPv6Address AddressType = 2
)

// IPAddressPort is a transport address as carried in overlay data. Bootstrap
// peers are advertised with it in JoinAns.
type IPAddressPort struct {
	IP   net.IP
	Port uint16
}

// Encode writes the type tag, a one byte length and the address body.
func (a IPAddressPort) Encode(e *wire.Encoder) error {
	if v4 := a.IP.To4(); v4 != nil {
		e.WriteUint8(uint8(IPv4Address))
		return e.WriteVar(1, "IpAddressAndPort", func(inner *wire.Encoder) error {
			inner.WriteRaw(v4)
			inner.WriteUint16(a.Port)
			return nil
		})
	}
	v6 := a.IP.To16()
	if v6 == nil {
		return wire.NewParseError("IpAddressAndPort", wire.UnknownTag, "invalid ip")
	}
	e.WriteUint8(uint8(IPv6Address))
	return e.WriteVar(1, "IpAddressAndPort", func(inner *wire.Encoder) error {
		inner.WriteRaw(v6)
		inner.WriteUint16(a.Port)
		return nil
	})
}

// DecodeIPAddressPort ...
func DecodeIPAddressPort(d *wire.Decoder) (IPAddressPort, error) {
	var a IPAddressPort
	t, err := d.ReadUint8()
	if err != nil {
		return a, err
	}
	inner, err := d.ReadVar(1, "IpAddressAndPort")
	if err != nil {
		return a, err
	}

	var size int
	switch AddressType(t) {
	case IPv4Address:
		size = net.IPv4len
	case IPv6Address:
		size = net.IPv6len
	default:
		return a, wire.NewParseError("IpAddressAndPort", wire.UnknownTag, fmt.Sprintf("%d", t))
	}

	raw, err := inner.ReadRaw(size)
	if err != nil {
		return a, err
	}
	a.IP = net.IP(raw)
	if a.Port, err = inner.ReadUint16(); err != nil {
		return a, err
	}
	return a, inner.Finish()
}

// String ...
func (a IPAddressPort) String() string {
	return net.JoinHostPort(a.IP.String(), fmt.Sprintf("%d", a.Port))
}

// EncodeAddressList writes addresses with a two byte length prefix.
func EncodeAddressList(list []IPAddressPort) ([]byte, error) {
	e := wire.NewEncoder()
	err := e.WriteVar(2, "addresses", func(inner *wire.Encoder) error {
		for _, a := range list {
			if err := a.Encode(inner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// DecodeAddressList is the inverse of EncodeAddressList.
func DecodeAddressList(data []byte) ([]IPAddressPort, error) {
	d := wire.NewDecoder(data, "addresses")
	var list []IPAddressPort
	err := d.ReadList(2, "addresses", func(ld *wire.Decoder) error {
		a, err := DecodeIPAddressPort(ld)
		if err != nil {
			return err
		}
		list = append(list, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, d.Finish()
}
