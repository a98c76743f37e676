package message

import (
	"github.com/mosaicnetworks/reload/src/wire"
)

// ConnectReqAns is the shared content of ConnectReq and ConnectAns: ICE
// credentials and the candidates where the sender can be reached.
type ConnectReqAns struct {
	Ufrag       []byte
	Password    []byte
	Application uint16
	Role        []byte
	Candidates  []string
}

func (c *ConnectReqAns) encode(e *wire.Encoder) error {
	if err := e.WriteOpaque(1, c.Ufrag, "ufrag"); err != nil {
		return err
	}
	if err := e.WriteOpaque(1, c.Password, "password"); err != nil {
		return err
	}
	e.WriteUint16(c.Application)
	if err := e.WriteOpaque(1, c.Role, "role"); err != nil {
		return err
	}
	return e.WriteVar(2, "candidates", func(inner *wire.Encoder) error {
		for _, cand := range c.Candidates {
			if err := inner.WriteOpaque(2, []byte(cand), "IceCandidate"); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeConnectReqAns(d *wire.Decoder) (ConnectReqAns, error) {
	var c ConnectReqAns
	var err error
	if c.Ufrag, err = d.ReadOpaque(1); err != nil {
		return c, err
	}
	if c.Password, err = d.ReadOpaque(1); err != nil {
		return c, err
	}
	if c.Application, err = d.ReadUint16(); err != nil {
		return c, err
	}
	if c.Role, err = d.ReadOpaque(1); err != nil {
		return c, err
	}
	err = d.ReadList(2, "candidates", func(ld *wire.Decoder) error {
		cand, err := ld.ReadOpaque(2)
		if err != nil {
			return err
		}
		c.Candidates = append(c.Candidates, string(cand))
		return nil
	})
	return c, err
}

// ConnectReqBody asks the destination to open a direct connection.
type ConnectReqBody struct {
	ConnectReqAns
}

// Type implements Body.
func (b *ConnectReqBody) Type() Type { return ConnectReq }

// ConnectAnsBody ...
type ConnectAnsBody struct {
	ConnectReqAns
}

// Type implements Body.
func (b *ConnectAnsBody) Type() Type { return ConnectAns }
