package net

import (
	"fmt"
	"net"

	"github.com/pion/ice/v2"
)

// encodeCandidate renders a passive TCP host candidate for addr.
func encodeCandidate(addr *net.TCPAddr) (string, error) {
	c, err := ice.NewCandidateHost(&ice.CandidateHostConfig{
		Network:   "tcp",
		Address:   addr.IP.String(),
		Port:      addr.Port,
		Component: ice.ComponentRTP,
		TCPType:   ice.TCPTypePassive,
	})
	if err != nil {
		return "", err
	}
	return c.Marshal(), nil
}

// decodeCandidate returns the host:port a candidate string points to.
func decodeCandidate(raw string) (string, error) {
	c, err := ice.UnmarshalCandidate(raw)
	if err != nil {
		return "", err
	}
	if c.Port() == 0 {
		return "", fmt.Errorf("candidate %q has no port", raw)
	}
	return net.JoinHostPort(c.Address(), fmt.Sprintf("%d", c.Port())), nil
}
