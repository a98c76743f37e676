package peers

import (
	"github.com/mosaicnetworks/reload/src/id"
)

// Peer is a node of the overlay we know how to reach before joining.
type Peer struct {
	NetAddr string
	NodeID  string `json:",omitempty"`
	Moniker string `json:",omitempty"`
}

// NewPeer creates a Peer. nodeID may be empty when the id of the node behind
// netAddr is unknown.
func NewPeer(netAddr, nodeID, moniker string) *Peer {
	return &Peer{
		NetAddr: netAddr,
		NodeID:  nodeID,
		Moniker: moniker,
	}
}

// ID parses the peer's NodeID. ok is false when no id was given.
func (p *Peer) ID() (n id.NodeID, ok bool, err error) {
	if p.NodeID == "" {
		return id.NodeID{}, false, nil
	}
	n, err = id.ParseNodeID(p.NodeID)
	if err != nil {
		return id.NodeID{}, false, err
	}
	return n, true, nil
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, peer string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.NetAddr != peer {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
