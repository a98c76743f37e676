package peers

// PeerSet is an ordered list of peers without duplicate addresses.
type PeerSet struct {
	Peers     []*Peer
	ByNetAddr map[string]*Peer
}

// NewPeerSet creates a new PeerSet from a list of Peers. Later entries with
// an address already seen are ignored.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByNetAddr: make(map[string]*Peer),
	}
	for _, p := range peers {
		peerSet.Add(p)
	}
	return peerSet
}

// Add appends p unless its address is already in the set.
func (ps *PeerSet) Add(p *Peer) bool {
	if _, ok := ps.ByNetAddr[p.NetAddr]; ok {
		return false
	}
	ps.ByNetAddr[p.NetAddr] = p
	ps.Peers = append(ps.Peers, p)
	return true
}

// Addrs returns the peer addresses in order.
func (ps *PeerSet) Addrs() []string {
	res := make([]string, 0, len(ps.Peers))
	for _, p := range ps.Peers {
		res = append(res, p.NetAddr)
	}
	return res
}

// Len returns the number of peers.
func (ps *PeerSet) Len() int {
	return len(ps.Peers)
}
