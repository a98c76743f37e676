package peers

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
)

const jsonPeerPath = "bootstrap.json"

// JSONPeers keeps a list of bootstrap peers in a JSON file under the data
// directory, so operators can edit it by hand.
type JSONPeers struct {
	l    sync.Mutex
	path string
}

// NewJSONPeers returns the store for base/bootstrap.json.
func NewJSONPeers(base string) *JSONPeers {
	return &JSONPeers{
		path: filepath.Join(base, jsonPeerPath),
	}
}

// Peers reads the peer list from disk. An empty file is an empty list. Every
// entry must carry a host:port address, and a valid NodeID when it has one.
func (j *JSONPeers) Peers() (*PeerSet, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := os.ReadFile(j.path)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return NewPeerSet(nil), nil
	}

	var peerList []*Peer
	if err := json.Unmarshal(buf, &peerList); err != nil {
		return nil, fmt.Errorf("%s: %w", j.path, err)
	}

	for i, p := range peerList {
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("%s: peer %d: %w", j.path, i, err)
		}
	}

	return NewPeerSet(peerList), nil
}

func validate(p *Peer) error {
	if p == nil {
		return fmt.Errorf("null entry")
	}
	if _, _, err := net.SplitHostPort(p.NetAddr); err != nil {
		return err
	}
	_, _, err := p.ID()
	return err
}

// SetPeers writes the peer list to disk.
func (j *JSONPeers) SetPeers(peers []*Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := json.MarshalIndent(peers, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, buf, 0644)
}
