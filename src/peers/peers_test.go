package peers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mosaicnetworks/reload/src/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONPeers(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONPeers(dir)

	// Try a read, should get nothing
	_, err := store.Peers()
	assert.True(t, os.IsNotExist(err))

	nodeID := id.NodeID{High: 1, Low: 2}
	err = store.SetPeers([]*Peer{
		NewPeer("10.0.0.1:6084", "", "alice"),
		NewPeer("10.0.0.2:6084", nodeID.String(), "bob"),
		NewPeer("10.0.0.1:6084", "", "duplicate"),
	})
	require.NoError(t, err)

	ps, err := store.Peers()
	require.NoError(t, err)
	assert.Equal(t, 2, ps.Len())
	assert.Equal(t, []string{"10.0.0.1:6084", "10.0.0.2:6084"}, ps.Addrs())
	assert.Equal(t, "alice", ps.ByNetAddr["10.0.0.1:6084"].Moniker)

	n, ok, err := ps.Peers[1].ID()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, nodeID, n)

	_, ok, err = ps.Peers[0].ID()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/"+jsonPeerPath, nil, 0644))

	ps, err := NewJSONPeers(dir).Peers()
	require.NoError(t, err)
	assert.Equal(t, 0, ps.Len())
}

func TestBadNodeID(t *testing.T) {
	_, _, err := NewPeer("10.0.0.1:6084", "zz", "").ID()
	assert.Error(t, err)
}

func TestInvalidEntries(t *testing.T) {
	for _, content := range []string{
		`[{"NetAddr":"10.0.0.1"}]`,
		`[{"NetAddr":"10.0.0.1:6084","NodeID":"zz"}]`,
		`[null]`,
		`{"NetAddr":"10.0.0.1:6084"}`,
	} {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, jsonPeerPath), []byte(content), 0644))

		_, err := NewJSONPeers(dir).Peers()
		assert.Error(t, err, content)
	}
}

func TestExcludePeer(t *testing.T) {
	peers := []*Peer{
		NewPeer("a:1", "", ""),
		NewPeer("b:1", "", ""),
	}
	index, others := ExcludePeer(peers, "b:1")
	assert.Equal(t, 1, index)
	require.Len(t, others, 1)
	assert.Equal(t, "a:1", others[0].NetAddr)
}
