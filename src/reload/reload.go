package reload

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/mosaicnetworks/reload/src/config"
	"github.com/mosaicnetworks/reload/src/crypto/keys"
	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/net"
	"github.com/mosaicnetworks/reload/src/node"
	"github.com/mosaicnetworks/reload/src/peers"
	"github.com/mosaicnetworks/reload/src/service"
	"github.com/mosaicnetworks/reload/src/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Reload is a struct containing the key parts of an overlay node.
type Reload struct {
	Config      *config.Config
	Node        *node.Node
	Transporter *net.TCPTransporter
	Backend     storage.Backend
	Peers       *peers.PeerSet
	Service     *service.Service
	Registry    *prometheus.Registry
	NodeID      id.NodeID
	logger      *logrus.Entry
}

// NewReload is a factory method to produce a Reload instance.
func NewReload(c *config.Config) *Reload {
	engine := &Reload{
		Config:   c,
		Registry: prometheus.NewRegistry(),
		logger:   c.Logger(),
	}

	return engine
}

func (r *Reload) initKey() error {
	if r.Config.Key == nil {
		keyfile := keys.NewSimpleKeyfile(r.Config.Keyfile())

		privKey, created, err := keys.LoadOrCreate(keyfile)
		if err != nil {
			r.logger.WithError(err).Error("Cannot read or create private key")
			return err
		}

		if created {
			r.logger.WithField("public_key", keys.PublicKeyHex(&privKey.PublicKey)).Info("Created a new key")
		}

		r.Config.Key = privKey
	}
	return nil
}

func (r *Reload) initNodeID() error {
	if r.Config.NodeID != "" {
		nodeID, err := id.ParseNodeID(r.Config.NodeID)
		if err != nil {
			return fmt.Errorf("parsing node-id: %w", err)
		}
		r.NodeID = nodeID
	} else {
		r.NodeID = keys.NodeID(&r.Config.Key.PublicKey)
	}

	r.logger = r.logger.WithField("this_id", r.NodeID.Short())
	return nil
}

func (r *Reload) initPeers() error {
	peerList := []*peers.Peer{}
	for _, addr := range r.Config.BootstrapAddrs {
		peerList = append(peerList, peers.NewPeer(addr, "", ""))
	}

	peerStore := peers.NewJSONPeers(r.Config.DataDir)

	filePeers, err := peerStore.Peers()
	switch {
	case os.IsNotExist(err):
		r.logger.WithField("path", r.Config.BootstrapFile()).Debug("No bootstrap file")
	case err != nil:
		return err
	default:
		peerList = append(peerList, filePeers.Peers...)
	}

	r.Peers = peers.NewPeerSet(peerList)

	return nil
}

func (r *Reload) initStore() error {
	r.logger.WithFields(logrus.Fields{
		"type": r.Config.StoreType,
		"path": r.Config.DatabasePath(),
	}).Debug("Opening store")

	backend, err := storage.NewBackend(
		r.Config.StoreType,
		r.Config.DatabasePath(),
		r.logger.WithField("component", "store"),
	)
	if err != nil {
		return err
	}

	r.Backend = backend

	return nil
}

func (r *Reload) initTransport() error {
	transporter, err := net.NewTCPTransporter(
		net.TCPConfig{
			Self:            r.NodeID,
			BindAddr:        r.Config.BindAddr,
			AdvertiseAddr:   r.Config.AdvertiseAddr,
			Timeout:         r.Config.TCPTimeout,
			ListenerTimeout: r.Config.ListenerTimeout,
			MaxMessageSize:  r.Config.MaxMessageSize,
			Metrics:         net.NewMetrics(r.Registry),
		},
		r.logger.WithField("component", "net"),
	)
	if err != nil {
		return err
	}

	r.Transporter = transporter

	return nil
}

// advertisedAddr is the address other nodes reach the bootstrap listener at.
func (r *Reload) advertisedAddr() string {
	if r.Config.AdvertiseAddr != "" {
		return r.Config.AdvertiseAddr
	}
	return r.Transporter.LocalAddr()
}

func (r *Reload) initNode() error {
	// never join through ourselves
	_, others := peers.ExcludePeer(r.Peers.Peers, r.advertisedAddr())
	addrs := peers.NewPeerSet(others).Addrs()

	if r.Config.Bootstrap {
		addrs = append([]string{r.advertisedAddr()}, addrs...)
	}

	r.logger.WithFields(logrus.Fields{
		"bootstrap": r.Config.Bootstrap,
		"addrs":     addrs,
	}).Debug("Bootstrap addresses")

	n, err := node.NewNode(
		r.Config,
		r.Config.Key,
		r.NodeID,
		addrs,
		r.Transporter,
		r.Backend,
		r.Registry,
	)
	if err != nil {
		return err
	}

	r.Node = n

	if err := r.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %w", err)
	}

	return nil
}

func (r *Reload) initService() error {
	if !r.Config.NoService {
		r.Service = service.NewService(
			r.Config.ServiceAddr,
			r.Node,
			r.Registry,
			r.logger.WithField("component", "service"),
		)
	}
	return nil
}

// Init initialises the node from the configuration. On failure, everything
// opened so far is closed.
func (r *Reload) Init() (err error) {
	defer func() {
		if err != nil {
			r.closePartial()
		}
	}()

	if err := r.initKey(); err != nil {
		return err
	}

	if err := r.initNodeID(); err != nil {
		return err
	}

	if err := r.initPeers(); err != nil {
		return err
	}

	if err := r.initStore(); err != nil {
		return err
	}

	if err := r.initTransport(); err != nil {
		return err
	}

	if err := r.initNode(); err != nil {
		return err
	}

	if err := r.initService(); err != nil {
		return err
	}

	return nil
}

func (r *Reload) closePartial() {
	if r.Node != nil {
		r.Node.Shutdown()
		r.Node = nil
		return
	}
	if r.Transporter != nil {
		r.Transporter.Close()
	}
	if r.Backend != nil {
		r.Backend.Close()
	}
}

// Run starts the service, if any, and runs the node until ctx is done or
// Shutdown is called.
func (r *Reload) Run(ctx context.Context) error {
	if r.Service != nil {
		go r.Service.Serve()
	}

	return r.Node.Run(ctx)
}

// Shutdown stops the service and the node.
func (r *Reload) Shutdown() {
	if r.Service != nil {
		if err := r.Service.Close(); err != nil {
			r.logger.WithError(err).Debug("Closing service")
		}
	}
	if r.Node != nil {
		r.Node.Shutdown()
	}
}

// Keygen generates a new key and writes it in datadir. It refuses to
// overwrite an existing key.
func Keygen(datadir string) (*ecdsa.PrivateKey, error) {
	conf := config.NewDefaultConfig()
	conf.SetDataDir(datadir)

	keyfile := keys.NewSimpleKeyfile(conf.Keyfile())

	if _, err := keyfile.ReadKey(); err == nil {
		return nil, fmt.Errorf("Another key already lives under %s", datadir)
	}

	privKey, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := keyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
