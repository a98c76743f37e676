package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/reload/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultBoltFile is the default name of the bbolt database file
	DefaultBoltFile = "reload.db"

	// DefaultLogDir is the folder, under the data directory, where log files
	// are written when LogToFile is set.
	DefaultLogDir = "logs"
)

// Default configuration values.
const (
	DefaultLogLevel          = "debug"
	DefaultBindAddr          = "127.0.0.1:6084"
	DefaultServiceAddr       = "127.0.0.1:8000"
	DefaultOverlay           = "overlay.example.org"
	DefaultNumInitialFingers = 4
	DefaultNumNeighbors      = 1
	DefaultTCPTimeout        = 5000 * time.Millisecond
	DefaultListenerTimeout   = 30 * time.Second
	DefaultRequestTimeout    = 3000 * time.Millisecond
	DefaultMaxRetries        = 2
	DefaultRefreshInterval   = 10 * time.Second
	DefaultTickInterval      = 50 * time.Millisecond
	DefaultMaxMessageSize    = 16384
	DefaultStore             = "inmem"
	DefaultVerifySignatures  = false
)

// Config contains all the configuration properties of an overlay node.
type Config struct {
	// DataDir is the top-level directory containing the node's configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogToFile mirrors the log output into one file per level under
	// DataDir/logs.
	LogToFile bool `mapstructure:"log-to-file"`

	// BindAddr is the local address:port of the bootstrap listener. Other
	// nodes connect to it when they join through this node.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is the address put in candidates and JoinAns when
	// BindAddr is not routable.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Overlay is the name of the overlay instance this node joins.
	Overlay string `mapstructure:"overlay"`

	// NodeID, in hex, overrides the id derived from the public key.
	NodeID string `mapstructure:"node-id"`

	// Bootstrap makes this node the first member of the overlay. It becomes a
	// member without joining anyone and is responsible for the whole ring
	// until it learns of a predecessor.
	Bootstrap bool `mapstructure:"bootstrap"`

	// BootstrapAddrs lists the host:port of nodes to join through. Entries
	// from DataDir/bootstrap.json are appended at startup.
	BootstrapAddrs []string `mapstructure:"bootstrap-addrs"`

	// NumInitialFingers is the number of fingers collected after the first
	// connection and kept topped up by Refresh.
	NumInitialFingers int `mapstructure:"fingers"`

	// NumNeighbors is the size of the predecessor and successor lists.
	NumNeighbors int `mapstructure:"neighbors"`

	// TCPTimeout bounds connection setup and the NodeId exchange.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// ListenerTimeout closes candidate listeners nobody connected to.
	ListenerTimeout time.Duration `mapstructure:"listener-timeout"`

	// RequestTimeout is how long the dispatcher waits for a response before
	// retransmitting.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	// MaxRetries is the number of retransmissions before a request times out.
	MaxRetries int `mapstructure:"max-retries"`

	// RefreshInterval is the period of the topology maintenance timer.
	RefreshInterval time.Duration `mapstructure:"refresh"`

	// TickInterval bounds each wait of the reactor loop.
	TickInterval time.Duration `mapstructure:"tick"`

	// MaxMessageSize is the largest frame sent to or accepted from a peer.
	// Peers of one overlay should agree on it.
	MaxMessageSize int `mapstructure:"max-message-size"`

	// VerifySignatures drops delivered messages whose signature does not
	// verify. Otherwise a failed verification is only logged.
	VerifySignatures bool `mapstructure:"verify-signatures"`

	// StoreType selects the storage backend: inmem, badger or bolt.
	StoreType string `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		BindAddr:          DefaultBindAddr,
		ServiceAddr:       DefaultServiceAddr,
		Overlay:           DefaultOverlay,
		NumInitialFingers: DefaultNumInitialFingers,
		NumNeighbors:      DefaultNumNeighbors,
		TCPTimeout:        DefaultTCPTimeout,
		ListenerTimeout:   DefaultListenerTimeout,
		RequestTimeout:    DefaultRequestTimeout,
		MaxRetries:        DefaultMaxRetries,
		RefreshInterval:   DefaultRefreshInterval,
		TickInterval:      DefaultTickInterval,
		MaxMessageSize:    DefaultMaxMessageSize,
		StoreType:         DefaultStore,
		VerifySignatures:  DefaultVerifySignatures,
		DatabaseDir:       DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is
// not currently the default, it means the user has explicitely set it to
// something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// BootstrapFile returns the full path of the optional list of bootstrap peers.
func (c *Config) BootstrapFile() string {
	return filepath.Join(c.DataDir, "bootstrap.json")
}

// DatabasePath returns the location handed to the storage backend. Badger
// takes a directory, bbolt a single file inside it.
func (c *Config) DatabasePath() string {
	if c.StoreType == "bolt" {
		return filepath.Join(c.DatabaseDir, DefaultBoltFile)
	}
	return c.DatabaseDir
}

// Logger returns a formatted logrus Entry, with prefix set to "reload".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogToFile {
			c.addFileHook()
		}
	}
	return c.logger.WithField("prefix", "reload")
}

func (c *Config) addFileHook() {
	logDir := filepath.Join(c.DataDir, DefaultLogDir)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		c.logger.WithError(err).Info("Failed to create log directory, using default stderr")
		return
	}

	pathMap := lfshook.PathMap{}
	for _, level := range []logrus.Level{
		logrus.DebugLevel,
		logrus.InfoLevel,
		logrus.WarnLevel,
		logrus.ErrorLevel,
	} {
		pathMap[level] = filepath.Join(logDir, level.String()+".log")
	}

	c.logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))
}

// DefaultDatabaseDir returns the default path for the database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Reload")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Reload")
		} else {
			return filepath.Join(home, ".reload")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
