package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/reload/src/reload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts an overlay node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runReload,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runReload(cmd *cobra.Command, args []string) error {
	engine := reload.NewReload(&_config.Reload)

	if err := engine.Init(); err != nil {
		_config.Reload.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := engine.Run(ctx)

	engine.Shutdown()

	return err
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Reload.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Reload.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().Bool("log-to-file", _config.Reload.LogToFile, "Also write logs under [datadir]/logs")
	cmd.Flags().String("moniker", _config.Reload.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Reload.BindAddr, "Listen IP:Port for bootstrap connections")
	cmd.Flags().StringP("advertise", "a", _config.Reload.AdvertiseAddr, "Advertise IP:Port for this node")
	cmd.Flags().DurationP("timeout", "t", _config.Reload.TCPTimeout, "TCP Timeout")
	cmd.Flags().Duration("listener-timeout", _config.Reload.ListenerTimeout, "Lifetime of unused candidate listeners")
	cmd.Flags().Int("max-message-size", _config.Reload.MaxMessageSize, "Largest accepted frame in bytes")

	// Overlay
	cmd.Flags().String("overlay", _config.Reload.Overlay, "Overlay instance name")
	cmd.Flags().String("node-id", _config.Reload.NodeID, "Hex NodeID, derived from the public key when empty")
	cmd.Flags().Bool("bootstrap", _config.Reload.Bootstrap, "Start a new overlay as its bootstrap node")
	cmd.Flags().StringSlice("bootstrap-addrs", _config.Reload.BootstrapAddrs, "IP:Port of nodes to join through")
	cmd.Flags().Int("fingers", _config.Reload.NumInitialFingers, "Number of fingers to collect")
	cmd.Flags().Int("neighbors", _config.Reload.NumNeighbors, "Size of the predecessor and successor lists")
	cmd.Flags().Duration("refresh", _config.Reload.RefreshInterval, "Time between topology refreshes")
	cmd.Flags().Duration("tick", _config.Reload.TickInterval, "Longest wait of the reactor loop")
	cmd.Flags().Duration("request-timeout", _config.Reload.RequestTimeout, "Time before a request is retransmitted")
	cmd.Flags().Int("max-retries", _config.Reload.MaxRetries, "Retransmissions before a request times out")
	cmd.Flags().Bool("verify-signatures", _config.Reload.VerifySignatures, "Drop messages whose signature does not verify")

	// Service
	cmd.Flags().Bool("no-service", _config.Reload.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.Reload.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().String("store", _config.Reload.StoreType, "inmem, badger or bolt")
	cmd.Flags().String("db", _config.Reload.DatabaseDir, "Dabatabase directory")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Reload.SetDataDir(_config.Reload.DataDir)

	logFields := logrus.Fields{
		"reload.DataDir":           _config.Reload.DataDir,
		"reload.BindAddr":          _config.Reload.BindAddr,
		"reload.AdvertiseAddr":     _config.Reload.AdvertiseAddr,
		"reload.ServiceAddr":       _config.Reload.ServiceAddr,
		"reload.NoService":         _config.Reload.NoService,
		"reload.Overlay":           _config.Reload.Overlay,
		"reload.Bootstrap":         _config.Reload.Bootstrap,
		"reload.BootstrapAddrs":    _config.Reload.BootstrapAddrs,
		"reload.NumInitialFingers": _config.Reload.NumInitialFingers,
		"reload.NumNeighbors":      _config.Reload.NumNeighbors,
		"reload.RefreshInterval":   _config.Reload.RefreshInterval,
		"reload.TCPTimeout":        _config.Reload.TCPTimeout,
		"reload.RequestTimeout":    _config.Reload.RequestTimeout,
		"reload.VerifySignatures":  _config.Reload.VerifySignatures,
		"reload.StoreType":         _config.Reload.StoreType,
		"reload.LogLevel":          _config.Reload.LogLevel,
		"reload.Moniker":           _config.Reload.Moniker,
	}

	if _config.Reload.StoreType != "inmem" {
		logFields["reload.DatabaseDir"] = _config.Reload.DatabaseDir
	}

	_config.Reload.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/reload.toml (.json, .yaml also work)
	viper.SetConfigName("reload")               // name of config file (without extension)
	viper.AddConfigPath(_config.Reload.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Reload.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Reload.Logger().Debugf("No config file found in: %s", _config.Reload.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
