package commands

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRunCmd returns the command that runs a test network
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Bootstrap, start and supervise a test network",
		PreRunE: loadConfig,
		RunE:    runNetwork,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runNetwork(cmd *cobra.Command, args []string) error {
	logger := _config.Network.Logger()

	b, err := _config.builder()
	if err != nil {
		return err
	}

	n, err := b.Generate()
	if err != nil {
		if n != nil {
			n.Close()
		}
		return err
	}
	defer n.Close()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	go func() {
		if _, ok := <-signalChan; ok {
			logger.Info("Received an interrupt, stopping network")
			n.Signal()
		}
	}()

	if err := n.Start(); err != nil {
		return err
	}

	if !n.WaitUntilRunning(0) {
		return n.Err()
	}

	logger.WithFields(logrus.Fields{
		"session":    n.ID(),
		"dir":        n.Dir(),
		"nodes":      n.Nodes(),
		"keep_alive": _config.KeepAlive,
	}).Info("Network running")

	n.KeepAlive(_config.KeepAlive)

	return n.Err()
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

// AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("dir", _config.Network.TargetDir, "Session directory, must be empty")
	cmd.Flags().String("config-dir", _config.ConfigDir, "Directory of the netrunner.toml topology file")
	cmd.Flags().String("log", _config.Network.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Network.LogFile, "Copy the log output into a file")

	// Timeouts
	cmd.Flags().DurationP("timeout", "t", _config.Network.Timeout, "Node readiness timeout")
	cmd.Flags().Duration("command-timeout", _config.Network.CommandTimeout, "Timeout of every external tool")
	cmd.Flags().Duration("grace-period", _config.Network.GracePeriod, "Time given to an interrupted process before it is killed")
	cmd.Flags().Duration("keep-alive", _config.KeepAlive, "How long the running network is kept before it is stopped")

	// Output markers
	cmd.Flags().String("error-marker", _config.Network.ErrorMarker, "Output substring flagging a tool failure")
	cmd.Flags().String("ready-marker", _config.Network.ReadyMarker, "Output substring by which a node reports it is running")

	// External files
	cmd.Flags().String("java", _config.Network.JavaPath, "Program running .jar tools")
	cmd.Flags().String("driver-dir", _config.Network.DriverDir, "Database drivers copied into the session")
	cmd.Flags().String("authority-config-dir", _config.Network.AuthorityConfigDir, "Reference configuration of the provisioning authority")
	cmd.Flags().String("authority-work-dir", _config.Network.AuthorityWorkDir, "Working directory of the provisioning authority")
	cmd.Flags().String("network-params", _config.Network.NetworkParamsTemplate, "Network parameters loaded into the authority")
	cmd.Flags().String("rpc-proxy-script", _config.Network.RPCProxyScript, "RPC proxy launcher script")
	cmd.Flags().String("rpc-proxy-pid-file", _config.Network.RPCProxyPIDFile, "Where the RPC proxy records its pid")

	cmd.Flags().Bool("always-clean", _config.Network.AlwaysClean, "Remove the session directory even after a failure")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.Network.Logger().WithFields(logrus.Fields{
		"Dir":            _config.Network.TargetDir,
		"ConfigDir":      _config.ConfigDir,
		"LogLevel":       _config.Network.LogLevel,
		"Timeout":        _config.Network.Timeout,
		"CommandTimeout": _config.Network.CommandTimeout,
		"KeepAlive":      _config.KeepAlive,
		"AlwaysClean":    _config.Network.AlwaysClean,
		"Distribution":   _config.Distribution,
		"Nodes":          len(_config.Nodes),
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	viper.SetEnvPrefix("NETRUNNER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [config-dir]/netrunner.toml (.json, .yaml also work)
	viper.SetConfigName("netrunner")
	viper.AddConfigPath(_config.ConfigDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Network.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Network.Logger().Debugf("No config file found in: %s", _config.ConfigDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// the logger is built lazily from the final log settings
	_config.Network.SetLogger(nil)

	return nil
}
