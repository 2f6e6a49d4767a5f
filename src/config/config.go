package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flashtony2005/corda/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames and directories.
const (
	// DefaultLibsDir is the name of the session subdirectory receiving the
	// database drivers.
	DefaultLibsDir = "libs"

	// DefaultCacheDir is the name of the shared cache directory of a session.
	DefaultCacheDir = ".cache"

	// DefaultJournalDir is the name of the session subdirectory holding the
	// session journal.
	DefaultJournalDir = "journal"

	// DefaultNodeConfFile is the name of the configuration file written in
	// every node directory.
	DefaultNodeConfFile = "node.conf"

	// DefaultRPCProxyScript is the name of the launcher script of the RPC
	// proxy.
	DefaultRPCProxyScript = "startRPCproxy.sh"
)

// Default configuration values.
const (
	DefaultLogLevel             = "info"
	DefaultTimeout              = 2 * time.Minute
	DefaultCommandTimeout       = 5 * time.Minute
	DefaultGracePeriod          = 5 * time.Second
	DefaultAlwaysClean          = false
	DefaultErrorMarker          = "Exception"
	DefaultReadyMarker          = "started up and registered"
	DefaultAuthorityReadyMarker = "Network management web services started"
	DefaultJavaPath             = "java"
	DefaultTrustStorePassword   = "trustpass"
	DefaultRPCProxyPIDFile      = "/tmp/rpcProxy-pid"
)

// Config contains the configuration properties of a test network session.
type Config struct {
	// TargetDir is the top-level directory of the session. It is created when
	// the network is generated and must not already contain files.
	TargetDir string `mapstructure:"dir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// Timeout bounds node readiness waits and the keep-alive window.
	Timeout time.Duration `mapstructure:"timeout"`

	// CommandTimeout is the hard timeout of every external tool invocation.
	CommandTimeout time.Duration `mapstructure:"command-timeout"`

	// GracePeriod is the time an interrupted command is given to exit before
	// it is killed.
	GracePeriod time.Duration `mapstructure:"grace-period"`

	// AlwaysClean removes the whole target directory on cleanup, even when the
	// session failed.
	AlwaysClean bool `mapstructure:"always-clean"`

	// ErrorMarker is the substring that flags a failure in the output of
	// external tools, and the pattern searched in logs after a failure.
	ErrorMarker string `mapstructure:"error-marker"`

	// ReadyMarker is the output line substring by which a node reports that
	// it is running.
	ReadyMarker string `mapstructure:"ready-marker"`

	// JavaPath is the program used to run .jar tools.
	JavaPath string `mapstructure:"java"`

	// DriverDir is the source directory of the database drivers copied into
	// every session.
	DriverDir string `mapstructure:"driver-dir"`

	// AuthorityConfigDir holds the reference configuration of the
	// provisioning authority.
	AuthorityConfigDir string `mapstructure:"authority-config-dir"`

	// AuthorityWorkDir is the working directory of the provisioning authority.
	AuthorityWorkDir string `mapstructure:"authority-work-dir"`

	// AuthorityReadyMarker is the output line substring by which the
	// authority service reports that it accepts requests.
	AuthorityReadyMarker string `mapstructure:"authority-ready-marker"`

	// NetworkParamsTemplate is the network parameters file loaded into the
	// authority.
	NetworkParamsTemplate string `mapstructure:"network-params"`

	// TrustStorePassword protects the key and trust stores created during the
	// authority bootstrap.
	TrustStorePassword string `mapstructure:"trust-store-password"`

	// RPCProxyScript is the launcher script copied into a distribution when a
	// node requires an RPC proxy.
	RPCProxyScript string `mapstructure:"rpc-proxy-script"`

	// RPCProxyPIDFile is where the RPC proxy launcher records its process id.
	RPCProxyPIDFile string `mapstructure:"rpc-proxy-pid-file"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	stagingRoot := DefaultStagingRoot()

	config := &Config{
		TargetDir:             filepath.Join(os.TempDir(), "netrunner"),
		LogLevel:              DefaultLogLevel,
		Timeout:               DefaultTimeout,
		CommandTimeout:        DefaultCommandTimeout,
		GracePeriod:           DefaultGracePeriod,
		AlwaysClean:           DefaultAlwaysClean,
		ErrorMarker:           DefaultErrorMarker,
		ReadyMarker:           DefaultReadyMarker,
		AuthorityReadyMarker:  DefaultAuthorityReadyMarker,
		JavaPath:              DefaultJavaPath,
		DriverDir:             filepath.Join(stagingRoot, "drivers"),
		AuthorityConfigDir:    filepath.Join(stagingRoot, "authority"),
		AuthorityWorkDir:      filepath.Join(os.TempDir(), "authority"),
		NetworkParamsTemplate: filepath.Join(stagingRoot, "authority", "network-parameters.conf"),
		TrustStorePassword:    DefaultTrustStorePassword,
		RPCProxyScript:        filepath.Join(stagingRoot, "proxy", DefaultRPCProxyScript),
		RPCProxyPIDFile:       DefaultRPCProxyPIDFile,
	}

	return config
}

// NewTestConfig returns a config object rooted in a temporary directory, with
// short timeouts and a logger that writes through t.Log.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	root := t.TempDir()

	config := NewDefaultConfig()
	config.TargetDir = filepath.Join(root, "network")
	config.Timeout = 2 * time.Second
	config.CommandTimeout = 10 * time.Second
	config.GracePeriod = 500 * time.Millisecond
	config.DriverDir = filepath.Join(root, "staging", "drivers")
	config.AuthorityConfigDir = filepath.Join(root, "staging", "authority")
	config.AuthorityWorkDir = filepath.Join(root, "authority")
	config.NetworkParamsTemplate = filepath.Join(root, "staging", "authority", "network-parameters.conf")
	config.RPCProxyScript = filepath.Join(root, "staging", "proxy", DefaultRPCProxyScript)
	config.RPCProxyPIDFile = filepath.Join(root, "rpcProxy-pid")
	config.logger = common.NewTestLogger(t, level)

	return config
}

// SetLogger replaces the logger returned by Logger.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// LibsDir returns the directory receiving the database drivers.
func (c *Config) LibsDir() string {
	return filepath.Join(c.TargetDir, DefaultLibsDir)
}

// CacheDir returns the shared cache directory of the session.
func (c *Config) CacheDir() string {
	return filepath.Join(c.TargetDir, DefaultCacheDir)
}

// JournalDir returns the directory of the session journal.
func (c *Config) JournalDir() string {
	return filepath.Join(c.TargetDir, DefaultJournalDir)
}

// BaseLogger returns the underlying logrus Logger, creating it on first use.
func (c *Config) BaseLogger() *logrus.Logger {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.DebugLevel: c.LogFile,
					logrus.InfoLevel:  c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.ErrorLevel: c.LogFile,
				},
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger
}

// Logger returns a formatted logrus Entry, with prefix set to "network".
func (c *Config) Logger() *logrus.Entry {
	return c.BaseLogger().WithField("prefix", "network")
}

// DefaultStagingRoot returns the directory holding the fixed external files
// consumed by a session: drivers, authority templates and the RPC proxy
// launcher. It can be overridden with the NETRUNNER_STAGING environment
// variable.
func DefaultStagingRoot() string {
	if root := os.Getenv("NETRUNNER_STAGING"); root != "" {
		return root
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "staging")
	}
	return "staging"
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
