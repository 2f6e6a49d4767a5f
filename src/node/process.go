package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/flashtony2005/corda/src/command"
	"github.com/flashtony2005/corda/src/config"
	"github.com/sirupsen/logrus"
)

// ErrNotStarted is returned when a node is waited on before Start.
var ErrNotStarted = errors.New("node: not started")

// ErrUnsupportedDatabase is returned when a node needs a database service and
// no DependencyStarter was provided.
var ErrUnsupportedDatabase = errors.New("node: no dependency starter for database")

// DependencyStarter starts and stops the services a node relies on.
type DependencyStarter interface {
	Start(spec Spec, dir string) error
	Stop(spec Spec) error
}

// nodeConf is the subset of the node configuration owned by the network. The
// node fills in everything else with its own defaults.
type nodeConf struct {
	MyLegalName          string         `toml:"myLegalName"`
	DevMode              bool           `toml:"devMode"`
	CompatibilityZoneURL string         `toml:"compatibilityZoneURL,omitempty"`
	Notary               *notaryConf    `toml:"notary,omitempty"`
	IssuableCurrencies   []string       `toml:"issuableCurrencies,omitempty"`
	DataSource           dataSourceConf `toml:"dataSourceProperties"`
}

type notaryConf struct {
	Validating bool `toml:"validating"`
}

type dataSourceConf struct {
	Type string `toml:"dataSourceClassName"`
	URL  string `toml:"dataSource.url"`
}

// ProcessNode runs a node as an external process.
type ProcessNode struct {
	spec   Spec
	dir    string
	conf   *config.Config
	deps   DependencyStarter
	logger *logrus.Entry

	mu    sync.Mutex
	cmd   *command.Command
	ready <-chan struct{}
	down  bool
}

// NewProcessNode returns a ProcessNode for spec rooted at dir. deps may be nil
// when every node uses an embedded database.
func NewProcessNode(spec Spec, dir string, conf *config.Config, deps DependencyStarter) *ProcessNode {
	return &ProcessNode{
		spec:   spec.Clone(),
		dir:    dir,
		conf:   conf,
		deps:   deps,
		logger: conf.Logger().WithField("node", spec.Name),
	}
}

// ProcessFactory returns a Factory building ProcessNodes.
func ProcessFactory(conf *config.Config, deps DependencyStarter) Factory {
	return func(spec Spec, dir string) (Node, error) {
		return NewProcessNode(spec, dir, conf, deps), nil
	}
}

// Name implements the Node interface.
func (n *ProcessNode) Name() string { return n.spec.Name }

// Spec implements the Node interface.
func (n *ProcessNode) Spec() Spec { return n.spec.Clone() }

// Dir implements the Node interface.
func (n *ProcessNode) Dir() string { return n.dir }

// LogDir returns the directory holding the node logs.
func (n *ProcessNode) LogDir() string {
	return filepath.Join(n.dir, "logs")
}

// Configure writes node.conf into the node directory.
func (n *ProcessNode) Configure() error {
	if err := os.MkdirAll(n.LogDir(), 0755); err != nil {
		return err
	}

	nc := nodeConf{
		MyLegalName:        fmt.Sprintf("O=%s,L=London,C=GB", n.spec.Name),
		DevMode:            true,
		IssuableCurrencies: n.spec.IssuableCurrencies,
		DataSource:         dataSource(n.spec, n.dir),
	}

	if n.spec.Distribution.Type == Authority {
		nc.CompatibilityZoneURL = n.spec.CompatibilityZoneURL
	}

	if n.spec.IsNotary() {
		nc.Notary = &notaryConf{Validating: n.spec.Notary == ValidatingNotary}
	}

	f, err := os.Create(filepath.Join(n.dir, config.DefaultNodeConfFile))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(nc); err != nil {
		return fmt.Errorf("writing %s configuration: %w", n.spec.Name, err)
	}

	n.logger.WithField("dir", n.dir).Debug("Configured")

	return nil
}

func dataSource(spec Spec, dir string) dataSourceConf {
	switch spec.Database {
	case Postgres:
		return dataSourceConf{Type: "org.postgresql.ds.PGSimpleDataSource", URL: "jdbc:postgresql://localhost:5432/" + spec.Name}
	case SQLServer:
		return dataSourceConf{Type: "com.microsoft.sqlserver.jdbc.SQLServerDataSource", URL: "jdbc:sqlserver://localhost:1433;databaseName=" + spec.Name}
	case Oracle:
		return dataSourceConf{Type: "oracle.jdbc.pool.OracleDataSource", URL: "jdbc:oracle:thin:@localhost:1521:" + spec.Name}
	default:
		return dataSourceConf{Type: "org.h2.jdbcx.JdbcDataSource", URL: "jdbc:h2:file:" + filepath.Join(dir, "persistence")}
	}
}

// StartDependencies starts the database service of the node, if it needs one.
func (n *ProcessNode) StartDependencies() error {
	if n.spec.Database.Embedded() {
		return nil
	}
	if n.deps == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedDatabase, n.spec.Database)
	}
	return n.deps.Start(n.spec, n.dir)
}

// binary returns the node binary copied into the node directory by the
// bootstrapping tool, or the distribution's one.
func (n *ProcessNode) binary() string {
	local := filepath.Join(n.dir, NodeBinaryFile)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	return n.spec.Distribution.NodeBinary()
}

// Start launches the node process.
func (n *ProcessNode) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cmd != nil {
		return nil
	}

	cmd := command.NewTool(n.conf.JavaPath, n.binary(),
		[]string{"--base-directory", n.dir, "--no-local-shell"},
		command.WithDir(n.dir),
		command.WithGracePeriod(n.conf.GracePeriod),
		command.WithOutputFile(filepath.Join(n.LogDir(), "node-stdout.log")),
		command.WithLogger(n.logger),
	)

	n.ready = command.Expect(cmd, command.ContainsMarker(n.conf.ReadyMarker))

	if err := cmd.Start(); err != nil {
		return err
	}

	n.cmd = cmd

	n.logger.WithField("pid", cmd.PID()).Info("Node started")

	return nil
}

// WaitUntilRunning implements the Node interface.
func (n *ProcessNode) WaitUntilRunning(timeout time.Duration) bool {
	n.mu.Lock()
	cmd, ready := n.cmd, n.ready
	n.mu.Unlock()

	if cmd == nil {
		n.logger.Warn(ErrNotStarted)
		return false
	}

	if !command.AwaitLine(cmd, ready, timeout) {
		n.logger.WithField("timeout", timeout).Warn("Node did not report running")
		return false
	}

	n.logger.Info("Node running")
	return true
}

// Shutdown interrupts the node process and waits for it to exit, then stops
// its dependencies. Calling it more than once has no effect.
func (n *ProcessNode) Shutdown() error {
	n.mu.Lock()
	if n.down {
		n.mu.Unlock()
		return nil
	}
	n.down = true
	cmd := n.cmd
	n.mu.Unlock()

	if cmd != nil {
		cmd.Interrupt()
		cmd.WaitFor()
		n.logger.Info("Node stopped")
	}

	if n.deps != nil && !n.spec.Database.Embedded() {
		return n.deps.Stop(n.spec)
	}

	return nil
}
