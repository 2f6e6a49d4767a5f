package network

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/flashtony2005/corda/src/bootstrap"
	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/journal"
	"github.com/flashtony2005/corda/src/network/state"
	"github.com/flashtony2005/corda/src/node"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyTopology is returned by Generate when no node was added.
	ErrEmptyTopology = errors.New("network: empty topology")

	// ErrTargetExists is returned by Generate when the target directory
	// already holds files.
	ErrTargetExists = errors.New("network: target directory is not empty")

	// ErrUnnamedNode is returned by Generate when a node has no name.
	ErrUnnamedNode = errors.New("network: node without a name")
)

// Builder accumulates the topology of a network. A Builder can generate any
// number of networks; each gets its own copy of the topology.
type Builder struct {
	conf         *config.Config
	specs        map[string]node.Spec
	distribution node.Distribution
	timeout      time.Duration
	targetDir    string
	factory      node.Factory
	strategy     bootstrap.Strategy
}

// NewBuilder returns a Builder using conf.
func NewBuilder(conf *config.Config) *Builder {
	return &Builder{
		conf:    conf,
		specs:   make(map[string]node.Spec),
		timeout: conf.Timeout,
	}
}

// WithNode adds a node to the topology. A node with the same name is
// replaced.
func (b *Builder) WithNode(spec node.Spec) *Builder {
	b.specs[spec.Name] = spec.Clone()
	return b
}

// WithDistribution sets the distribution of the nodes added without one, and
// selects the bootstrap strategy.
func (b *Builder) WithDistribution(d node.Distribution) *Builder {
	b.distribution = d
	return b
}

// WithTimeout sets the readiness and keep-alive timeout.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

// WithTargetDir overrides the configured target directory.
func (b *Builder) WithTargetDir(dir string) *Builder {
	b.targetDir = dir
	return b
}

// WithNodeFactory sets how nodes are created. It defaults to process nodes.
func (b *Builder) WithNodeFactory(f node.Factory) *Builder {
	b.factory = f
	return b
}

// WithStrategy overrides the bootstrap strategy selected from the
// distribution.
func (b *Builder) WithStrategy(s bootstrap.Strategy) *Builder {
	b.strategy = s
	return b
}

// Topology returns a copy of the node specifications, with the default
// distribution applied.
func (b *Builder) Topology() map[string]node.Spec {
	topology := make(map[string]node.Spec, len(b.specs))
	for name, spec := range b.specs {
		spec = spec.Clone()
		if spec.Distribution.IsZero() {
			spec.Distribution = b.distribution
		}
		topology[name] = spec
	}
	return topology
}

// Generate creates the session directory and the nodes, then bootstraps the
// network. If the bootstrap fails, the failed Network is returned along with
// the error so that it can be cleaned up.
func (b *Builder) Generate() (*Network, error) {
	topology := b.Topology()
	if len(topology) == 0 {
		return nil, ErrEmptyTopology
	}
	if _, ok := topology[""]; ok {
		return nil, ErrUnnamedNode
	}

	conf := *b.conf
	if b.targetDir != "" {
		conf.TargetDir = b.targetDir
	}

	dir, err := filepath.Abs(conf.TargetDir)
	if err != nil {
		return nil, err
	}
	conf.TargetDir = dir

	if err := createTargetDir(dir); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(topology))
	for name := range topology {
		names = append(names, name)
	}
	sort.Strings(names)

	factory := b.factory
	if factory == nil {
		factory = node.ProcessFactory(&conf, nil)
	}

	nodes := make(map[string]node.Node, len(topology))
	for _, name := range names {
		n, err := factory(topology[name], filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("creating node %s: %w", name, err)
		}
		nodes[name] = n
	}

	id := uuid.New().String()
	logger := conf.Logger().WithField("session", id[:8])

	n := &Network{
		id:       id,
		dir:      dir,
		conf:     &conf,
		timeout:  b.timeout,
		topology: topology,
		nodes:    nodes,
		names:    names,
		logger:   logger,
		signal:   NewSignal(),
	}

	n.journal, err = journal.Open(conf.JournalDir(), id, logger.WithField("prefix", "journal"))
	if err != nil {
		logger.WithError(err).Warn("Cannot open journal, continuing without it")
		n.journal = nil
	}
	n.journal.Recordf(journal.KindState, "network", "%s, %d nodes in %s", state.Created, len(names), dir)

	n.strategy = b.strategy
	if n.strategy == nil {
		n.strategy = bootstrap.Select(b.selectionDistribution(topology, names))
	}

	if err := n.bootstrap(); err != nil {
		return n, err
	}

	return n, nil
}

// selectionDistribution returns the distribution choosing the strategy: the
// builder's, or the one of the first node.
func (b *Builder) selectionDistribution(topology map[string]node.Spec, names []string) node.Distribution {
	if !b.distribution.IsZero() {
		return b.distribution
	}
	return topology[names[0]].Distribution
}

func createTargetDir(dir string) error {
	entries, err := ioutil.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return err
	case len(entries) > 0:
		return fmt.Errorf("%w: %s", ErrTargetExists, dir)
	}

	return os.MkdirAll(dir, 0755)
}

func (n *Network) bootstrap() error {
	logger := n.logger.WithFields(logrus.Fields{
		"strategy": n.strategy.Name(),
		"nodes":    len(n.names),
	})
	logger.Info("Bootstrapping network")

	start := time.Now()

	res, err := n.strategy.Bootstrap(bootstrap.Plan{
		Dir:     n.dir,
		Nodes:   n.nodeList(),
		Config:  n.conf,
		Logger:  n.logger,
		Journal: n.journal,
	})
	if err != nil {
		n.fail(err)
		return err
	}

	if res != nil {
		n.services = res.Services
	}

	n.transition(state.Bootstrapped)
	logger.WithField("duration", time.Since(start)).Info("Network bootstrapped")

	return nil
}
