package bootstrap

import (
	"path/filepath"
	"sort"

	"github.com/flashtony2005/corda/src/command"
	"github.com/flashtony2005/corda/src/common"
	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/journal"
	"github.com/flashtony2005/corda/src/node"
	"github.com/sirupsen/logrus"
)

// Strategy prepares the shared network configuration for a set of nodes.
type Strategy interface {
	Name() string
	Bootstrap(p Plan) (*Result, error)
}

// Plan is the input of a Strategy.
type Plan struct {
	// Dir is the session directory.
	Dir string

	// Nodes of the topology. Strategies visit them in name order.
	Nodes []node.Node

	Config *config.Config
	Logger *logrus.Entry

	// Journal, when set, receives one entry per step.
	Journal *journal.Journal

	// Failure flags a failed step from its output. It defaults to the
	// configured error marker.
	Failure command.LinePredicate
}

// Result is the output of a Strategy.
type Result struct {
	// Services are long-running processes started by the strategy. The
	// session stops them when it stops.
	Services []*command.Command
}

// Select returns the strategy matching the type of dist.
func Select(dist node.Distribution) Strategy {
	if dist.Type == node.Authority {
		return &Authority{}
	}
	return &Local{}
}

func (p Plan) logger() *logrus.Entry {
	if p.Logger != nil {
		return p.Logger
	}
	return p.Config.Logger()
}

func (p Plan) failure() command.LinePredicate {
	if p.Failure != nil {
		return p.Failure
	}
	return command.ContainsMarker(p.Config.ErrorMarker)
}

func (p Plan) sortedNodes() []node.Node {
	nodes := append([]node.Node(nil), p.Nodes...)
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Name() < nodes[j].Name()
	})
	return nodes
}

// tool returns a Command running one bootstrap step, with its output appended
// to the bootstrap log of the session.
func (p Plan) tool(dir string, tool string, args ...string) *command.Command {
	return command.NewTool(p.Config.JavaPath, tool, args,
		command.WithDir(dir),
		command.WithTimeout(p.Config.CommandTimeout),
		command.WithGracePeriod(p.Config.GracePeriod),
		command.WithOutputFile(p.logFile()),
		command.WithLogger(p.logger()),
	)
}

// service returns a Command running a long-lived step. It has no timeout and
// lives until it is stopped.
func (p Plan) service(dir string, tool string, args ...string) *command.Command {
	return command.NewTool(p.Config.JavaPath, tool, args,
		command.WithDir(dir),
		command.WithGracePeriod(p.Config.GracePeriod),
		command.WithOutputFile(p.logFile()),
		command.WithLogger(p.logger()),
	)
}

// prepareNodes configures every node and starts its dependencies, stopping at
// the first failure.
func (p Plan) prepareNodes() error {
	for _, n := range p.sortedNodes() {
		if err := n.Configure(); err != nil {
			return common.NewNetworkErr(common.BootstrapFailure, n.Name(), err)
		}
		if err := n.StartDependencies(); err != nil {
			return common.NewNetworkErr(common.DependencyFailure, n.Name(), err)
		}
		p.Journal.Recordf(journal.KindNode, n.Name(), "configured")
	}
	return nil
}

// logFile is kept by selective cleanup, so failed steps can be diagnosed.
func (p Plan) logFile() string {
	return filepath.Join(p.Dir, "logs", "bootstrap.log")
}
