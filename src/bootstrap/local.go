package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flashtony2005/corda/src/command"
	"github.com/flashtony2005/corda/src/common"
	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/journal"
	"github.com/flashtony2005/corda/src/node"
	"github.com/sirupsen/logrus"
)

// Local bootstraps a network with the bootstrapping tool shipped with the
// node distributions.
type Local struct{}

// Name implements the Strategy interface.
func (l *Local) Name() string { return "local" }

// Bootstrap implements the Strategy interface.
func (l *Local) Bootstrap(p Plan) (*Result, error) {
	logger := p.logger().WithField("strategy", l.Name())

	if err := copyDrivers(p, logger); err != nil {
		return nil, common.NewNetworkErr(common.BootstrapFailure, "drivers", err)
	}

	if err := p.prepareNodes(); err != nil {
		return nil, err
	}

	dist, ok := newestLocal(p.Nodes)
	if !ok {
		logger.Warn("No local distribution in topology, skipping bootstrap")
		return &Result{}, nil
	}

	tool := dist.Bootstrapper()
	if _, err := os.Stat(tool); err != nil {
		logger.WithFields(logrus.Fields{
			"tool":    tool,
			"version": dist.Version,
		}).Warn("Bootstrapping tool not found, continuing without bootstrap")
		p.Journal.Recordf(journal.KindBootstrap, "bootstrapper", "skipped: %s not found", tool)
		return &Result{}, nil
	}

	logger.WithFields(logrus.Fields{
		"tool":    tool,
		"version": dist.Version,
	}).Info("Bootstrapping network")

	c := p.tool(p.Dir, tool, "--dir", p.Dir, "--no-copy")
	if err := command.RunWatched(c, p.failure()); err != nil {
		p.Journal.Recordf(journal.KindBootstrap, "bootstrapper", "failed: %v", err)
		return nil, common.NewNetworkErr(common.BootstrapFailure, "bootstrapper", err)
	}

	p.Journal.Recordf(journal.KindBootstrap, "bootstrapper", "version %s", dist.Version)

	return &Result{}, nil
}

// copyDrivers copies the driver directory into the session. A missing driver
// directory is not an error.
func copyDrivers(p Plan, logger *logrus.Entry) error {
	src := p.Config.DriverDir
	if src == "" {
		return nil
	}

	if _, err := os.Stat(src); os.IsNotExist(err) {
		logger.WithField("dir", src).Warn("Driver directory not found, no drivers copied")
		return nil
	}

	if err := common.CopyDir(src, filepath.Join(p.Dir, config.DefaultLibsDir)); err != nil {
		return fmt.Errorf("copying drivers from %s: %w", src, err)
	}

	return nil
}

// newestLocal returns the distribution with the highest version among the
// nodes which are not provisioned by an authority.
func newestLocal(nodes []node.Node) (node.Distribution, bool) {
	var best node.Distribution
	found := false

	for _, n := range nodes {
		d := n.Spec().Distribution
		if d.Type == node.Authority {
			continue
		}
		if !found || node.CompareVersions(d.Version, best.Version) > 0 {
			best = d
			found = true
		}
	}

	return best, found
}
