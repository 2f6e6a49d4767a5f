package network

import (
	"os"
	"path/filepath"

	"github.com/flashtony2005/corda/src/common"
	"github.com/flashtony2005/corda/src/config"
	"github.com/sirupsen/logrus"
)

// Node artifacts removed by a selective cleanup. Logs and the node
// configuration are kept.
var (
	ephemeralDirs = []string{
		"additional-node-infos",
		"artemis",
		"certificates",
		"cordapps",
		"shell-commands",
		"sshkeys",
	}

	ephemeralFiles = []string{
		"corda.jar",
		"network-parameters",
		"persistence.mv.db",
		"process-id",
	}

	nodeInfoPattern = "nodeInfo-*"
)

// Cleanup stops the network and the RPC proxy, then removes the files of the
// session. The whole directory goes if the session never failed or if
// AlwaysClean is set. Otherwise only the ephemeral node artifacts are removed,
// and logs, node configurations and the journal are left for inspection.
// Cleanup runs once and failures are only logged.
func (n *Network) Cleanup() {
	n.Stop()

	n.cleanupOnce.Do(func() {
		n.stopRPCProxy()

		if !n.HasError() || n.conf.AlwaysClean {
			n.logger.WithField("dir", n.dir).Info("Removing session directory")
			removeAll(n.logger, n.dir)
			return
		}

		n.logger.WithField("dir", n.dir).Info("Session failed, keeping logs")

		for _, name := range n.names {
			n.cleanNode(n.nodes[name].Dir())
		}

		removeAll(n.logger, filepath.Join(n.dir, config.DefaultLibsDir))
		removeAll(n.logger, filepath.Join(n.dir, config.DefaultCacheDir))
	})
}

func (n *Network) cleanNode(dir string) {
	for _, d := range ephemeralDirs {
		removeAll(n.logger, filepath.Join(dir, d))
	}

	for _, f := range ephemeralFiles {
		remove(n.logger, filepath.Join(dir, f))
	}

	infos, err := filepath.Glob(filepath.Join(dir, nodeInfoPattern))
	if err != nil {
		n.logger.WithError(err).WithField("dir", dir).Warn("Cannot list node info files")
		return
	}
	for _, f := range infos {
		remove(n.logger, f)
	}
}

func removeAll(logger *logrus.Entry, path string) {
	if err := os.RemoveAll(path); err != nil {
		logger.Warn(common.NewNetworkErr(common.CleanupFailure, path, err))
	}
}

func remove(logger *logrus.Entry, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn(common.NewNetworkErr(common.CleanupFailure, path, err))
	}
}
