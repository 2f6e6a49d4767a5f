package network

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flashtony2005/corda/src/command"
	"github.com/flashtony2005/corda/src/common"
	"github.com/flashtony2005/corda/src/journal"
	"github.com/flashtony2005/corda/src/node"
	"github.com/sirupsen/logrus"
)

// needsRPCProxy reports whether a node of the topology requires the RPC
// proxy.
func (n *Network) needsRPCProxy() bool {
	_, ok := n.rpcProxyDistribution()
	return ok
}

// rpcProxyDistribution returns the distribution of the first node, in name
// order, which requires the RPC proxy.
func (n *Network) rpcProxyDistribution() (node.Distribution, bool) {
	for _, name := range n.names {
		if spec := n.topology[name]; spec.RPCProxy {
			return spec.Distribution, true
		}
	}
	return node.Distribution{}, false
}

// startRPCProxy copies the RPC proxy launcher into the distribution and runs
// it. The launcher starts the proxy in the background and records its process
// id in the configured pid file.
func (n *Network) startRPCProxy() error {
	n.proxyMu.Lock()
	defer n.proxyMu.Unlock()

	if n.rpcProxy != nil {
		return nil
	}

	dist, _ := n.rpcProxyDistribution()
	launcher := filepath.Join(dist.InstallPath, filepath.Base(n.conf.RPCProxyScript))

	if err := common.CopyFile(n.conf.RPCProxyScript, launcher, 0755); err != nil {
		return err
	}

	logger := n.logger.WithField("prefix", "rpc-proxy")

	c := command.New(launcher, []string{dist.InstallPath, n.conf.RPCProxyPIDFile},
		command.WithDir(dist.InstallPath),
		command.WithTimeout(n.conf.CommandTimeout),
		command.WithGracePeriod(n.conf.GracePeriod),
		command.WithOutputFile(filepath.Join(n.dir, "logs", "rpc-proxy.log")),
		command.WithLogger(logger),
	)

	// the launcher may have backgrounded the proxy before failing
	n.rpcProxy = c

	if err := command.RunWatched(c, command.ContainsMarker(n.conf.ErrorMarker)); err != nil {
		return err
	}

	n.rpcProxyUp = true
	n.journal.Recordf(journal.KindCommand, "rpc proxy", "started from %s", launcher)
	logger.WithField("version", dist.Version).Info("RPC proxy started")

	return nil
}

// RPCProxyRunning reports whether the RPC proxy was started and not stopped
// yet.
func (n *Network) RPCProxyRunning() bool {
	n.proxyMu.Lock()
	defer n.proxyMu.Unlock()
	return n.rpcProxyUp
}

// stopRPCProxy kills the launcher and the proxy process recorded in the pid
// file, then removes the pid file. It runs whenever a launch was attempted,
// successful or not. Failures are logged.
func (n *Network) stopRPCProxy() {
	n.proxyMu.Lock()
	defer n.proxyMu.Unlock()

	if n.rpcProxy == nil {
		return
	}

	n.rpcProxy.Kill()
	n.rpcProxy = nil
	n.rpcProxyUp = false

	pidFile := n.conf.RPCProxyPIDFile
	logger := n.logger.WithFields(logrus.Fields{
		"prefix":   "rpc-proxy",
		"pid_file": pidFile,
	})

	data, err := ioutil.ReadFile(pidFile)
	if os.IsNotExist(err) {
		logger.Warn("No RPC proxy pid file")
		return
	}
	if err != nil {
		logger.WithError(err).Warn("Cannot read RPC proxy pid file")
		return
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		logger.WithError(err).Warn("Invalid RPC proxy pid file")
	} else if err := command.KillPID(pid); err != nil {
		logger.WithError(err).WithField("pid", pid).Warn("Cannot kill RPC proxy")
	} else {
		logger.WithField("pid", pid).Info("RPC proxy stopped")
	}

	if err := os.Remove(pidFile); err != nil {
		logger.WithError(err).Warn("Cannot remove RPC proxy pid file")
	}
}
