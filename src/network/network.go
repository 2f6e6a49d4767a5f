package network

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flashtony2005/corda/src/bootstrap"
	"github.com/flashtony2005/corda/src/command"
	"github.com/flashtony2005/corda/src/common"
	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/journal"
	"github.com/flashtony2005/corda/src/logscan"
	"github.com/flashtony2005/corda/src/network/state"
	"github.com/flashtony2005/corda/src/node"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrSessionStopped is returned when a stopped network is started.
var ErrSessionStopped = errors.New("network: session stopped")

// Network is a test network session. It is created by Builder.Generate, which
// also bootstraps it.
type Network struct {
	id       string
	dir      string
	conf     *config.Config
	timeout  time.Duration
	topology map[string]node.Spec
	nodes    map[string]node.Node
	names    []string
	strategy bootstrap.Strategy
	services []*command.Command
	journal  *journal.Journal
	logger   *logrus.Entry

	state  state.Manager
	signal *Signal

	failMu      sync.Mutex
	stopOnce    sync.Once
	cleanupOnce sync.Once

	proxyMu    sync.Mutex
	rpcProxy   *command.Command
	rpcProxyUp bool
}

// ID returns the unique identifier of the session.
func (n *Network) ID() string { return n.id }

// Dir returns the session directory.
func (n *Network) Dir() string { return n.dir }

// State returns the current state of the session.
func (n *Network) State() state.State { return n.state.GetState() }

// HasError reports whether the session ever failed.
func (n *Network) HasError() bool { return n.state.HasFailed() }

// Err returns the first failure of the session, or nil.
func (n *Network) Err() error { return n.state.Failure() }

// Journal returns the session journal. It is nil if the journal could not be
// opened.
func (n *Network) Journal() *journal.Journal { return n.journal }

// Strategy returns the bootstrap strategy of the session.
func (n *Network) Strategy() bootstrap.Strategy { return n.strategy }

// Node returns the node called name.
func (n *Network) Node(name string) (node.Node, bool) {
	nd, ok := n.nodes[name]
	return nd, ok
}

// Nodes returns the names of the nodes, sorted.
func (n *Network) Nodes() []string {
	return append([]string(nil), n.names...)
}

// Topology returns a copy of the node specifications of the session.
func (n *Network) Topology() map[string]node.Spec {
	topology := make(map[string]node.Spec, len(n.topology))
	for name, spec := range n.topology {
		topology[name] = spec.Clone()
	}
	return topology
}

func (n *Network) nodeList() []node.Node {
	list := make([]node.Node, 0, len(n.names))
	for _, name := range n.names {
		list = append(list, n.nodes[name])
	}
	return list
}

func (n *Network) transition(to state.State) bool {
	from, ok := n.state.Transition(to)
	if ok {
		n.logger.WithFields(logrus.Fields{
			"from": from,
			"to":   to,
		}).Debug("State transition")
		n.journal.Recordf(journal.KindState, "network", "%s -> %s", from, to)
	}
	return ok
}

// fail records err as a failure of the session. The first failure is logged
// along with every error marker found in the session logs.
func (n *Network) fail(err error) {
	n.failMu.Lock()
	first := !n.state.HasFailed()
	from := n.state.GetState()
	moved := n.state.Fail(err)
	n.failMu.Unlock()

	if moved {
		n.journal.Recordf(journal.KindState, "network", "%s -> %s", from, state.Failed)
	}

	if !first {
		n.logger.WithError(err).Debug("Additional failure")
		return
	}

	n.logger.WithError(err).Error("Network failed")
	n.journal.Recordf(journal.KindFailure, "network", "%v", err)

	matches := logscan.New(n.dir).Skip(config.DefaultJournalDir).Report(n.logger, logscan.MarkerPattern(n.conf.ErrorMarker))
	if matches > 0 {
		n.logger.WithField("matches", matches).Error("Error markers found under session directory")
	}
}

// Start starts every node, in name order, then the RPC proxy if a node needs
// one. Starting a failed, started or running network does nothing.
func (n *Network) Start() error {
	if n.HasError() {
		n.logger.Debug("Network failed, not starting")
		return nil
	}

	switch n.state.GetState() {
	case state.Started, state.Running:
		return nil
	case state.Stopped:
		return ErrSessionStopped
	}

	if !n.transition(state.Started) {
		return nil
	}

	for _, name := range n.names {
		nd := n.nodes[name]

		n.logger.WithField("node", name).Info("Starting node")

		if err := nd.Start(); err != nil {
			netErr := common.NewNetworkErr(common.StartFailure, name, err)
			n.fail(netErr)
			return netErr
		}

		n.journal.Recordf(journal.KindNode, name, "started")
	}

	if n.needsRPCProxy() {
		if err := n.startRPCProxy(); err != nil {
			netErr := common.NewNetworkErr(common.StartFailure, "rpc proxy", err)
			n.fail(netErr)
			return netErr
		}
	}

	return nil
}

// WaitUntilRunning waits for every node concurrently, each for at most
// timeout. A zero timeout uses the session timeout. If a node does not report
// running, the session fails, is kept alive until it is signaled and is
// stopped.
func (n *Network) WaitUntilRunning(timeout time.Duration) bool {
	if n.HasError() {
		return false
	}

	switch n.state.GetState() {
	case state.Running:
		return true
	case state.Started:
	default:
		n.logger.WithField("state", n.State()).Warn("Network not started")
		return false
	}

	if timeout <= 0 {
		timeout = n.timeout
	}

	start := time.Now()

	var failed int32
	var g errgroup.Group

	for _, name := range n.names {
		name, nd := name, n.nodes[name]

		g.Go(func() error {
			if !nd.WaitUntilRunning(timeout) {
				atomic.AddInt32(&failed, 1)
				n.logger.WithField("node", name).Error("Node did not report running")
				n.journal.Recordf(journal.KindNode, name, "not running after %s", timeout)
				return fmt.Errorf("%s not running after %s", name, timeout)
			}

			n.journal.Recordf(journal.KindNode, name, "running")
			return nil
		})
	}

	err := g.Wait()

	if atomic.LoadInt32(&failed) == 0 {
		if !n.transition(state.Running) {
			return false
		}
		n.logger.WithField("duration", time.Since(start)).Info("Network running")
		return true
	}

	n.fail(common.NewNetworkErr(common.LivenessFailure,
		fmt.Sprintf("%d of %d nodes", failed, len(n.names)), err))
	n.Signal()
	n.KeepAlive(timeout)

	return false
}

// KeepAlive blocks until the network is signaled or timeout elapses, then
// stops it. A zero timeout uses the session timeout. It returns whether the
// network was signaled.
func (n *Network) KeepAlive(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = n.timeout
	}

	signaled := n.signal.Wait(timeout)
	if signaled {
		n.logger.Info("Termination signal received")
	} else {
		n.logger.WithField("timeout", timeout).Info("Keep-alive expired")
	}

	n.Stop()

	return signaled
}

// Signal fires the termination signal, releasing KeepAlive.
func (n *Network) Signal() {
	if !n.signal.Fired() {
		n.journal.Recordf(journal.KindSignal, "network", "fired")
	}
	n.signal.Fire()
}

// Signaled reports whether the termination signal has fired.
func (n *Network) Signaled() bool {
	return n.signal.Fired()
}

// SignalFailure reports a failure detected by the caller. The network fails,
// is signaled and stopped, and the failure is returned so that the caller can
// propagate it.
func (n *Network) SignalFailure(message string, cause error) error {
	err := common.NewNetworkErr(common.SignaledFailure, message, cause)

	n.fail(err)
	n.Signal()
	n.KeepAlive(n.timeout)

	return err
}

// Stop shuts down every node, in name order, and the services started by the
// bootstrap. Only the first call has an effect. Stop does not remove any file.
func (n *Network) Stop() {
	n.stopOnce.Do(func() {
		from, _ := n.state.Transition(state.Stopped)
		n.logger.WithField("from", from).Info("Stopping network")

		for _, name := range n.names {
			if err := n.nodes[name].Shutdown(); err != nil {
				n.logger.WithError(err).WithField("node", name).Warn("Node shutdown failed")
				n.journal.Recordf(journal.KindNode, name, "shutdown failed: %v", err)
				continue
			}
			n.journal.Recordf(journal.KindNode, name, "stopped")
		}

		for _, s := range n.services {
			s.Interrupt()
			s.WaitFor()
			n.journal.Recordf(journal.KindCommand, s.String(), "stopped")
		}

		n.journal.Recordf(journal.KindState, "network", "%s -> %s", from, state.Stopped)

		if err := n.journal.Close(); err != nil {
			n.logger.WithError(err).Warn("Cannot close journal")
		}

		n.logger.Info("Network stopped")
	})
}

// Close stops the network and cleans up the session directory.
func (n *Network) Close() error {
	n.Stop()
	n.Cleanup()
	return nil
}

// Use starts the network, runs fn and stops the network, even if fn panics.
func (n *Network) Use(fn func(*Network) error) error {
	defer n.Stop()

	if err := n.Start(); err != nil {
		return err
	}

	return fn(n)
}

// Services returns the long-running processes started by the bootstrap.
func (n *Network) Services() []*command.Command {
	return append([]*command.Command(nil), n.services...)
}
