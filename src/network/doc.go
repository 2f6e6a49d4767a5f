// Package network orchestrates ephemeral test networks.
//
// A Builder collects the node specifications of a topology and a default
// distribution. Generate creates the session directory, builds one node.Node
// per specification and runs the bootstrap strategy of the distribution
// (see package bootstrap). The resulting Network then moves through the
// states of package state:
//
//	Created -> Bootstrapped -> Started -> Running
//	                   \           \         \
//	                    +-----------+---------+--> Failed
//
// and ends Stopped. A failed session can only be stopped and cleaned up; a
// new one has to be generated to try again.
//
// Nodes are started one after the other, in name order, and waited for
// concurrently. When a node does not report running in time, the network
// records a liveness failure, fires its termination Signal and stops. A
// driving test reports its own failures through SignalFailure, and an
// external supervisor can release a KeepAlive wait with Signal.
//
// Stop never removes files. Close, or Cleanup, removes the session directory
// after a successful run, or only the ephemeral node artifacts after a failed
// one so that logs and the journal survive for inspection.
package network
