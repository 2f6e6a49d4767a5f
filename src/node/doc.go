// Package node defines the boundary between a test network and the node
// processes it supervises.
//
// The network treats every node as an opaque Node: it can be configured, have
// its dependency services started, be started, be waited on until it reports
// that it is running, and be shut down. How a node writes its configuration,
// which dependency services it needs and how it reports readiness belong to
// the Node implementation.
//
// ProcessNode is the implementation used outside of tests. It writes a TOML
// node.conf into the node directory, runs the node binary of its distribution
// as an external command, and considers the node running once a readiness
// marker appears in its output.
package node
