package node

import "time"

// Node is the supervisor of a single node process.
type Node interface {
	// Name returns the unique name of the node in its topology.
	Name() string

	// Spec returns the specification the node was built from.
	Spec() Spec

	// Dir returns the node directory inside the session directory.
	Dir() string

	// Configure writes the node configuration into Dir.
	Configure() error

	// StartDependencies starts the services the node relies on, such as an
	// external database.
	StartDependencies() error

	// Start launches the node process. It does not wait for the node to be
	// ready.
	Start() error

	// WaitUntilRunning blocks until the node reports that it is running, the
	// process exits, or timeout elapses.
	WaitUntilRunning(timeout time.Duration) bool

	// Shutdown stops the node process and its dependencies.
	Shutdown() error
}

// Factory creates the Node for spec, rooted at dir.
type Factory func(spec Spec, dir string) (Node, error)
