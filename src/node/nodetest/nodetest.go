// Package nodetest provides an in-process node.Node for tests of the network
// orchestration.
package nodetest

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/node"
)

// Node is a node.Node which runs no process. Its behaviour is set through its
// exported fields before it is used.
type Node struct {
	// NeverReady makes WaitUntilRunning block for the whole timeout and
	// return false.
	NeverReady bool

	// ReadyAfter delays the readiness of the node.
	ReadyAfter time.Duration

	ConfigureErr  error
	DependencyErr error
	StartErr      error
	ShutdownErr   error

	spec node.Spec
	dir  string

	mu          sync.Mutex
	configured  int
	depsStarted int
	started     int
	shutdowns   int
}

// New returns a Node for spec rooted at dir.
func New(spec node.Spec, dir string) *Node {
	return &Node{spec: spec.Clone(), dir: dir}
}

// Name implements the node.Node interface.
func (n *Node) Name() string { return n.spec.Name }

// Spec implements the node.Node interface.
func (n *Node) Spec() node.Spec { return n.spec.Clone() }

// Dir implements the node.Node interface.
func (n *Node) Dir() string { return n.dir }

// Configure writes a node configuration and a log file, like a real node
// would.
func (n *Node) Configure() error {
	n.mu.Lock()
	n.configured++
	n.mu.Unlock()

	if n.ConfigureErr != nil {
		return n.ConfigureErr
	}

	if err := os.MkdirAll(filepath.Join(n.dir, "logs"), 0755); err != nil {
		return err
	}

	conf := fmt.Sprintf("myLegalName = \"O=%s,L=London,C=GB\"\n", n.spec.Name)
	return ioutil.WriteFile(filepath.Join(n.dir, config.DefaultNodeConfFile), []byte(conf), 0644)
}

// StartDependencies implements the node.Node interface.
func (n *Node) StartDependencies() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.depsStarted++
	return n.DependencyErr
}

// Start implements the node.Node interface.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started++
	return n.StartErr
}

// WaitUntilRunning implements the node.Node interface.
func (n *Node) WaitUntilRunning(timeout time.Duration) bool {
	n.mu.Lock()
	started := n.started > 0
	n.mu.Unlock()

	if !started {
		return false
	}

	if n.NeverReady {
		time.Sleep(timeout)
		return false
	}

	if n.ReadyAfter > timeout {
		time.Sleep(timeout)
		return false
	}

	time.Sleep(n.ReadyAfter)
	return true
}

// Shutdown implements the node.Node interface.
func (n *Node) Shutdown() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shutdowns++
	return n.ShutdownErr
}

// Configured returns the number of Configure calls.
func (n *Node) Configured() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.configured
}

// DependenciesStarted returns the number of StartDependencies calls.
func (n *Node) DependenciesStarted() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.depsStarted
}

// Started returns the number of Start calls.
func (n *Node) Started() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.started
}

// Shutdowns returns the number of Shutdown calls.
func (n *Node) Shutdowns() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shutdowns
}

// Registry builds Nodes through its Factory and keeps them by name.
type Registry struct {
	// Setup, when set, is applied to every Node before it is returned.
	Setup func(n *Node)

	mu    sync.Mutex
	nodes map[string]*Node
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*Node)}
}

// Factory returns a node.Factory registering the Nodes it builds.
func (r *Registry) Factory() node.Factory {
	return func(spec node.Spec, dir string) (node.Node, error) {
		n := New(spec, dir)
		if r.Setup != nil {
			r.Setup(n)
		}

		r.mu.Lock()
		r.nodes[spec.Name] = n
		r.order = append(r.order, spec.Name)
		r.mu.Unlock()

		return n, nil
	}
}

// Get returns the Node built for name, or nil.
func (r *Registry) Get(name string) *Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes[name]
}

// Order returns the names of the built Nodes in creation order.
func (r *Registry) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}
