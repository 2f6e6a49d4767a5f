package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/flashtony2005/corda/src/command"
	"github.com/flashtony2005/corda/src/common"
	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/journal"
	"github.com/flashtony2005/corda/src/node"
	"github.com/sirupsen/logrus"
)

// Authority tool modes.
const (
	RootKeygenMode = "ROOT_KEYGEN"
	CAKeygenMode   = "CA_KEYGEN"
)

// Files produced in the authority working directory.
const (
	RootTrustStoreFile = "network-root-truststore.jks"
	NotaryNodeInfoFile = "notary-node-info"
	nodeInfoGlob       = "nodeInfo-*"
)

// ErrNoNotary is returned when an authority network has no notary to
// register.
var ErrNoNotary = errors.New("bootstrap: topology has no notary")

// Authority bootstraps a network through a provisioning authority.
type Authority struct{}

// Name implements the Strategy interface.
func (a *Authority) Name() string { return "authority" }

// authorityRun holds the state of one authority bootstrap.
type authorityRun struct {
	Plan
	logger   *logrus.Entry
	authTool string
	workDir  string
	notary   node.Node
}

// Bootstrap implements the Strategy interface. The steps run in order and the
// first failure aborts the bootstrap.
func (a *Authority) Bootstrap(p Plan) (*Result, error) {
	notary, err := findNotary(p.Nodes)
	if err != nil {
		return nil, common.NewNetworkErr(common.BootstrapFailure, "authority", err)
	}

	r := &authorityRun{
		Plan:     p,
		logger:   p.logger().WithField("strategy", a.Name()),
		authTool: notary.Spec().Distribution.AuthorityTool(),
		workDir:  p.Config.AuthorityWorkDir,
		notary:   notary,
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"reference configuration", r.copyConfig},
		{"nodes", r.prepareNodes},
		{"root keygen", func() error { return r.keygen(RootKeygenMode) }},
		{"ca keygen", func() error { return r.keygen(CAKeygenMode) }},
		{"registration", r.register},
		{"node info", r.nodeInfo},
		{"network parameters", r.networkParameters},
	}

	for _, s := range steps {
		r.logger.WithField("step", s.name).Info("Authority bootstrap step")

		if err := s.fn(); err != nil {
			r.Journal.Recordf(journal.KindBootstrap, s.name, "failed: %v", err)
			if _, ok := err.(common.NetworkErr); ok {
				return nil, err
			}
			return nil, common.NewNetworkErr(common.BootstrapFailure, s.name, err)
		}

		r.Journal.Recordf(journal.KindBootstrap, s.name, "done")
	}

	service, err := r.startService()
	if err != nil {
		r.Journal.Recordf(journal.KindBootstrap, "authority service", "failed: %v", err)
		return nil, common.NewNetworkErr(common.BootstrapFailure, "authority service", err)
	}

	r.Journal.Recordf(journal.KindBootstrap, "authority service", "running, pid %d", service.PID())

	return &Result{Services: []*command.Command{service}}, nil
}

// findNotary returns the first notary node in name order.
func findNotary(nodes []node.Node) (node.Node, error) {
	sorted := append([]node.Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name() < sorted[j].Name()
	})

	for _, n := range sorted {
		if n.Spec().IsNotary() {
			return n, nil
		}
	}

	return nil, ErrNoNotary
}

func (r *authorityRun) copyConfig() error {
	src := r.Config.AuthorityConfigDir
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("reference configuration: %w", err)
	}
	return common.CopyDir(src, r.workDir)
}

func (r *authorityRun) keygen(mode string) error {
	c := r.tool(r.workDir, r.authTool,
		"--mode", mode,
		"--config-file", config.DefaultNodeConfFile,
		"--trust-store-password", r.Config.TrustStorePassword,
	)
	return command.RunWatched(c, r.failure())
}

// register starts the authority service for the duration of the notary
// registration.
func (r *authorityRun) register() error {
	service, err := r.startService()
	if err != nil {
		return err
	}
	defer func() {
		service.Interrupt()
		service.WaitFor()
		r.logger.Debug("Registration service stopped")
	}()

	dir := r.notary.Dir()
	c := r.tool(dir, r.notary.Spec().Distribution.NodeBinary(),
		"--initial-registration",
		"--network-root-truststore", filepath.Join(r.workDir, "certificates", RootTrustStoreFile),
		"--network-root-truststore-password", r.Config.TrustStorePassword,
		"--base-directory", dir,
	)

	return command.RunWatched(c, r.failure())
}

// nodeInfo generates the node info file of the notary and copies it into the
// authority working directory.
func (r *authorityRun) nodeInfo() error {
	dir := r.notary.Dir()
	c := r.tool(dir, r.notary.Spec().Distribution.NodeBinary(),
		"--just-generate-node-info",
		"--base-directory", dir,
	)

	if err := command.RunWatched(c, r.failure()); err != nil {
		return err
	}

	infos, err := filepath.Glob(filepath.Join(dir, nodeInfoGlob))
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return fmt.Errorf("no %s file generated in %s", nodeInfoGlob, dir)
	}
	sort.Strings(infos)

	return common.CopyFile(infos[0], filepath.Join(r.workDir, NotaryNodeInfoFile), 0644)
}

func (r *authorityRun) networkParameters() error {
	template := r.Config.NetworkParamsTemplate
	if _, err := os.Stat(template); err != nil {
		return fmt.Errorf("network parameters template: %w", err)
	}

	c := r.tool(r.workDir, r.authTool,
		"--config-file", config.DefaultNodeConfFile,
		"--set-network-parameters", template,
	)
	return command.RunWatched(c, r.failure())
}

// startService launches the authority service and waits until it reports that
// it accepts requests. The service is watched for failures for its whole
// lifetime.
func (r *authorityRun) startService() (*command.Command, error) {
	c := r.service(r.workDir, r.authTool, "--config-file", config.DefaultNodeConfFile)

	w := command.Watch(c, r.failure())
	ready := command.Expect(c, command.ContainsMarker(r.Config.AuthorityReadyMarker))

	if err := c.Start(); err != nil {
		return nil, err
	}

	if !command.AwaitLine(c, ready, r.Config.Timeout) {
		c.Interrupt()
		c.WaitFor()
		if line, ok := w.Matched(); ok {
			return nil, fmt.Errorf("%w: authority service reported %q", command.ErrCommandFailed, line)
		}
		return nil, fmt.Errorf("%w: authority service not ready after %s", command.ErrCommandFailed, r.Config.Timeout)
	}

	r.logger.WithField("pid", c.PID()).Info("Authority service ready")

	return c, nil
}
