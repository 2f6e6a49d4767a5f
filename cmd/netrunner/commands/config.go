package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/flashtony2005/corda/src/config"
	"github.com/flashtony2005/corda/src/network"
	"github.com/flashtony2005/corda/src/node"
)

// CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Network      config.Config      `mapstructure:",squash"`
	ConfigDir    string             `mapstructure:"config-dir"`
	KeepAlive    time.Duration      `mapstructure:"keep-alive"`
	Distribution DistributionConfig `mapstructure:"distribution"`
	Nodes        []NodeConfig       `mapstructure:"nodes"`
}

// DistributionConfig describes a node distribution in a configuration file.
type DistributionConfig struct {
	Version string `mapstructure:"version"`
	Type    string `mapstructure:"type"`
	Path    string `mapstructure:"path"`
}

// NodeConfig describes one node of the topology in a configuration file.
type NodeConfig struct {
	Name              string             `mapstructure:"name"`
	Database          string             `mapstructure:"database"`
	Notary            string             `mapstructure:"notary"`
	Currencies        []string           `mapstructure:"currencies"`
	CompatibilityZone string             `mapstructure:"compatibility-zone"`
	RPCProxy          bool               `mapstructure:"rpc-proxy"`
	Distribution      DistributionConfig `mapstructure:"distribution"`
}

// NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Network:   *config.NewDefaultConfig(),
		ConfigDir: ".",
		KeepAlive: time.Hour,
	}
}

func (d DistributionConfig) distribution() node.Distribution {
	if d.Version == "" && d.Path == "" {
		return node.Distribution{}
	}

	path := d.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	return node.Distribution{
		Version:     d.Version,
		Type:        node.ParseDistributionType(d.Type),
		InstallPath: path,
	}
}

func (n NodeConfig) spec() node.Spec {
	db := node.Database(n.Database)
	if db == "" {
		db = node.DefaultDatabase
	}

	return node.Spec{
		Name:                 n.Name,
		Distribution:         n.Distribution.distribution(),
		Database:             db,
		Notary:               node.ParseNotaryType(n.Notary),
		IssuableCurrencies:   n.Currencies,
		CompatibilityZoneURL: n.CompatibilityZone,
		RPCProxy:             n.RPCProxy,
	}
}

// builder returns a network Builder for the configured topology.
func (c *CLIConfig) builder() (*network.Builder, error) {
	if len(c.Nodes) == 0 {
		return nil, fmt.Errorf("no nodes configured in %s", c.ConfigDir)
	}

	b := network.NewBuilder(&c.Network).
		WithDistribution(c.Distribution.distribution())

	for i, n := range c.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("node %d has no name", i)
		}
		b.WithNode(n.spec())
	}

	return b, nil
}
