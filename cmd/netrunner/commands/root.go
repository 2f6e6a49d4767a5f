package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

// RootCmd is the root command for netrunner
var RootCmd = &cobra.Command{
	Use:              "netrunner",
	Short:            "ephemeral test networks",
	TraverseChildren: true,
}
