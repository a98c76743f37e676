package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for reload
var RootCmd = &cobra.Command{
	Use:              "reload",
	Short:            "RELOAD overlay node",
	TraverseChildren: true,
}
