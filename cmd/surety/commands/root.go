package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for Surety
var RootCmd = &cobra.Command{
	Use:              "surety",
	Short:            "decentralized flight insurance",
	TraverseChildren: true,
}
