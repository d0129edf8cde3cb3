package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/evyataryagoni/ipgeolocation"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "version",
		Short:                 "Print the version number of ipgeo",
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ipgeo version: %s (%s)\n", ipgeolocation.Version, revision())
		},
	}
}

// revision returns the VCS revision the binary was built from.
// Binaries from `go run` and `go test` carry no VCS settings.
func revision() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return setting.Value
			}
		}
	}
	return "devel"
}
