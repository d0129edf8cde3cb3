// Package cli implements the ipgeo command line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ipgeo",
		Short: "ipgeo looks up the geolocation of IP addresses.",
		Long: `A command line client for the ip-api.com geolocation service.
The API key is read from --key or IPGEO_API_KEY (a .env file is honored).`,
		Args:                  cobra.NoArgs,
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
}

// NewCLI initialises the complete ipgeo cli with its commands and returns the root command.
func NewCLI() *cobra.Command {
	rootCmd := newRootCmd()
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLookupCmd())

	return rootCmd
}

// Execute runs the ipgeo cli.
func Execute() {
	if err := NewCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
