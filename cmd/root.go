package cmd

import (
	"fmt"
	"os"

	"github.com/oceanprotocol/ocean-node/config"
	"github.com/spf13/cobra"
)

var (
	flagVersion bool // print version and exit

	rootCmd = &cobra.Command{
		Use:   "ocean-node",
		Short: "Ocean node scans data NFT events, validates and attests DDO documents",
		Run:   start,
	}
)

func init() {
	rootCmd.Flags().BoolVarP(&flagVersion, "version", "v", false, "If true, print version and exit")
}

func start(cmd *cobra.Command, args []string) {
	if flagVersion {
		config.DumpVersionInfo()
		return
	}

	cmd.Help()
}

// Execute is the command line entrypoint.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
