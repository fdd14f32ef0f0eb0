package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the generator version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Stdout.WriteString(fmt.Sprintf("protonats-go %s (%s)\n", version, runtime.Version()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
