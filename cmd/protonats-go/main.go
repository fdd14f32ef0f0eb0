package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kbirk/protonats/internal/logging"
)

const (
	version = "0.1.0"
)

var (
	logLevel  string
	logFormat string
	logger    = logging.Nop()
)

var (
	red     = color.New(color.FgRed, color.Bold).SprintFunc()
	green   = color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow  = color.New(color.FgYellow, color.Bold).SprintFunc()
	cyan    = color.New(color.FgCyan, color.Bold).SprintFunc()
	magenta = color.New(color.FgMagenta, color.Bold).SprintFunc()
	white   = color.New(color.FgWhite, color.Bold).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "protonats-go",
	Short: "Generate NATS request/reply bindings for protobuf services",
	Long: `protonats-go compiles .proto files and generates Go clients and servers
that carry every service method over a message bus subject.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.FromFlags(logLevel, logFormat, os.Stderr)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString(red("ERROR: ") + fmt.Sprintf("%v\n", err))
		os.Exit(1)
	}
}
