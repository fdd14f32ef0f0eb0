// protonats-bus runs a development broker: an in-memory bus exposed over
// websocket so generated clients and servers can talk without a NATS
// server. Connect with bus.Config{Transport: "websocket", URL: "ws://localhost:4280/bus"}.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kbirk/protonats/internal/logging"
	"github.com/kbirk/protonats/pkg/rpc/wsbus"
)

var (
	addr           string
	path           string
	certFile       string
	keyFile        string
	maxMessageSize int64
	logLevel       string
	logFormat      string
)

var rootCmd = &cobra.Command{
	Use:           "protonats-bus",
	Short:         "Run an in-memory development bus over websocket",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.FromFlags(logLevel, logFormat, os.Stderr)
		if err != nil {
			return err
		}

		broker := wsbus.NewServer(wsbus.ServerConfig{
			Addr:           addr,
			Path:           path,
			CertFile:       certFile,
			KeyFile:        keyFile,
			MaxMessageSize: maxMessageSize,
			Logger:         logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errs := make(chan error, 1)
		go func() {
			errs <- broker.ListenAndServe()
		}()
		logger.Info("broker listening", "addr", addr, "path", path)

		select {
		case err := <-errs:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down broker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return broker.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", ":4280", "Listen address")
	rootCmd.Flags().StringVar(&path, "path", wsbus.DefaultPath, "Websocket upgrade path")
	rootCmd.Flags().StringVar(&certFile, "cert-file", "", "TLS certificate file")
	rootCmd.Flags().StringVar(&keyFile, "key-file", "", "TLS key file")
	rootCmd.Flags().Int64Var(&maxMessageSize, "max-message-size", 0, "Maximum frame size in bytes (0 for no limit)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		red := color.New(color.FgRed, color.Bold).SprintFunc()
		os.Stderr.WriteString(red("ERROR: ") + fmt.Sprintf("%v\n", err))
		os.Exit(1)
	}
}
