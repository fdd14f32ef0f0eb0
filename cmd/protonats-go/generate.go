package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbirk/protonats/internal/config"
	"github.com/kbirk/protonats/internal/gen/go_gen"
	"github.com/kbirk/protonats/internal/parse"
)

var (
	configPath    string
	input         string
	output        string
	importPaths   []string
	basePackage   string
	notifications string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate Go bindings for every service in the input",
	Long: `Generate compiles the input (a .proto file or a directory searched
recursively) and writes one <name>_nats.pb.go file per proto file that
declares services.

Settings are read from protonats.yaml in the working directory, or the file
given with --config; flags override file values.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := conf.Validate(); err != nil {
			return err
		}

		p, err := parse.NewParse(conf.Input, conf.ParseOptions())
		if err != nil {
			return fmt.Errorf("failed to parse input: %w", err)
		}

		written, err := go_gen.GenerateGoCode(conf.Output, p, conf.GenerateOptions(logger))
		if err != nil {
			return fmt.Errorf("failed to generate go output: %w", err)
		}

		if len(written) == 0 {
			return errors.New("no services to generate")
		}

		os.Stdout.WriteString(green("SUCCESS: ") + fmt.Sprintf("Generated code for %d files\n", len(written)))
		for _, path := range written {
			os.Stdout.WriteString(fmt.Sprintf("    %s %s\n", magenta("[file]"), white(path)))
		}
		return nil
	},
}

// loadConfig reads the configuration file, if any, and applies flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path = config.Find(wd)
	}

	conf := &config.Config{}
	if path != "" {
		var err error
		conf, err = config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded configuration", "path", path)
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		conf.Input = input
	}
	if flags.Changed("output") {
		conf.Output = output
	}
	if flags.Changed("import-path") {
		conf.ImportPaths = importPaths
	}
	if flags.Changed("base-package") {
		conf.BasePackage = basePackage
	}
	if flags.Changed("notifications") {
		conf.Notifications = notifications
	}
	return conf, nil
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "Configuration file (default: ./protonats.yaml if present)")
	cmd.Flags().StringVar(&input, "input", "", "Input .proto file or directory")
	cmd.Flags().StringSliceVarP(&importPaths, "import-path", "I", nil, "Additional import path (repeatable)")
	cmd.Flags().StringVar(&basePackage, "base-package", "", "Go base package for files without a go_package option")
	cmd.Flags().StringVar(&notifications, "notifications", "", "Notification policy: generate, skip or reject")
}

func init() {
	addInputFlags(generateCmd)
	generateCmd.Flags().StringVar(&output, "output", "", "Output directory")
	rootCmd.AddCommand(generateCmd)
}
