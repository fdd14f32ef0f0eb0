package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbirk/protonats/internal/gen/go_gen"
	"github.com/kbirk/protonats/internal/parse"
	"github.com/kbirk/protonats/pkg/rpc"
)

var inspectPrefix string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the services of the input with their method kinds and subjects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if conf.Input == "" {
			return errors.New("input is required")
		}
		policy, err := go_gen.ParseNotificationPolicy(conf.Notifications)
		if err != nil {
			return err
		}

		p, err := parse.NewParse(conf.Input, conf.ParseOptions())
		if err != nil {
			return fmt.Errorf("failed to parse input: %w", err)
		}

		prefix := rpc.NormalizePrefix(inspectPrefix)
		os.Stdout.WriteString(fmt.Sprintf("%s %s\n", magenta("[listen]"), white(rpc.WildcardSubject(prefix))))

		for _, file := range p.FilesSortedByKey() {
			if !file.HasServices() {
				continue
			}
			os.Stdout.WriteString(fmt.Sprintf("%s %s (%s)\n", magenta("[file]"), white(file.Name), cyan(file.GoImportPath)))
			for _, svc := range file.ServicesSortedByKey() {
				os.Stdout.WriteString(fmt.Sprintf("    %s %s {\n", yellow("[service]"), white(svc.Name)))
				for _, method := range svc.Methods {
					os.Stdout.WriteString(fmt.Sprintf("        %s %s (%s) %s  %s%s\n",
						describeKind(method),
						white(method.Name),
						cyan(method.Input.ProtoName),
						cyan(method.Output.ProtoName),
						rpc.JoinSubject(prefix, method.SubjectSuffix()),
						describeBinding(method, policy),
					))
				}
				os.Stdout.WriteString("    }\n")
			}
		}
		return nil
	},
}

func describeKind(method *parse.ServiceMethodDefinition) string {
	switch {
	case method.Kind() == rpc.KindNotification:
		return magenta("[notification]")
	case method.ServerStreaming:
		return green("[stream]")
	default:
		return green("[call]")
	}
}

func describeBinding(method *parse.ServiceMethodDefinition, policy go_gen.NotificationPolicy) string {
	switch {
	case method.ClientStreaming:
		return red("  (client streaming, not bound)")
	case method.Kind() == rpc.KindNotification && policy == go_gen.NotificationsSkip:
		return yellow("  (skipped)")
	case method.Kind() == rpc.KindNotification && policy == go_gen.NotificationsReject:
		return red("  (rejected)")
	default:
		return ""
	}
}

func init() {
	addInputFlags(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectPrefix, "prefix", rpc.DefaultPrefix, "Subject prefix used to render subjects")
	rootCmd.AddCommand(inspectCmd)
}
