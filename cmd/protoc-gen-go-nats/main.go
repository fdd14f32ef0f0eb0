// protoc-gen-go-nats is a protoc plugin generating the same bindings as
// protonats-go generate:
//
//	protoc --go_out=. --go-nats_out=. --go-nats_opt=notifications=skip people.proto
package main

import (
	"flag"
	"os"

	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/types/pluginpb"

	"github.com/kbirk/protonats/internal/gen/go_gen"
	"github.com/kbirk/protonats/internal/logging"
	"github.com/kbirk/protonats/internal/parse"
)

func main() {
	var flags flag.FlagSet
	notifications := flags.String("notifications", string(go_gen.NotificationsGenerate), "notification policy: generate, skip or reject")
	logLevel := flags.String("log_level", "warn", "log level for diagnostics written to stderr")

	protogen.Options{
		ParamFunc: flags.Set,
	}.Run(func(plugin *protogen.Plugin) error {
		plugin.SupportedFeatures = uint64(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL)

		policy, err := go_gen.ParseNotificationPolicy(*notifications)
		if err != nil {
			return err
		}
		// stdout carries the plugin response
		logger, err := logging.FromFlags(*logLevel, string(logging.FormatText), os.Stderr)
		if err != nil {
			return err
		}

		return generate(plugin, go_gen.Options{
			Notifications: policy,
			Logger:        logger,
		})
	})
}

func generate(plugin *protogen.Plugin, opts go_gen.Options) error {
	p := parse.NewParseFromPlugin(plugin)

	for _, f := range plugin.Files {
		if !f.Generate {
			continue
		}
		file, ok := p.Files[f.Desc.Path()]
		if !ok || !file.HasServices() {
			continue
		}

		code, err := go_gen.GenerateFile(file, opts)
		if err != nil {
			return err
		}

		g := plugin.NewGeneratedFile(f.GeneratedFilenamePrefix+go_gen.OutputSuffix, f.GoImportPath)
		if _, err := g.Write([]byte(code)); err != nil {
			return err
		}
	}
	return nil
}
