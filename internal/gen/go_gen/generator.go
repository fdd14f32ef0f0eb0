package go_gen

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kbirk/protonats/internal/parse"
)

const (
	GeneratorName  = "protonats-go"
	OutputSuffix   = "_nats.pb.go"
	protoExtension = ".proto"
)

// NotificationPolicy selects what the generator does with methods
// classified as notifications.
type NotificationPolicy string

const (
	NotificationsGenerate NotificationPolicy = "generate"
	NotificationsSkip     NotificationPolicy = "skip"
	NotificationsReject   NotificationPolicy = "reject"
)

func ParseNotificationPolicy(s string) (NotificationPolicy, error) {
	switch NotificationPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", NotificationsGenerate:
		return NotificationsGenerate, nil
	case NotificationsSkip:
		return NotificationsSkip, nil
	case NotificationsReject:
		return NotificationsReject, nil
	default:
		return "", fmt.Errorf("invalid notification policy %q, expected generate, skip or reject", s)
	}
}

type Options struct {
	Notifications NotificationPolicy
	// Logger receives a warning for every method that is not bound. nil
	// uses slog.Default.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// OutputFilename returns the name of the generated file for a proto file,
// e.g. "people/people.proto" becomes "people/people_nats.pb.go".
func OutputFilename(protoPath string) string {
	return strings.TrimSuffix(filepath.ToSlash(protoPath), protoExtension) + OutputSuffix
}

// GenerateGoCode writes one file per proto file that declares services,
// mirroring the input layout under outputDir.
func GenerateGoCode(outputDir string, p *parse.Parse, opts Options) ([]string, error) {
	var written []string
	for _, file := range p.FilesSortedByKey() {
		if !file.HasServices() {
			continue
		}

		code, err := GenerateFile(file, opts)
		if err != nil {
			return written, err
		}

		_, filename := filepath.Split(OutputFilename(file.Name))
		outputFileAndPath := filepath.Join(outputDir, file.RelativePath, filename)

		err = os.MkdirAll(filepath.Dir(outputFileAndPath), 0755)
		if err != nil {
			return written, err
		}

		err = os.WriteFile(outputFileAndPath, []byte(code), 0644)
		if err != nil {
			return written, err
		}
		written = append(written, outputFileAndPath)
	}

	return written, nil
}
