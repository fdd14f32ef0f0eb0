package go_gen

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"

	"github.com/kbirk/protonats/internal/parse"
)

type FileArgs struct {
	Header  string
	Package string
	Imports string
	Descs   string
	Servers string
	Clients string
}

const fileTemplateStr = `{{.Header}}
{{.Package}}
{{.Imports}}
{{.Descs}}
{{.Servers}}
{{.Clients}}
`

var (
	fileTemplate = template.Must(template.New("fileTemplate").Parse(fileTemplateStr))
)

// GenerateFile renders the bindings of every service declared in file. The
// output depends only on its arguments.
func GenerateFile(file *parse.File, opts Options) (string, error) {

	if opts.Notifications != "" {
		if _, err := ParseNotificationPolicy(string(opts.Notifications)); err != nil {
			return "", err
		}
	}

	headerCode, err := generateHeaderGoCode(file)
	if err != nil {
		return "", err
	}

	pkgCode, err := generatePackageGoCode(file)
	if err != nil {
		return "", err
	}

	imports := newImportSet(file)
	hasStreaming := false

	var descCode, serverCode, clientCode []string
	for _, svc := range file.Services {
		args, err := getServiceArgs(svc, imports, opts)
		if err != nil {
			return "", err
		}
		hasStreaming = hasStreaming || args.HasStreaming()

		desc, err := generateDescGoCode(args)
		if err != nil {
			return "", err
		}
		descCode = append(descCode, desc)

		server, err := generateServerGoCode(args)
		if err != nil {
			return "", err
		}
		serverCode = append(serverCode, server)

		client, err := generateClientGoCode(args)
		if err != nil {
			return "", err
		}
		clientCode = append(clientCode, client)
	}

	importCode, err := generateImportsGoCode(imports, hasStreaming)
	if err != nil {
		return "", err
	}

	args := FileArgs{
		Header:  headerCode,
		Package: pkgCode,
		Imports: importCode,
		Descs:   strings.Join(descCode, "\n"),
		Servers: strings.Join(serverCode, "\n"),
		Clients: strings.Join(clientCode, "\n"),
	}

	buf := &bytes.Buffer{}
	err = fileTemplate.Execute(buf, args)
	if err != nil {
		return "", err
	}

	formattedCode, err := format.Source(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to format generated code for %s: %w", file.Name, err)
	}

	return string(formattedCode), nil
}
