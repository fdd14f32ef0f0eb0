package go_gen

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"

	"github.com/kbirk/protonats/internal/parse"
)

const (
	rpcImportPath = "github.com/kbirk/protonats/pkg/rpc"
)

type ImportArgs struct {
	STDPackages     []string
	RPCPackages     []string
	MessagePackages []ImportAlias
}

type ImportAlias struct {
	Alias string
	Path  string
}

const importTemplateStr = `
import ( {{ range .STDPackages }}
	"{{.}}"{{end}}
	{{ range .RPCPackages }}
	"{{.}}"{{end}}
	{{ range .MessagePackages }}
	{{.Alias}} "{{.Path}}"{{end}}
)
`

var (
	importTemplate = template.Must(template.New("importTemplateGo").Parse(importTemplateStr))
)

// importSet assigns package aliases to message types defined outside the
// generated file's Go package.
type importSet struct {
	localPath string
	aliases   map[string]string
	taken     map[string]bool
}

func newImportSet(file *parse.File) *importSet {
	return &importSet{
		localPath: file.GoImportPath,
		aliases:   make(map[string]string),
		taken: map[string]bool{
			"context": true,
			"fmt":     true,
			"iter":    true,
			"rpc":     true,
		},
	}
}

// qualify returns the Go expression naming t from within the generated file.
func (s *importSet) qualify(t parse.GoType) string {
	if t.ImportPath == "" || t.ImportPath == s.localPath {
		return t.Name
	}

	alias, ok := s.aliases[t.ImportPath]
	if !ok {
		base := t.PackageName
		if base == "" {
			base = "pkg"
		}
		alias = base
		for i := 1; s.taken[alias]; i++ {
			alias = fmt.Sprintf("%s%d", base, i)
		}
		s.taken[alias] = true
		s.aliases[t.ImportPath] = alias
	}
	return alias + "." + t.Name
}

func (s *importSet) imports() []ImportAlias {
	res := make([]ImportAlias, 0, len(s.aliases))
	for path, alias := range s.aliases {
		res = append(res, ImportAlias{Alias: alias, Path: path})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Path < res[j].Path })
	return res
}

func generateImportsGoCode(imports *importSet, hasStreaming bool) (string, error) {

	args := ImportArgs{
		STDPackages:     []string{"context", "fmt"},
		RPCPackages:     []string{rpcImportPath},
		MessagePackages: imports.imports(),
	}
	if hasStreaming {
		args.STDPackages = append(args.STDPackages, "iter")
	}

	buf := &bytes.Buffer{}
	err := importTemplate.Execute(buf, args)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
