package parse

import (
	"sort"
	"strings"

	"github.com/kbirk/protonats/internal/util"
	"github.com/kbirk/protonats/pkg/rpc"
)

const (
	// AnnotationPrefix introduces a method kind annotation in a leading
	// comment, e.g. "// nats:notification".
	AnnotationPrefix = "nats:"
)

type Parse struct {
	Files    map[string]*File
	Packages map[string]*Package
}

type Package struct {
	Name               string
	Files              []*File
	ServiceDefinitions map[string]*ServiceDefinition
}

type File struct {
	// Name is the path the file was compiled as, e.g. "people/people.proto".
	Name          string
	FullPath      string
	RelativePath  string
	ProtoPackage  string
	GoPackageName string
	GoImportPath  string
	Services      []*ServiceDefinition
}

// GoType references a message type by its Go identifier. The generator
// treats it as opaque.
type GoType struct {
	Name        string
	ImportPath  string
	PackageName string
	ProtoName   string
}

type ServiceDefinition struct {
	Name     string
	FullName string
	Comments string
	Methods  []*ServiceMethodDefinition
	File     *File
}

type ServiceMethodDefinition struct {
	Name            string
	Input           GoType
	Output          GoType
	ClientStreaming bool
	ServerStreaming bool
	// Annotation is the value of a "nats:<kind>" leading comment, if any.
	Annotation string
	Comments   string
	Service    *ServiceDefinition
}

// Kind classifies the method. An explicit annotation wins over the naming
// convention.
func (m *ServiceMethodDefinition) Kind() rpc.MethodKind {
	if kind, ok := rpc.ParseMethodKind(m.Annotation); ok {
		return kind
	}
	return rpc.ClassifyMethodName(m.Name)
}

func (m *ServiceMethodDefinition) SubjectSuffix() string {
	return rpc.SubjectSuffix(m.Name)
}

func (f *File) HasServices() bool {
	return len(f.Services) > 0
}

func (f *File) ServicesSortedByKey() []*ServiceDefinition {
	services := append([]*ServiceDefinition(nil), f.Services...)
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services
}

// FilesSortedByKey returns the files of the parse ordered by name.
func (p *Parse) FilesSortedByKey() []*File {
	names := util.SortedKeys(p.Files)
	files := make([]*File, 0, len(names))
	for _, name := range names {
		files = append(files, p.Files[name])
	}
	return files
}

// ParseAnnotation extracts the method kind annotation from a comment block.
// Only the first non-empty line is considered.
func ParseAnnotation(comments string) string {
	for _, line := range strings.Split(comments, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		value, ok := strings.CutPrefix(line, AnnotationPrefix)
		if !ok {
			return ""
		}
		if fields := strings.Fields(value); len(fields) > 0 {
			return fields[0]
		}
		return ""
	}
	return ""
}

func newParse(files []*File) *Parse {
	p := &Parse{
		Files:    make(map[string]*File),
		Packages: make(map[string]*Package),
	}
	for _, file := range files {
		p.Files[file.Name] = file

		pkg, ok := p.Packages[file.ProtoPackage]
		if !ok {
			pkg = &Package{
				Name:               file.ProtoPackage,
				ServiceDefinitions: make(map[string]*ServiceDefinition),
			}
			p.Packages[file.ProtoPackage] = pkg
		}
		pkg.Files = append(pkg.Files, file)
		for _, svc := range file.Services {
			pkg.ServiceDefinitions[svc.Name] = svc
		}
	}
	return p
}
