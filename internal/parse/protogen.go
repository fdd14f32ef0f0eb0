package parse

import (
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/compiler/protogen"
)

// NewParseFromPlugin builds the model from the files protoc asked a plugin
// to generate.
func NewParseFromPlugin(plugin *protogen.Plugin) *Parse {
	var files []*File
	for _, f := range plugin.Files {
		if !f.Generate {
			continue
		}
		files = append(files, fileFromProtogen(plugin, f))
	}
	return newParse(files)
}

func goTypeFromProtogen(plugin *protogen.Plugin, msg *protogen.Message) GoType {
	name := sanitizePackageName(filepath.Base(string(msg.GoIdent.GoImportPath)))
	if f, ok := plugin.FilesByPath[msg.Desc.ParentFile().Path()]; ok {
		name = string(f.GoPackageName)
	}
	return GoType{
		Name:        msg.GoIdent.GoName,
		ImportPath:  string(msg.GoIdent.GoImportPath),
		PackageName: name,
		ProtoName:   string(msg.Desc.FullName()),
	}
}

func fileFromProtogen(plugin *protogen.Plugin, f *protogen.File) *File {
	file := &File{
		Name:          f.Desc.Path(),
		RelativePath:  filepath.Dir(filepath.FromSlash(f.Desc.Path())),
		ProtoPackage:  string(f.Desc.Package()),
		GoPackageName: string(f.GoPackageName),
		GoImportPath:  string(f.GoImportPath),
	}

	for _, s := range f.Services {
		svc := &ServiceDefinition{
			Name:     string(s.Desc.Name()),
			FullName: string(s.Desc.FullName()),
			Comments: strings.TrimSpace(string(s.Comments.Leading)),
			File:     file,
		}
		for _, m := range s.Methods {
			comments := strings.TrimSpace(string(m.Comments.Leading))
			svc.Methods = append(svc.Methods, &ServiceMethodDefinition{
				Name:            string(m.Desc.Name()),
				Input:           goTypeFromProtogen(plugin, m.Input),
				Output:          goTypeFromProtogen(plugin, m.Output),
				ClientStreaming: m.Desc.IsStreamingClient(),
				ServerStreaming: m.Desc.IsStreamingServer(),
				Annotation:      ParseAnnotation(comments),
				Comments:        comments,
				Service:         svc,
			})
		}
		file.Services = append(file.Services, svc)
	}

	return file
}
