package parse

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// goPackage resolves the Go import path and package name of a proto file
// from its go_package option, falling back to basePackage joined with the
// file's directory.
func goPackage(fd protoreflect.FileDescriptor, basePackage string) (string, string, error) {
	var goPkg string
	if opts, ok := fd.Options().(*descriptorpb.FileOptions); ok {
		goPkg = opts.GetGoPackage()
	}

	if goPkg != "" {
		importPath, name, ok := strings.Cut(goPkg, ";")
		if !ok {
			name = path.Base(importPath)
		}
		return importPath, sanitizePackageName(name), nil
	}

	if basePackage == "" {
		return "", "", fmt.Errorf("file %s has no go_package option and no base package is configured", fd.Path())
	}

	importPath := strings.TrimSuffix(basePackage, "/")
	if dir := path.Dir(filepath.ToSlash(fd.Path())); dir != "." {
		importPath += "/" + dir
	}
	name := string(fd.Package().Name())
	if name == "" {
		name = path.Base(importPath)
	}
	return importPath, sanitizePackageName(name), nil
}

func sanitizePackageName(name string) string {
	name = strings.ToLower(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}

// goTypeName returns the Go identifier protoc-gen-go assigns to a message,
// nested messages being joined with an underscore.
func goTypeName(md protoreflect.MessageDescriptor) string {
	name := strings.TrimPrefix(string(md.FullName()), string(md.ParentFile().Package())+".")
	return goCamelCase(name)
}

func goCamelCase(s string) string {
	isLower := func(c byte) bool { return c >= 'a' && c <= 'z' }
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }

	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.' && i+1 < len(s) && isLower(s[i+1]):
		case c == '.':
			b = append(b, '_')
		case c == '_' && (i == 0 || s[i-1] == '.'):
			b = append(b, 'X')
		case c == '_' && i+1 < len(s) && isLower(s[i+1]):
		case isDigit(c):
			b = append(b, c)
		default:
			if isLower(c) {
				c -= 'a' - 'A'
			}
			b = append(b, c)
			for ; i+1 < len(s) && isLower(s[i+1]); i++ {
				b = append(b, s[i+1])
			}
		}
	}
	return string(b)
}

func resolveGoType(md protoreflect.MessageDescriptor, basePackage string) (GoType, error) {
	importPath, name, err := goPackage(md.ParentFile(), basePackage)
	if err != nil {
		return GoType{}, err
	}
	return GoType{
		Name:        goTypeName(md),
		ImportPath:  importPath,
		PackageName: name,
		ProtoName:   string(md.FullName()),
	}, nil
}

func leadingComments(fd protoreflect.FileDescriptor, desc protoreflect.Descriptor) string {
	return strings.TrimSpace(fd.SourceLocations().ByDescriptor(desc).LeadingComments)
}

// resolveFile converts a compiled file descriptor into the generator model.
func resolveFile(fd protoreflect.FileDescriptor, basePackage string) (*File, *ParsingError) {
	importPath, name, err := goPackage(fd, basePackage)
	if err != nil {
		return nil, &ParsingError{
			Message:  err.Error(),
			Filename: fd.Path(),
		}
	}

	file := &File{
		Name:          fd.Path(),
		RelativePath:  filepath.Dir(filepath.FromSlash(fd.Path())),
		ProtoPackage:  string(fd.Package()),
		GoPackageName: name,
		GoImportPath:  importPath,
	}

	services := fd.Services()
	for i := 0; i < services.Len(); i++ {
		sd := services.Get(i)
		svc := &ServiceDefinition{
			Name:     string(sd.Name()),
			FullName: string(sd.FullName()),
			Comments: leadingComments(fd, sd),
			File:     file,
		}

		methods := sd.Methods()
		for j := 0; j < methods.Len(); j++ {
			md := methods.Get(j)

			input, err := resolveGoType(md.Input(), basePackage)
			if err != nil {
				return nil, methodError(fd, md, err)
			}
			output, err := resolveGoType(md.Output(), basePackage)
			if err != nil {
				return nil, methodError(fd, md, err)
			}

			comments := leadingComments(fd, md)
			svc.Methods = append(svc.Methods, &ServiceMethodDefinition{
				Name:            string(md.Name()),
				Input:           input,
				Output:          output,
				ClientStreaming: md.IsStreamingClient(),
				ServerStreaming: md.IsStreamingServer(),
				Annotation:      ParseAnnotation(comments),
				Comments:        comments,
				Service:         svc,
			})
		}

		file.Services = append(file.Services, svc)
	}

	return file, nil
}

func methodError(fd protoreflect.FileDescriptor, md protoreflect.MethodDescriptor, err error) *ParsingError {
	loc := fd.SourceLocations().ByDescriptor(md)
	perr := &ParsingError{
		Message:  fmt.Sprintf("method %s: %s", md.FullName(), err.Error()),
		Filename: fd.Path(),
	}
	if loc.Path != nil {
		perr.Line = loc.StartLine + 1
		perr.Column = loc.StartColumn + 1
	}
	return perr
}
