package parse

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bufbuild/protocompile"

	"github.com/kbirk/protonats/internal/util"
)

const protoFileExtension = ".proto"

type Options struct {
	// ImportPaths are searched for imports in addition to the input
	// directory. Well-known types are always available.
	ImportPaths []string
	// GoBasePackage is used for files without a go_package option.
	GoBasePackage string
}

// NewParse compiles every .proto file under input, which may be a directory
// or a single file.
func NewParse(input string, opts Options) (*Parse, error) {
	root, names, err := searchInputAndListFiles(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse input pattern: %s", err.Error())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", protoFileExtension, input)
	}

	importPaths := util.RemoveDuplicates(append([]string{root}, opts.ImportPaths...))

	resolver := &protocompile.SourceResolver{
		ImportPaths: importPaths,
	}

	content := func(filename string) string {
		for _, dir := range importPaths {
			bs, err := os.ReadFile(filepath.Join(dir, filename))
			if err == nil {
				return string(bs)
			}
		}
		return ""
	}

	p, perr := compileFiles(resolver, names, opts, content)
	if perr != nil {
		return nil, perr
	}
	for _, file := range p.Files {
		file.FullPath = filepath.Join(root, filepath.FromSlash(file.Name))
	}
	return p, nil
}

// NewParseFromFiles compiles in-memory sources keyed by import path. Every
// entry is treated as an input file.
func NewParseFromFiles(fileContents map[string]string, opts Options) (*Parse, error) {
	names := make([]string, 0, len(fileContents))
	for name := range fileContents {
		names = append(names, name)
	}

	resolver := &protocompile.SourceResolver{
		ImportPaths: opts.ImportPaths,
		Accessor: func(path string) (io.ReadCloser, error) {
			if content, ok := fileContents[path]; ok {
				return io.NopCloser(strings.NewReader(content)), nil
			}
			for _, dir := range opts.ImportPaths {
				if rel, err := filepath.Rel(dir, path); err == nil {
					if content, ok := fileContents[filepath.ToSlash(rel)]; ok {
						return io.NopCloser(strings.NewReader(content)), nil
					}
				}
			}
			return os.Open(path)
		},
	}

	content := func(filename string) string {
		return fileContents[filename]
	}

	p, perr := compileFiles(resolver, names, opts, content)
	if perr != nil {
		return nil, perr
	}
	return p, nil
}

func compileFiles(resolver protocompile.Resolver, names []string, opts Options, content func(string) string) (*Parse, *ParsingError) {
	compiler := protocompile.Compiler{
		Resolver:       protocompile.WithStandardImports(resolver),
		SourceInfoMode: protocompile.SourceInfoStandard,
	}

	compiled, err := compiler.Compile(context.Background(), names...)
	if err != nil {
		return nil, newParsingError(err, content)
	}

	files := make([]*File, 0, len(compiled))
	for _, fd := range compiled {
		file, perr := resolveFile(fd, opts.GoBasePackage)
		if perr != nil {
			perr.Content = content(perr.Filename)
			return nil, perr
		}
		files = append(files, file)
	}

	return newParse(files), nil
}

func findProtoFiles(files *[]string, path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		fullPath := filepath.Join(path, entry.Name())
		if entry.IsDir() {
			err := findProtoFiles(files, fullPath)
			if err != nil {
				return err
			}
		} else if strings.HasSuffix(entry.Name(), protoFileExtension) {
			*files = append(*files, fullPath)
		}
	}

	return nil
}

// searchInputAndListFiles returns the root directory used as the primary
// import path and the input files relative to it.
func searchInputAndListFiles(input string) (string, []string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return "", nil, err
	}

	if !info.IsDir() {
		if filepath.Ext(input) != protoFileExtension {
			return "", nil, fmt.Errorf("not a %s file: %s", protoFileExtension, input)
		}
		return filepath.Dir(input), []string{filepath.Base(input)}, nil
	}

	var paths []string
	err = findProtoFiles(&paths, input)
	if err != nil {
		return "", nil, err
	}

	names := make([]string, 0, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(input, path)
		if err != nil {
			return "", nil, err
		}
		names = append(names, filepath.ToSlash(rel))
	}

	return input, names, nil
}
