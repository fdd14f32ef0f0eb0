package go_gen

import (
	"bytes"
	"text/template"

	"github.com/kbirk/protonats/internal/parse"
)

type HeaderArgs struct {
	Generator string
	Source    string
}

type PackageArgs struct {
	Name string
}

const headerTemplateStr = `// Code generated by {{.Generator}}. DO NOT EDIT.
// source: {{.Source}}
`

const packageTemplateStr = `
package {{.Name}}
`

var (
	headerTemplate  = template.Must(template.New("headerTemplateGo").Parse(headerTemplateStr))
	packageTemplate = template.Must(template.New("packageTemplateGo").Parse(packageTemplateStr))
)

func generateHeaderGoCode(file *parse.File) (string, error) {

	args := HeaderArgs{
		Generator: GeneratorName,
		Source:    file.Name,
	}

	buf := &bytes.Buffer{}
	err := headerTemplate.Execute(buf, args)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func generatePackageGoCode(file *parse.File) (string, error) {

	args := PackageArgs{
		Name: file.GoPackageName,
	}

	buf := &bytes.Buffer{}
	err := packageTemplate.Execute(buf, args)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
