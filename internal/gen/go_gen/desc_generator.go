package go_gen

import (
	"bytes"
	"text/template"
)

const descTemplateStr = `
{{if .Methods}}
// Subject suffixes of the {{.ServiceName}} service.
const ( {{- range .Methods}}
	{{.SuffixConstName}} = "{{.Suffix}}"{{end}}
)

// Method descriptors of the {{.ServiceName}} service, shared by its client
// and server.
var ( {{- range .Methods}}
	{{.DescVarName}} = rpc.MethodDesc{
		Service: "{{$.ServiceName}}",
		Method:  "{{.MethodName}}",
		Suffix:  {{.SuffixConstName}},
		Kind:    {{.Kind}},{{if .ServerStreaming}}
		ServerStreaming: true,{{end}}
	}{{end}}
)
{{end}}
`

var (
	descTemplate = template.Must(template.New("descTemplateGo").Parse(descTemplateStr))
)

func generateDescGoCode(args ServiceArgs) (string, error) {
	buf := &bytes.Buffer{}
	err := descTemplate.Execute(buf, args)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
