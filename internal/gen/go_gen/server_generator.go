package go_gen

import (
	"bytes"
	"text/template"
)

const serverTemplateStr = `
// {{.ServerInterfaceName}} is the server API for the {{.ServiceName}} service.
// Register an implementation with Register{{.ServerInterfaceName}}; every
// method is served on "<prefix>.<suffix>".
type {{.ServerInterfaceName}} interface { {{- range .Methods}}{{range .Comments}}
	//{{if .}} {{.}}{{end}}{{end}}
	{{.MethodNamePascalCase}}(context.Context, *{{.RequestType}}) {{.ServerReturn}}{{end}}
}

func Register{{.ServerInterfaceName}}(server *rpc.Server, impl {{.ServerInterfaceName}}) {
	server.RegisterServer(&{{.StubStructName}}{impl: impl})
}

type {{.StubStructName}} struct {
	impl {{.ServerInterfaceName}}
}

func (s *{{.StubStructName}}) ServiceName() string {
	return "{{.ServiceName}}"
}

func (s *{{.StubStructName}}) Methods() []rpc.MethodDesc {
	return []rpc.MethodDesc{ {{- range .Methods}}
		{{.DescVarName}},{{end}}
	}
}

func (s *{{.StubStructName}}) HandleMessage(ctx context.Context, server *rpc.Server, desc rpc.MethodDesc, msg *rpc.Msg) error {
	switch desc.Suffix { {{- range .Methods}}
	case {{.SuffixConstName}}:
		return {{.ServerHandler}}(ctx, server, desc, msg, new({{.RequestType}}), s.impl.{{.MethodNamePascalCase}}){{end}}
	default:
		return fmt.Errorf("unrecognized method %s", desc.Method)
	}
}
`

var (
	serverTemplate = template.Must(template.New("serverTemplateGo").Parse(serverTemplateStr))
)

func generateServerGoCode(args ServiceArgs) (string, error) {
	buf := &bytes.Buffer{}
	err := serverTemplate.Execute(buf, args)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
