package go_gen

import (
	"bytes"
	"text/template"
)

const clientTemplateStr = `
// {{.ClientStructName}} is the client API for the {{.ServiceName}} service. It is
// safe for concurrent use.
type {{.ClientStructName}} struct {
	client *rpc.Client
}

func New{{.ClientStructName}}(client *rpc.Client) *{{.ClientStructName}} {
	return &{{.ClientStructName}}{
		client: client,
	}
}
{{range .Methods}}{{if .Notification}}
{{range .Comments}}//{{if .}} {{.}}{{end}}
{{end}}func (c *{{$.ClientStructName}}) {{.MethodNamePascalCase}}(ctx context.Context, req *{{.RequestType}}) error {
	return c.client.Notify(ctx, {{.DescVarName}}, req)
}
{{else if .ServerStreaming}}
{{if .Comments}}{{range .Comments}}//{{if .}} {{.}}{{end}}
{{end}}//
{{end}}// The returned stream has no end marker: it stays open until it is closed
// or ctx is done.
func (c *{{$.ClientStructName}}) {{.MethodNamePascalCase}}(ctx context.Context, req *{{.RequestType}}) (*rpc.Stream[*{{.ResponseType}}], error) {
	return rpc.OpenStream(ctx, c.client, {{.DescVarName}}, req, func() *{{.ResponseType}} {
		return new({{.ResponseType}})
	})
}
{{else}}
{{range .Comments}}//{{if .}} {{.}}{{end}}
{{end}}func (c *{{$.ClientStructName}}) {{.MethodNamePascalCase}}(ctx context.Context, req *{{.RequestType}}) (*{{.ResponseType}}, error) {
	resp := new({{.ResponseType}})
	if err := c.client.Call(ctx, {{.DescVarName}}, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
{{end}}{{end}}
`

var (
	clientTemplate = template.Must(template.New("clientTemplateGo").Parse(clientTemplateStr))
)

func generateClientGoCode(args ServiceArgs) (string, error) {
	buf := &bytes.Buffer{}
	err := clientTemplate.Execute(buf, args)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
