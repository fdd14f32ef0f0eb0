package go_gen

import (
	"fmt"
	"strings"

	"github.com/kbirk/protonats/internal/parse"
	"github.com/kbirk/protonats/internal/util"
	"github.com/kbirk/protonats/pkg/rpc"
)

type ServiceMethodArgs struct {
	MethodName           string
	MethodNamePascalCase string
	DescVarName          string
	SuffixConstName      string
	Suffix               string
	Kind                 string
	Notification         bool
	ServerStreaming      bool
	RequestType          string
	ResponseType         string
	ServerReturn         string
	ServerHandler        string
	Comments             []string
}

type ServiceArgs struct {
	ServiceName         string
	ServerInterfaceName string
	StubStructName      string
	ClientStructName    string
	Methods             []ServiceMethodArgs
}

func (a ServiceArgs) HasStreaming() bool {
	for _, m := range a.Methods {
		if m.ServerStreaming {
			return true
		}
	}
	return false
}

func getServerInterfaceName(serviceName string) string {
	return util.EnsurePascalCase(serviceName) + "Server"
}

func getServerStubStructName(serviceName string) string {
	return fmt.Sprintf("%sServer_Stub", util.EnsureCamelCase(serviceName))
}

func getClientStructName(serviceName string) string {
	return util.EnsurePascalCase(serviceName) + "Client"
}

func methodDescVarName(serviceName string, methodName string) string {
	return util.EnsurePascalCase(serviceName) + util.EnsurePascalCase(methodName) + "Method"
}

func methodSuffixConstName(serviceName string, methodName string) string {
	return util.EnsurePascalCase(serviceName) + util.EnsurePascalCase(methodName) + "Suffix"
}

// commentLines returns the method's leading comment without its kind
// annotation, one entry per line.
func commentLines(comments string) []string {
	var lines []string
	for _, line := range strings.Split(comments, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, parse.AnnotationPrefix) {
			continue
		}
		lines = append(lines, line)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	return lines
}

func getServiceArgs(svc *parse.ServiceDefinition, imports *importSet, opts Options) (ServiceArgs, error) {

	methods, err := boundMethods(svc, opts)
	if err != nil {
		return ServiceArgs{}, err
	}

	args := ServiceArgs{
		ServiceName:         svc.Name,
		ServerInterfaceName: getServerInterfaceName(svc.Name),
		StubStructName:      getServerStubStructName(svc.Name),
		ClientStructName:    getClientStructName(svc.Name),
	}

	for _, method := range methods {
		m := ServiceMethodArgs{
			MethodName:           method.Name,
			MethodNamePascalCase: util.EnsurePascalCase(method.Name),
			DescVarName:          methodDescVarName(svc.Name, method.Name),
			SuffixConstName:      methodSuffixConstName(svc.Name, method.Name),
			Suffix:               method.SubjectSuffix(),
			RequestType:          imports.qualify(method.Input),
			Comments:             commentLines(method.Comments),
		}

		// notifications never reference their response type
		switch {
		case method.Kind() == rpc.KindNotification:
			m.Kind = "rpc.KindNotification"
			m.Notification = true
			m.ServerReturn = "error"
			m.ServerHandler = "rpc.HandleNotification"
		case method.ServerStreaming:
			m.Kind = "rpc.KindCall"
			m.ServerStreaming = true
			m.ResponseType = imports.qualify(method.Output)
			m.ServerReturn = fmt.Sprintf("iter.Seq2[*%s, error]", m.ResponseType)
			m.ServerHandler = "rpc.HandleServerStream"
		default:
			m.Kind = "rpc.KindCall"
			m.ResponseType = imports.qualify(method.Output)
			m.ServerReturn = fmt.Sprintf("(*%s, error)", m.ResponseType)
			m.ServerHandler = "rpc.HandleCall"
		}

		args.Methods = append(args.Methods, m)
	}

	return args, nil
}
