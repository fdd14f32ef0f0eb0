package rpc

import "context"

// MethodDesc describes one bound method. Generated code declares one
// MethodDesc per method and shares it between the client and server sides
// so both derive the same subject.
type MethodDesc struct {
	Service         string
	Method          string
	Suffix          string
	Kind            MethodKind
	ServerStreaming bool
}

// FullName returns "<Service>.<Method>".
func (d MethodDesc) FullName() string {
	if d.Service == "" {
		return d.Method
	}
	return d.Service + "." + d.Method
}

// Subject returns the wire subject of the method under prefix.
func (d MethodDesc) Subject(prefix string) string {
	return JoinSubject(prefix, d.Suffix)
}

// ServiceStub is implemented by generated server code. The server routes a
// message to the stub owning its subject suffix and the stub decodes it,
// invokes the user implementation and replies through the server.
type ServiceStub interface {
	ServiceName() string
	Methods() []MethodDesc
	HandleMessage(ctx context.Context, server *Server, desc MethodDesc, msg *Msg) error
}
