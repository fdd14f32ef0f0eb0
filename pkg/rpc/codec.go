package rpc

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Codec converts messages to and from wire payloads. Client and server must
// use the same codec.
type Codec interface {
	Name() string
	Marshal(proto.Message) ([]byte, error)
	Unmarshal([]byte, proto.Message) error
}

// ProtoCodec is the binary protobuf encoding. It is the default codec.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return "proto" }

func (ProtoCodec) Marshal(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

func (ProtoCodec) Unmarshal(data []byte, m proto.Message) error {
	return proto.Unmarshal(data, m)
}

// JSONCodec is the canonical protobuf JSON encoding.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(m proto.Message) ([]byte, error) {
	return protojson.Marshal(m)
}

func (JSONCodec) Unmarshal(data []byte, m proto.Message) error {
	return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, m)
}

// CodecByName returns the codec registered under name, defaulting to
// ProtoCodec for an empty name.
func CodecByName(name string) (Codec, bool) {
	switch name {
	case "", "proto", "protobuf":
		return ProtoCodec{}, true
	case "json":
		return JSONCodec{}, true
	default:
		return nil, false
	}
}
