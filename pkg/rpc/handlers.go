package rpc

import (
	"context"
	"iter"

	"google.golang.org/protobuf/proto"
)

// HandleCall serves a unary method: msg is decoded into req, fn is invoked
// and its response is published to the reply subject. A message without a
// reply subject still reaches fn; the missing reply is reported as
// UnaddressableReply.
func HandleCall[Req proto.Message, Resp proto.Message](ctx context.Context, s *Server, desc MethodDesc, msg *Msg, req Req, fn func(context.Context, Req) (Resp, error)) error {
	if err := s.codec.Unmarshal(msg.Data, req); err != nil {
		return NewError(DecodeFailure, desc, msg.Subject, err)
	}

	resp, err := fn(ctx, req)
	if err != nil {
		return NewError(HandlerFailure, desc, msg.Subject, err)
	}

	if msg.Reply == "" {
		return NewError(UnaddressableReply, desc, msg.Subject, errNoReplySubject)
	}
	return s.reply(ctx, desc, msg, resp)
}

// HandleServerStream serves a server-streaming method. Every element
// produced by fn is published to the reply subject in production order. A
// message without a reply subject is reported as UnaddressableReply and the
// sequence is not consumed. An error yielded by the sequence stops it and is
// reported as HandlerFailure.
func HandleServerStream[Req proto.Message, Resp proto.Message](ctx context.Context, s *Server, desc MethodDesc, msg *Msg, req Req, fn func(context.Context, Req) iter.Seq2[Resp, error]) error {
	if err := s.codec.Unmarshal(msg.Data, req); err != nil {
		return NewError(DecodeFailure, desc, msg.Subject, err)
	}

	seq := fn(ctx, req)

	if msg.Reply == "" {
		return NewError(UnaddressableReply, desc, msg.Subject, errNoReplySubject)
	}

	for resp, err := range seq {
		if err != nil {
			return NewError(HandlerFailure, desc, msg.Subject, err)
		}
		if err := s.reply(ctx, desc, msg, resp); err != nil {
			return err
		}
	}
	return nil
}

// HandleNotification serves a fire-and-forget method. Nothing is published
// back; a reply subject, if present, is ignored.
func HandleNotification[Req proto.Message](ctx context.Context, s *Server, desc MethodDesc, msg *Msg, req Req, fn func(context.Context, Req) error) error {
	if err := s.codec.Unmarshal(msg.Data, req); err != nil {
		return NewError(DecodeFailure, desc, msg.Subject, err)
	}
	if err := fn(ctx, req); err != nil {
		return NewError(HandlerFailure, desc, msg.Subject, err)
	}
	return nil
}
