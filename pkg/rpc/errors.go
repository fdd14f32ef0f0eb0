package rpc

import (
	"errors"
	"fmt"
)

// ErrorKind identifies the protocol step that failed.
type ErrorKind uint8

const (
	EncodeFailure ErrorKind = iota + 1
	DecodeFailure
	TransportFailure
	HandlerFailure
	UnroutableSubject
	UnaddressableReply
)

func (k ErrorKind) String() string {
	switch k {
	case EncodeFailure:
		return "encode"
	case DecodeFailure:
		return "decode"
	case TransportFailure:
		return "transport"
	case HandlerFailure:
		return "handler"
	case UnroutableSubject:
		return "unroutable subject"
	case UnaddressableReply:
		return "unaddressable reply"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrEncodeFailure      = kindError(EncodeFailure)
	ErrDecodeFailure      = kindError(DecodeFailure)
	ErrTransportFailure   = kindError(TransportFailure)
	ErrHandlerFailure     = kindError(HandlerFailure)
	ErrUnroutableSubject  = kindError(UnroutableSubject)
	ErrUnaddressableReply = kindError(UnaddressableReply)
)

var (
	errNoReplySubject = errors.New("no reply subject found in message")
	errNoReply        = errors.New("no reply received")
)

type kindError ErrorKind

func (e kindError) Error() string {
	return ErrorKind(e).String() + " failure"
}

// Error is returned for every failure of a call or a dispatched message.
type Error struct {
	Kind    ErrorKind
	Service string
	Method  string
	Subject string
	Err     error
}

// NewError tags err with the failing step and the method it occurred in.
func NewError(kind ErrorKind, desc MethodDesc, subject string, err error) *Error {
	return &Error{
		Kind:    kind,
		Service: desc.Service,
		Method:  desc.Method,
		Subject: subject,
		Err:     err,
	}
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " failure"
	if e.Method != "" {
		if e.Service != "" {
			msg += fmt.Sprintf(" in %s.%s", e.Service, e.Method)
		} else {
			msg += " in " + e.Method
		}
	}
	if e.Subject != "" {
		msg += fmt.Sprintf(" (subject %q)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	k, ok := target.(kindError)
	return ok && ErrorKind(k) == e.Kind
}

// KindOf returns the ErrorKind carried by err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
