package rpc

import "strings"

// MethodKind classifies a method as a reply-expecting call or a
// fire-and-forget notification.
type MethodKind uint8

const (
	KindCall MethodKind = iota
	KindNotification
)

// NotificationPrefix marks a method as a notification when no explicit
// annotation is present. The match is case-sensitive and applied to the raw
// identifier.
const NotificationPrefix = "subscribe"

func (k MethodKind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// ClassifyMethodName applies the naming convention: identifiers starting
// with NotificationPrefix are notifications, everything else is a call.
func ClassifyMethodName(name string) MethodKind {
	if strings.HasPrefix(name, NotificationPrefix) {
		return KindNotification
	}
	return KindCall
}

// ParseMethodKind parses an explicit annotation value ("call" or
// "notification", case-insensitive).
func ParseMethodKind(s string) (MethodKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return KindCall, true
	case "notification":
		return KindNotification, true
	default:
		return KindCall, false
	}
}
