package rpc

import (
	"strings"

	"github.com/kbirk/protonats/internal/util"
)

const (
	// DefaultPrefix is the subject prefix used when none is configured.
	DefaultPrefix = "nats.proto"
	// SubjectDelimiter separates subject tokens.
	SubjectDelimiter = "."

	singleTokenWildcard = "*"
	fullWildcard        = ">"
)

// SubjectSuffix derives the per-method subject suffix from a method
// identifier: the identifier is converted to lower-case words which are then
// joined with the subject delimiter. "StartComponent" becomes
// "start.component".
func SubjectSuffix(methodName string) string {
	return util.EnsureDelimitedLowerCase(methodName, SubjectDelimiter)
}

// NormalizePrefix strips every trailing delimiter from prefix. An empty
// result falls back to DefaultPrefix.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, SubjectDelimiter)
	if prefix == "" {
		return DefaultPrefix
	}
	return prefix
}

// JoinSubject composes the wire subject for a method. Exactly one delimiter
// separates prefix and suffix regardless of how many trailing delimiters the
// prefix was supplied with.
func JoinSubject(prefix string, suffix string) string {
	return NormalizePrefix(prefix) + SubjectDelimiter + suffix
}

// WildcardSubject returns the pattern matching every subject nested under
// prefix.
func WildcardSubject(prefix string) string {
	return JoinSubject(prefix, fullWildcard)
}

// TrimSubjectPrefix strips prefix and the joining delimiter from subject.
// It reports false when subject is not nested under prefix.
func TrimSubjectPrefix(subject string, prefix string) (string, bool) {
	head := NormalizePrefix(prefix) + SubjectDelimiter
	if !strings.HasPrefix(subject, head) || len(subject) == len(head) {
		return "", false
	}
	return subject[len(head):], true
}

// MatchSubject reports whether subject matches pattern. "*" matches exactly
// one token and a trailing ">" matches one or more tokens.
func MatchSubject(pattern string, subject string) bool {
	pTokens := strings.Split(pattern, SubjectDelimiter)
	sTokens := strings.Split(subject, SubjectDelimiter)
	for i, p := range pTokens {
		if p == fullWildcard && i == len(pTokens)-1 {
			return len(sTokens) > i
		}
		if i >= len(sTokens) {
			return false
		}
		if p != singleTokenWildcard && p != sTokens[i] {
			return false
		}
	}
	return len(pTokens) == len(sTokens)
}
