package rpc

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InboxPrefix is the first token of generated inbox subjects. It matches the
// prefix NATS uses for its own inboxes.
const InboxPrefix = "_INBOX"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewInboxSubject returns a unique, time-sortable inbox subject for buses
// without a native inbox generator.
func NewInboxSubject() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return InboxPrefix + SubjectDelimiter + id.String()
}
