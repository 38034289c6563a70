// Package ids generates the correlation identifiers that tie an inbound
// request to its fanned-out jobs and their replies.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewCorrelationID returns a collision-free, time-sortable ULID encoded as a
// 26-character string. ULIDs are as unique as UUIDv4 and sort by admission
// time, which makes log output for concurrent requests easy to follow.
func NewCorrelationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}
