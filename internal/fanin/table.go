// Package fanin implements the request correlation core: a concurrency-safe
// pending request table, per-request timeout supervision, completion
// evaluation, and exactly-once response assembly for jobs fanned out to
// asynchronous worker pools.
package fanin

import (
	"sync"
	"time"

	"github.com/jeffasante/photo-mood/internal/errs"
)

// ServiceError records a failure reported by (or on behalf of) one service.
type ServiceError struct {
	Service string `json:"service"`
	Error   string `json:"error"`
}

// CompletionFunc delivers the final outcome to the original caller. The
// table guarantees it is invoked at most once per correlation id.
type CompletionFunc func(Outcome)

// Entry is the accumulated state of one in-flight request. Entries are owned
// by the Table; all mutation happens under the table mutex.
type Entry struct {
	CorrelationID string
	Expected      []string
	Received      map[string]map[string]any
	Errors        []ServiceError
	TimedOut      bool
	RegisteredAt  time.Time

	timer    *time.Timer
	complete CompletionFunc
}

// isComplete implements the completion policy: every expected service has
// reported, or any error has been recorded (fail-fast). One failing service
// should not make the caller wait out the full deadline for the rest.
func (e *Entry) isComplete() bool {
	if len(e.Errors) > 0 {
		return true
	}
	for _, svc := range e.Expected {
		if _, ok := e.Received[svc]; !ok {
			return false
		}
	}
	return true
}

// Table is the single source of truth for which requests are still in
// flight. One mutex serializes admission, reply processing, and deadline
// firing, so the reply/timeout race on an entry is resolved inside the map
// operation itself: removal is atomic and only one caller ever receives the
// finalized entry.
type Table struct {
	mu      sync.Mutex
	entries map[string]*Entry
	closed  bool
}

// NewTable returns an empty pending request table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Register admits a request under the given correlation id. The arm callback
// runs under the table lock so the deadline timer is in place before any
// reply or expiry can observe the entry.
func (t *Table) Register(id string, expected []string, hook CompletionFunc, arm func() *time.Timer) (*Entry, error) {
	if len(expected) == 0 {
		return nil, errs.ErrNoExpectedServices
	}
	if hook == nil {
		return nil, errs.ErrCompletionHookRequired
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, errs.ErrTableClosed
	}
	if _, ok := t.entries[id]; ok {
		return nil, errs.ErrDuplicateCorrelationID
	}

	entry := &Entry{
		CorrelationID: id,
		Expected:      append([]string(nil), expected...),
		Received:      make(map[string]map[string]any, len(expected)),
		RegisteredAt:  time.Now(),
		complete:      hook,
	}
	if arm != nil {
		entry.timer = arm()
	}
	t.entries[id] = entry
	return entry, nil
}

// RecordSuccess stores a service payload. found reports whether the id was
// in flight; finalized is non-nil only for the single caller whose append
// completed the entry, which then owns delivery.
func (t *Table) RecordSuccess(id, service string, data map[string]any) (finalized *Entry, found bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	// First reply per service wins; a redelivered duplicate must not
	// overwrite the payload already recorded.
	if _, dup := entry.Received[service]; dup {
		return nil, true
	}
	entry.Received[service] = data
	if entry.isComplete() {
		delete(t.entries, id)
		return entry, true
	}
	return nil, true
}

// RecordError appends a failure for one service. Under the fail-fast policy
// any recorded error completes the entry, so the caller that lands the first
// error wins the entry and owns delivery.
func (t *Table) RecordError(id, service, message string) (finalized *Entry, found bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	entry.Errors = append(entry.Errors, ServiceError{Service: service, Error: message})
	if entry.isComplete() {
		delete(t.entries, id)
		return entry, true
	}
	return nil, true
}

// Expire atomically takes the entry for a fired deadline and marks it timed
// out. Returns false when natural completion already removed it, in which
// case the deadline is a no-op.
func (t *Table) Expire(id string) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	entry.TimedOut = true
	delete(t.entries, id)
	return entry, true
}

// Take atomically removes and returns the entry. Only one of any racing
// callers receives it; all others get false.
func (t *Table) Take(id string) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	delete(t.entries, id)
	return entry, true
}

// Len reports the number of in-flight correlation ids.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Drain closes the table for new registrations and removes every remaining
// entry so shutdown can finalize them. Further Register calls fail with
// ErrTableClosed.
func (t *Table) Drain() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	drained := make([]*Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		drained = append(drained, entry)
	}
	t.entries = make(map[string]*Entry)
	return drained
}
