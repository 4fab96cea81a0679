// Package logging implements the command audit trail: an in-memory
// ring of recent command executions with live subscriptions, plus
// remote syslog forwarding.
package logging

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Audit results.
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultDenied      = "denied"
	ResultForwarded   = "forwarded"
	ResultSyntaxError = "syntax-error"
	ResultUnknown     = "unknown"
)

// CommandRecord is one audited command execution.
type CommandRecord struct {
	Time     time.Time
	ID       uuid.UUID
	Source   string
	Line     string
	Result   string // one of the Result* constants
	Detail   string // error or denial detail, if any
	Duration time.Duration
}

// AuditBuffer is a thread-safe circular buffer of recent command
// records.
type AuditBuffer struct {
	mu    sync.RWMutex
	buf   []CommandRecord
	size  int
	head  int // next write position
	count int

	subMu sync.RWMutex
	subs  map[*Subscription]struct{}
}

// Subscription receives new records from an AuditBuffer.
type Subscription struct {
	C  chan CommandRecord
	ab *AuditBuffer
}

// Close unsubscribes and stops delivery.
func (s *Subscription) Close() {
	s.ab.unsubscribe(s)
}

// NewAuditBuffer creates an audit buffer with the given capacity.
func NewAuditBuffer(size int) *AuditBuffer {
	if size < 1 {
		size = 1024
	}
	return &AuditBuffer{
		buf:  make([]CommandRecord, size),
		size: size,
		subs: make(map[*Subscription]struct{}),
	}
}

// Add appends a record, overwriting the oldest if full. Subscribers
// are notified non-blocking.
func (ab *AuditBuffer) Add(rec CommandRecord) {
	ab.mu.Lock()
	ab.buf[ab.head] = rec
	ab.head = (ab.head + 1) % ab.size
	if ab.count < ab.size {
		ab.count++
	}
	ab.mu.Unlock()

	ab.subMu.RLock()
	for sub := range ab.subs {
		select {
		case sub.C <- rec:
		default: // drop if subscriber is slow
		}
	}
	ab.subMu.RUnlock()
}

// Subscribe returns a Subscription that receives new records.
// Call Close() on the subscription when done.
func (ab *AuditBuffer) Subscribe(bufSize int) *Subscription {
	if bufSize < 1 {
		bufSize = 64
	}
	sub := &Subscription{
		C:  make(chan CommandRecord, bufSize),
		ab: ab,
	}
	ab.subMu.Lock()
	ab.subs[sub] = struct{}{}
	ab.subMu.Unlock()
	return sub
}

func (ab *AuditBuffer) unsubscribe(sub *Subscription) {
	ab.subMu.Lock()
	delete(ab.subs, sub)
	ab.subMu.Unlock()
}

// Filter specifies criteria for retrieving audit records.
type Filter struct {
	Source string // case-insensitive substring match on Source
	Result string // exact match on Result
}

// IsEmpty returns true if no filter criteria are set.
func (f Filter) IsEmpty() bool {
	return f.Source == "" && f.Result == ""
}

// Matches reports whether a record passes the filter. An empty
// filter matches everything.
func (f Filter) Matches(rec *CommandRecord) bool {
	if f.Source != "" && !strings.Contains(strings.ToLower(rec.Source), strings.ToLower(f.Source)) {
		return false
	}
	if f.Result != "" && rec.Result != f.Result {
		return false
	}
	return true
}

// LatestFiltered returns the most recent n records matching the
// filter, newest first.
func (ab *AuditBuffer) LatestFiltered(n int, f Filter) []CommandRecord {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	if n <= 0 {
		return nil
	}

	var result []CommandRecord
	for i := 0; i < ab.count && len(result) < n; i++ {
		idx := (ab.head - 1 - i + ab.size) % ab.size
		if f.Matches(&ab.buf[idx]) {
			result = append(result, ab.buf[idx])
		}
	}
	return result
}

// Latest returns the most recent n records, newest first.
func (ab *AuditBuffer) Latest(n int) []CommandRecord {
	return ab.LatestFiltered(n, Filter{})
}

// Len returns the number of records currently stored.
func (ab *AuditBuffer) Len() int {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.count
}

// Clear discards all stored records.
func (ab *AuditBuffer) Clear() {
	ab.mu.Lock()
	ab.head = 0
	ab.count = 0
	ab.mu.Unlock()
}
