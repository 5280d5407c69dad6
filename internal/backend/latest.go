package backend

import "sync"

// Latest sequences responses per resource key with a monotonic counter so a
// slow response never overwrites state produced by a request that was issued
// after it (last request wins).
type Latest struct {
	mu      sync.Mutex
	seq     uint64
	applied map[string]uint64
}

// Ticket identifies one request started with Begin.
type Ticket struct {
	key string
	seq uint64
}

func NewLatest() *Latest {
	return &Latest{
		applied: make(map[string]uint64),
	}
}

// Begin records a new request for key.
func (l *Latest) Begin(key string) Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	return Ticket{key: key, seq: l.seq}
}

// Commit runs apply under the tracker lock unless a request issued after t
// has already been applied. It reports whether apply ran.
func (l *Latest) Commit(t Ticket, apply func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.applied[t.key] > t.seq {
		return false
	}
	l.applied[t.key] = t.seq
	if apply != nil {
		apply()
	}
	return true
}
