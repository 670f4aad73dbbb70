package stream

import "sync"

// backlogEntry holds one broadcast envelope for reconnect backfill.
type backlogEntry struct {
	Seq  int64
	Data []byte
}

// Backlog is a fixed-size circular buffer of recent signal-event envelopes.
// Reconnecting clients present the last sequence number they saw and receive
// everything newer before joining the live feed.
//
// Thread-safe for concurrent writes and reads.
type Backlog struct {
	mu   sync.RWMutex
	buf  []backlogEntry
	cap  int
	pos  int // next write position
	full bool
}

// NewBacklog creates a backlog with the given capacity.
func NewBacklog(capacity int) *Backlog {
	if capacity <= 0 {
		capacity = 256
	}
	return &Backlog{
		buf: make([]backlogEntry, capacity),
		cap: capacity,
	}
}

// Push appends an envelope. Overwrites the oldest entry when full.
func (b *Backlog) Push(seq int64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Copy so the buffer never aliases the caller's slice.
	cp := make([]byte, len(data))
	copy(cp, data)

	b.buf[b.pos] = backlogEntry{Seq: seq, Data: cp}
	b.pos = (b.pos + 1) % b.cap
	if b.pos == 0 && !b.full {
		b.full = true
	}
}

// Since returns all entries with seq strictly greater than afterSeq, oldest
// first.
func (b *Backlog) Since(afterSeq int64) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result [][]byte
	count := b.len()
	for i := 0; i < count; i++ {
		e := b.buf[b.index(i)]
		if e.Seq > afterSeq {
			result = append(result, e.Data)
		}
	}
	return result
}

// Len returns the number of buffered entries.
func (b *Backlog) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.len()
}

func (b *Backlog) len() int {
	if b.full {
		return b.cap
	}
	return b.pos
}

// index converts a logical index (0 = oldest) to a physical buffer index.
func (b *Backlog) index(logical int) int {
	if b.full {
		return (b.pos + logical) % b.cap
	}
	return logical
}
