package gateway

import "sync"

// Log is the newest-first diagnostics feed of frame kinds and lifecycle
// marks. Diagnostics only, never consulted for correctness.
type Log struct {
	mu      sync.Mutex
	entries []string
}

func (l *Log) Push(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]string{entry}, l.entries...)
}

// Entries returns a snapshot, newest first.
func (l *Log) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
