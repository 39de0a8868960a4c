package store

import (
	"log/slog"
	"sync"

	"nebula/internal/protocol"
)

// DefaultInactiveLimit is the retention limit for channels the user is not
// viewing. Inactive channels keep receiving live traffic; unbounded
// accumulation is a memory leak over a long session.
const DefaultInactiveLimit = 25

// MessageStore keeps the per-channel ordered message lists, unread
// counters and the active-channel pointer. It is the single process-wide
// cache for one session; the orchestrator is its only writer, reads may
// come from anywhere.
type MessageStore struct {
	mu        sync.RWMutex
	limit     int
	byChannel map[string][]protocol.Message
	unread    map[string]int
	active    string
	persister Persister
}

type MessageStoreOption func(*MessageStore)

func WithInactiveLimit(n int) MessageStoreOption {
	return func(s *MessageStore) { s.limit = n }
}

// WithPersister opts the store into external persistence. The snapshot is
// restored at construction and written back after every mutation.
func WithPersister(p Persister) MessageStoreOption {
	return func(s *MessageStore) { s.persister = p }
}

func NewMessageStore(opts ...MessageStoreOption) *MessageStore {
	s := &MessageStore{
		limit:     DefaultInactiveLimit,
		byChannel: make(map[string][]protocol.Message),
		unread:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restore()
	return s
}

// Messages returns the current ordered list for the channel. Each call
// reads the latest state; the returned slice is a consistent snapshot.
func (s *MessageStore) Messages(channelID string) []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.byChannel[channelID]
	out := make([]protocol.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Contains reports whether the channel already holds a message with the id.
func (s *MessageStore) Contains(channelID, messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.byChannel[channelID] {
		if m.ID == messageID {
			return true
		}
	}
	return false
}

// UnreadCount is clamped to the stored message count: trimming can drop
// messages faster than the counter resets, and the counter must never
// exceed the data actually available.
func (s *MessageStore) UnreadCount(channelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := s.unread[channelID]
	if n := len(s.byChannel[channelID]); count > n {
		return n
	}
	return count
}

func (s *MessageStore) ActiveChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActiveChannel records the pointer and marks the channel read.
// Switching away does not retroactively mark prior messages unread.
func (s *MessageStore) SetActiveChannel(channelID string) {
	s.mu.Lock()
	s.active = channelID
	s.unread[channelID] = 0
	s.mu.Unlock()
	s.persist()
}

// AddMessage appends to the channel's list. Inactive channels take an
// unread increment and are trimmed from the oldest end to the retention
// limit; the active channel is exempt from both.
func (s *MessageStore) AddMessage(channelID string, m protocol.Message) {
	s.mu.Lock()
	msgs := append(s.byChannel[channelID], m)
	if channelID != s.active {
		s.unread[channelID]++
		if len(msgs) > s.limit {
			msgs = msgs[len(msgs)-s.limit:]
		}
	}
	s.byChannel[channelID] = msgs
	s.mu.Unlock()
	s.persist()
}

// SetMessages replaces the channel's list, used when hydrating from a
// history fetch. The unread counter is untouched.
func (s *MessageStore) SetMessages(channelID string, msgs []protocol.Message) {
	cp := make([]protocol.Message, len(msgs))
	copy(cp, msgs)
	s.mu.Lock()
	s.byChannel[channelID] = cp
	s.mu.Unlock()
	s.persist()
}

// PrependMessages merges a batch of older messages in front of the
// existing list, dropping any whose id is already present so re-fetching a
// page is idempotent.
func (s *MessageStore) PrependMessages(channelID string, older []protocol.Message) {
	s.mu.Lock()
	existing := s.byChannel[channelID]
	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}
	merged := make([]protocol.Message, 0, len(older)+len(existing))
	for _, m := range older {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	merged = append(merged, existing...)
	s.byChannel[channelID] = merged
	s.mu.Unlock()
	s.persist()
}

func (s *MessageStore) ClearChannel(channelID string) {
	s.mu.Lock()
	delete(s.byChannel, channelID)
	delete(s.unread, channelID)
	s.mu.Unlock()
	s.persist()
}

// ClearAll drops every list, counter and the active pointer. Called on
// session teardown so a later session cannot observe prior messages.
func (s *MessageStore) ClearAll() {
	s.mu.Lock()
	s.byChannel = make(map[string][]protocol.Message)
	s.unread = make(map[string]int)
	s.active = ""
	s.mu.Unlock()
	s.persist()
}

func (s *MessageStore) persist() {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(s.snapshot()); err != nil {
		slog.Error("store: persist snapshot", "error", err)
	}
}

func (s *MessageStore) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Messages:      make(map[string][]protocol.Message, len(s.byChannel)),
		Unread:        make(map[string]int, len(s.unread)),
		ActiveChannel: s.active,
	}
	for ch, msgs := range s.byChannel {
		cp := make([]protocol.Message, len(msgs))
		copy(cp, msgs)
		snap.Messages[ch] = cp
	}
	for ch, n := range s.unread {
		snap.Unread[ch] = n
	}
	return snap
}

func (s *MessageStore) restore() {
	if s.persister == nil {
		return
	}
	snap, ok, err := s.persister.Load()
	if err != nil {
		slog.Error("store: load snapshot", "error", err)
		return
	}
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch, msgs := range snap.Messages {
		s.byChannel[ch] = msgs
	}
	for ch, n := range snap.Unread {
		s.unread[ch] = n
	}
	s.active = snap.ActiveChannel
}
