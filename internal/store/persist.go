package store

import "nebula/internal/protocol"

// Snapshot is the serializable state of the message store.
type Snapshot struct {
	Messages      map[string][]protocol.Message `json:"messages"`
	Unread        map[string]int                `json:"unread"`
	ActiveChannel string                        `json:"active_channel"`
}

// Persister is the external key-value persistence collaborator the store
// opts into. Load reports ok=false when no snapshot exists yet.
type Persister interface {
	Save(Snapshot) error
	Load() (snap Snapshot, ok bool, err error)
}
