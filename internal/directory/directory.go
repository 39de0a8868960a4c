package directory

import (
	"sync"

	"nebula/internal/protocol"
)

// Directory is the in-memory server/channel tree plus the active server
// and channel pointers. The active channel, when set, always belongs to
// the active server's channel list.
type Directory struct {
	mu            sync.RWMutex
	servers       []protocol.Server
	activeServer  string
	activeChannel string
}

func New() *Directory {
	return &Directory{}
}

// HydrateFromReady replaces the tree with the READY payload's servers and
// defaults the active pointers to the first server and its first channel
// when they are not set yet.
func (d *Directory) HydrateFromReady(servers []protocol.Server) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.servers = servers
	if d.activeServer == "" && len(servers) > 0 {
		d.activeServer = servers[0].ID
	}
	if d.activeChannel == "" {
		if chs := d.channelsLocked(); len(chs) > 0 {
			d.activeChannel = chs[0].ID
		}
	}
}

func (d *Directory) Servers() []protocol.Server {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]protocol.Server, len(d.servers))
	copy(out, d.servers)
	return out
}

func (d *Directory) ActiveServerID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.activeServer
}

func (d *Directory) ActiveChannelID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.activeChannel
}

func (d *Directory) ActiveServer() (protocol.Server, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.servers {
		if s.ID == d.activeServer {
			return s, true
		}
	}
	return protocol.Server{}, false
}

// ActiveServerRole defaults to member when no server is active.
func (d *Directory) ActiveServerRole() string {
	if s, ok := d.ActiveServer(); ok && s.MyRole != "" {
		return s.MyRole
	}
	return "member"
}

// Channels lists the active server's channels.
func (d *Directory) Channels() []protocol.Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	chs := d.channelsLocked()
	out := make([]protocol.Channel, len(chs))
	copy(out, chs)
	return out
}

func (d *Directory) ActiveChannel() (protocol.Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.channelsLocked() {
		if c.ID == d.activeChannel {
			return c, true
		}
	}
	return protocol.Channel{}, false
}

func (d *Directory) ActiveChannelName() string {
	if c, ok := d.ActiveChannel(); ok {
		return c.Name
	}
	return ""
}

// SwitchServer activates a server and resets the active channel to its
// first channel, or none.
func (d *Directory) SwitchServer(serverID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activeServer = serverID
	d.activeChannel = ""
	if chs := d.channelsLocked(); len(chs) > 0 {
		d.activeChannel = chs[0].ID
	}
}

// SwitchChannel activates a channel of the active server. Ids outside the
// active server's channel list are ignored, keeping the active pointer
// inside the tree; it reports whether the switch happened.
func (d *Directory) SwitchChannel(channelID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.channelsLocked() {
		if c.ID == channelID {
			d.activeChannel = channelID
			return true
		}
	}
	return false
}

// AddServer reconciles a REST-created server into the tree.
func (d *Directory) AddServer(s protocol.Server) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.servers = append(d.servers, s)
	if d.activeServer == "" {
		d.activeServer = s.ID
		if len(s.Channels) > 0 {
			d.activeChannel = s.Channels[0].ID
		}
	}
}

// RemoveServer drops a server; when it was active, the first remaining
// server (and its first channel) becomes active.
func (d *Directory) RemoveServer(serverID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.servers[:0]
	for _, s := range d.servers {
		if s.ID != serverID {
			kept = append(kept, s)
		}
	}
	d.servers = kept
	if d.activeServer != serverID {
		return
	}
	d.activeServer = ""
	d.activeChannel = ""
	if len(d.servers) > 0 {
		d.activeServer = d.servers[0].ID
		if chs := d.channelsLocked(); len(chs) > 0 {
			d.activeChannel = chs[0].ID
		}
	}
}

// AddChannel appends a channel to its server.
func (d *Directory) AddChannel(c protocol.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.servers {
		if d.servers[i].ID == c.ServerID {
			d.servers[i].Channels = append(d.servers[i].Channels, c)
			return
		}
	}
}

// RemoveChannel drops a channel; when it was active, the active server's
// first remaining channel becomes active.
func (d *Directory) RemoveChannel(channelID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.servers {
		kept := d.servers[i].Channels[:0]
		for _, c := range d.servers[i].Channels {
			if c.ID != channelID {
				kept = append(kept, c)
			}
		}
		d.servers[i].Channels = kept
	}
	if d.activeChannel != channelID {
		return
	}
	d.activeChannel = ""
	if chs := d.channelsLocked(); len(chs) > 0 {
		d.activeChannel = chs[0].ID
	}
}

func (d *Directory) channelsLocked() []protocol.Channel {
	for _, s := range d.servers {
		if s.ID == d.activeServer {
			return s.Channels
		}
	}
	return nil
}
