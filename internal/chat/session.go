package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"nebula/internal/api"
	"nebula/internal/directory"
	"nebula/internal/gateway"
	"nebula/internal/protocol"
	"nebula/internal/store"
)

var ErrNoActiveChannel = errors.New("chat: no active channel")

// Session binds the gateway dispatch stream to the message store and the
// server/channel directory, and owns the current composition: active
// server, active channel, composer draft.
type Session struct {
	gw       *gateway.Client
	auth     *store.AuthStore
	messages *store.MessageStore
	dir      *directory.Directory
	api      *api.Client

	mu       sync.Mutex
	composer string
}

func NewSession(gw *gateway.Client, auth *store.AuthStore, messages *store.MessageStore, dir *directory.Directory, apiClient *api.Client) *Session {
	s := &Session{
		gw:       gw,
		auth:     auth,
		messages: messages,
		dir:      dir,
		api:      apiClient,
	}
	gw.OnDispatch(s.handleDispatch)
	return s
}

func (s *Session) Connect(ctx context.Context) {
	s.gw.Connect(ctx)
}

// Disconnect tears the session down and clears the message cache so a
// later session cannot leak this one's messages.
func (s *Session) Disconnect() {
	s.gw.Disconnect()
	s.messages.ClearAll()
}

// Close releases the gateway transport on unmount.
func (s *Session) Close() {
	s.gw.Close()
}

func (s *Session) handleDispatch(ev *protocol.Event) {
	switch ev.Type {
	case protocol.EventReady:
		s.handleReady(ev.Ready)
	case protocol.EventMessageCreated:
		s.handleMessageCreated(ev.MessageCreated)
	case protocol.EventError:
		s.gw.SetStatus(gateway.StatusError, "Gateway error: "+ev.Err.Code)
	}
}

func (s *Session) handleReady(d *protocol.ReadyEvent) {
	s.auth.SetCurrentUser(store.CurrentUser{
		ID:          d.UserID,
		Username:    d.Username,
		IsDeveloper: d.IsDeveloper,
	})

	servers := make([]protocol.Server, 0, len(d.Servers))
	for _, r := range d.Servers {
		servers = append(servers, protocol.ServerFromResponse(r))
	}
	s.dir.HydrateFromReady(servers)

	s.gw.SetStatus(gateway.StatusReady, "User "+d.Username)

	if ch := s.dir.ActiveChannelID(); ch != "" {
		s.messages.SetActiveChannel(ch)
		s.sendSubscribe(ch)
	}
}

func (s *Session) handleMessageCreated(d *protocol.MessageCreatedEvent) {
	// The same message can arrive through a history page first; the id is
	// the de-duplication key.
	if s.messages.Contains(d.ChannelID, d.ID) {
		return
	}
	s.messages.AddMessage(d.ChannelID, protocol.MessageFromEvent(d))
}

func (s *Session) sendSubscribe(channelID string) {
	s.gw.Send(protocol.NewSubscribe(channelID))
}

// SendMessage sends the composer draft to the active channel. The sent
// message is not inserted optimistically; it comes back through the
// MESSAGE_CREATE dispatch path and the dedup rule keeps that safe.
func (s *Session) SendMessage() {
	s.mu.Lock()
	content := strings.TrimSpace(s.composer)
	s.mu.Unlock()
	if content == "" {
		return
	}
	if s.gw.Status() != gateway.StatusReady {
		s.gw.SetStatusNote("Not ready: login/identify first")
		return
	}
	s.gw.Send(protocol.NewCreateMessage(s.dir.ActiveChannelID(), content))
	s.mu.Lock()
	s.composer = ""
	s.mu.Unlock()
}

// SwitchChannel activates a channel, marks it read and, when the session
// is ready, subscribes to its event stream. Ids the directory does not
// hold under the active server are ignored.
func (s *Session) SwitchChannel(channelID string) {
	if !s.dir.SwitchChannel(channelID) {
		return
	}
	s.messages.SetActiveChannel(channelID)
	if s.gw.Status() == gateway.StatusReady {
		s.sendSubscribe(channelID)
	}
}

// SwitchServer activates a server; the active channel resets to the
// server's first channel, or none.
func (s *Session) SwitchServer(serverID string) {
	s.dir.SwitchServer(serverID)
	if ch := s.dir.ActiveChannelID(); ch != "" {
		s.messages.SetActiveChannel(ch)
		if s.gw.Status() == gateway.StatusReady {
			s.sendSubscribe(ch)
		}
	}
}

// LoadHistory hydrates the active channel from the latest history page.
func (s *Session) LoadHistory(ctx context.Context) error {
	ch := s.dir.ActiveChannelID()
	if ch == "" {
		return ErrNoActiveChannel
	}
	page, err := s.api.History(ctx, ch, "", api.DefaultPageSize)
	if err != nil {
		return err
	}
	s.messages.SetMessages(ch, api.Chronological(page))
	return nil
}

// LoadOlder fetches the page before the oldest cached message and merges
// it in front of the list. Ids already cached are dropped, so racing with
// the live stream is harmless.
func (s *Session) LoadOlder(ctx context.Context) error {
	ch := s.dir.ActiveChannelID()
	if ch == "" {
		return ErrNoActiveChannel
	}
	existing := s.messages.Messages(ch)
	before := ""
	if len(existing) > 0 {
		before = existing[0].ID
	}
	page, err := s.api.History(ctx, ch, before, api.DefaultPageSize)
	if err != nil {
		return err
	}
	s.messages.PrependMessages(ch, api.Chronological(page))
	return nil
}

func (s *Session) CreateServer(ctx context.Context, name string) error {
	created, err := s.api.CreateServer(ctx, name)
	if err != nil {
		return err
	}
	s.dir.AddServer(created)
	slog.Info("[CreateServer]", "serverId", created.ID, "name", created.Name)
	return nil
}

func (s *Session) DeleteServer(ctx context.Context, serverID string) error {
	if err := s.api.DeleteServer(ctx, serverID); err != nil {
		return err
	}
	s.dir.RemoveServer(serverID)
	return nil
}

func (s *Session) CreateChannel(ctx context.Context, name string) error {
	serverID := s.dir.ActiveServerID()
	created, err := s.api.CreateChannel(ctx, serverID, name)
	if err != nil {
		return err
	}
	s.dir.AddChannel(created)
	slog.Info("[CreateChannel]", "channelId", created.ID, "name", created.Name)
	return nil
}

func (s *Session) DeleteChannel(ctx context.Context, channelID string) error {
	if err := s.api.DeleteChannel(ctx, channelID); err != nil {
		return err
	}
	s.dir.RemoveChannel(channelID)
	if active := s.dir.ActiveChannelID(); active != "" && active != channelID {
		s.messages.SetActiveChannel(active)
	}
	s.messages.ClearChannel(channelID)
	return nil
}

func (s *Session) Composer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composer
}

func (s *Session) SetComposer(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composer = text
}

func (s *Session) Status() gateway.Status    { return s.gw.Status() }
func (s *Session) StatusNote() string        { return s.gw.StatusNote() }
func (s *Session) StatusLabel() string       { return s.gw.StatusLabel() }
func (s *Session) GatewayLog() []string      { return s.gw.Log().Entries() }
func (s *Session) ActiveChannelID() string   { return s.dir.ActiveChannelID() }
func (s *Session) ActiveServerID() string    { return s.dir.ActiveServerID() }
func (s *Session) ActiveChannelName() string { return s.dir.ActiveChannelName() }

// FilteredMessages is the active channel's list in arrival order.
func (s *Session) FilteredMessages() []protocol.Message {
	ch := s.dir.ActiveChannelID()
	if ch == "" {
		return nil
	}
	return s.messages.Messages(ch)
}

// UnreadCount exposes the store's clamped counter for sidebar badges.
func (s *Session) UnreadCount(channelID string) int {
	return s.messages.UnreadCount(channelID)
}
