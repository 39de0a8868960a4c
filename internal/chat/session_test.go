package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"nebula/internal/api"
	"nebula/internal/chat"
	"nebula/internal/directory"
	"nebula/internal/gateway"
	"nebula/internal/identity"
	"nebula/internal/protocol"
	"nebula/internal/socket"
	"nebula/internal/store"
)

type fakeTransport struct {
	cb   socket.Callbacks
	open bool
	sent []protocol.Payload
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.open = true
	if f.cb.OnOpen != nil {
		f.cb.OnOpen()
	}
	return nil
}

func (f *fakeTransport) Disconnect()  { f.open = false }
func (f *fakeTransport) IsOpen() bool { return f.open }

func (f *fakeTransport) Send(p protocol.Payload) bool {
	if !f.open {
		return false
	}
	f.sent = append(f.sent, p)
	return true
}

func (f *fakeTransport) ops() []string {
	var ops []string
	for _, p := range f.sent {
		ops = append(ops, p.Op)
	}
	return ops
}

type fixture struct {
	session   *chat.Session
	gw        *gateway.Client
	transport *fakeTransport
	messages  *store.MessageStore
	auth      *store.AuthStore
	dir       *directory.Directory
}

func newFixture(t *testing.T, apiClient *api.Client) *fixture {
	t.Helper()
	f := &fakeTransport{}
	provider := identity.NewStaticProvider("tok1")
	gw := gateway.NewClient(provider, func(cb socket.Callbacks) gateway.Transport {
		f.cb = cb
		return f
	})
	fx := &fixture{
		gw:        gw,
		transport: f,
		messages:  store.NewMessageStore(),
		auth:      store.NewAuthStore(),
		dir:       directory.New(),
	}
	fx.session = chat.NewSession(gw, fx.auth, fx.messages, fx.dir, apiClient)
	return fx
}

func (fx *fixture) dispatch(t *testing.T, typ protocol.EventType, body interface{}) {
	t.Helper()
	d, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal dispatch body: %s", err)
	}
	raw, err := json.Marshal(protocol.Dispatch{T: typ, D: d})
	if err != nil {
		t.Fatalf("marshal dispatch: %s", err)
	}
	fx.transport.cb.OnMessage(protocol.Payload{Op: protocol.OpDispatch, D: raw})
}

func readyEvent() protocol.ReadyEvent {
	return protocol.ReadyEvent{
		ConnectionID: "conn-1",
		UserID:       "u1",
		Username:     "alice",
		IsDeveloper:  false,
		Servers: []protocol.ServerResponse{
			{
				ID: "s1", Name: "home", OwnerUserID: "u1", MyRole: "owner",
				Channels: []protocol.ChannelResponse{
					{ID: "c1", ServerID: "s1", Name: "general", Type: "text"},
					{ID: "c2", ServerID: "s1", Name: "random", Type: "text"},
				},
			},
		},
	}
}

func messageEvent(id, channelID, content string) protocol.MessageCreatedEvent {
	return protocol.MessageCreatedEvent{
		ID:             id,
		ChannelID:      channelID,
		AuthorUserID:   "u2",
		AuthorUsername: "bob",
		Content:        content,
		Timestamp:      "2026-08-30T12:00:00Z",
	}
}

func TestReadyHydratesSessionAndSubscribes(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())

	fx.dispatch(t, protocol.EventReady, readyEvent())

	if fx.session.Status() != gateway.StatusReady {
		t.Fatalf("status = %s, want %s", fx.session.Status(), gateway.StatusReady)
	}
	if fx.session.StatusNote() != "User alice" {
		t.Errorf("note = %q", fx.session.StatusNote())
	}
	if fx.session.ActiveServerID() != "s1" || fx.session.ActiveChannelID() != "c1" {
		t.Errorf("active server=%s channel=%s", fx.session.ActiveServerID(), fx.session.ActiveChannelID())
	}
	if u, ok := fx.auth.CurrentUser(); !ok || u.ID != "u1" || u.Username != "alice" {
		t.Errorf("current user = %+v, ok=%v", u, ok)
	}

	ops := fx.transport.ops()
	if len(ops) != 2 || ops[0] != protocol.OpIdentify || ops[1] != protocol.OpSubscribe {
		t.Fatalf("sent ops = %v, want [Identify Subscribe]", ops)
	}
	var sub protocol.Subscribe
	_ = json.Unmarshal(fx.transport.sent[1].D, &sub)
	if sub.ChannelID != "c1" {
		t.Errorf("subscribed channel = %s, want c1", sub.ChannelID)
	}
}

func TestMessageCreateDedupesById(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())
	fx.dispatch(t, protocol.EventReady, readyEvent())

	fx.dispatch(t, protocol.EventMessageCreated, messageEvent("m1", "c1", "hello"))
	fx.dispatch(t, protocol.EventMessageCreated, messageEvent("m1", "c1", "hello"))

	if got := len(fx.messages.Messages("c1")); got != 1 {
		t.Fatalf("cached messages = %d, want 1", got)
	}
}

func TestMessageCreateAfterHistoryHydration(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())
	fx.dispatch(t, protocol.EventReady, readyEvent())

	// the same message arrived earlier via a history page
	fx.messages.SetMessages("c1", []protocol.Message{{ID: "m1", ChannelID: "c1", Content: "hello"}})
	fx.dispatch(t, protocol.EventMessageCreated, messageEvent("m1", "c1", "hello"))

	if got := len(fx.messages.Messages("c1")); got != 1 {
		t.Fatalf("cached messages = %d, want 1", got)
	}
}

func TestInactiveChannelMessagesCountUnread(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())
	fx.dispatch(t, protocol.EventReady, readyEvent())

	fx.dispatch(t, protocol.EventMessageCreated, messageEvent("m1", "c2", "psst"))

	if got := fx.session.UnreadCount("c2"); got != 1 {
		t.Fatalf("unread = %d, want 1", got)
	}

	fx.session.SwitchChannel("c2")
	if got := fx.session.UnreadCount("c2"); got != 0 {
		t.Errorf("unread after switch = %d, want 0", got)
	}
}

func TestErrorDispatchSetsErrorStatus(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())

	fx.dispatch(t, protocol.EventError, protocol.ErrorEvent{Code: "AUTH_FAILED"})

	if fx.session.Status() != gateway.StatusError {
		t.Fatalf("status = %s, want %s", fx.session.Status(), gateway.StatusError)
	}
	if fx.session.StatusNote() != "Gateway error: AUTH_FAILED" {
		t.Errorf("note = %q", fx.session.StatusNote())
	}
}

func TestSwitchChannelSubscribesWhenReady(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())
	fx.dispatch(t, protocol.EventReady, readyEvent())

	fx.session.SwitchChannel("c2")

	last := fx.transport.sent[len(fx.transport.sent)-1]
	if last.Op != protocol.OpSubscribe {
		t.Fatalf("last op = %s, want Subscribe", last.Op)
	}
	var sub protocol.Subscribe
	_ = json.Unmarshal(last.D, &sub)
	if sub.ChannelID != "c2" {
		t.Errorf("subscribed channel = %s, want c2", sub.ChannelID)
	}
	if fx.messages.ActiveChannel() != "c2" {
		t.Errorf("store active channel = %s", fx.messages.ActiveChannel())
	}
}

func TestSwitchChannelWhileNotReadySkipsSubscribe(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())
	fx.dispatch(t, protocol.EventReady, readyEvent())
	fx.session.Disconnect()

	before := len(fx.transport.sent)
	fx.session.SwitchChannel("c2")

	if got := len(fx.transport.sent); got != before {
		t.Fatalf("frames sent while not ready: %v", fx.transport.ops())
	}
	if fx.messages.ActiveChannel() != "c2" {
		t.Error("active channel not recorded")
	}
}

func TestSwitchChannelOutsideDirectoryIgnored(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())
	fx.dispatch(t, protocol.EventReady, readyEvent())

	before := len(fx.transport.sent)
	fx.session.SwitchChannel("ghost")

	if fx.session.ActiveChannelID() != "c1" {
		t.Errorf("active channel = %s, want c1", fx.session.ActiveChannelID())
	}
	if fx.messages.ActiveChannel() != "c1" {
		t.Errorf("store active channel = %s, want c1", fx.messages.ActiveChannel())
	}
	if got := len(fx.transport.sent); got != before {
		t.Errorf("frames sent for ignored switch: %v", fx.transport.ops())
	}
}

func TestSendMessage(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())

	// not ready yet
	fx.session.SetComposer("hello there")
	fx.session.SendMessage()
	if fx.session.StatusNote() != "Not ready: login/identify first" {
		t.Errorf("note = %q", fx.session.StatusNote())
	}
	if len(fx.transport.ops()) != 1 { // only the Identify frame
		t.Fatalf("frames = %v", fx.transport.ops())
	}

	fx.dispatch(t, protocol.EventReady, readyEvent())

	// blank composer is a silent no-op
	fx.session.SetComposer("   ")
	fx.session.SendMessage()
	if n := len(fx.transport.sent); n != 2 { // Identify + Subscribe
		t.Fatalf("blank composer sent a frame: %v", fx.transport.ops())
	}

	fx.session.SetComposer("  hello there  ")
	fx.session.SendMessage()

	last := fx.transport.sent[len(fx.transport.sent)-1]
	if last.Op != protocol.OpMessageCreate {
		t.Fatalf("last op = %s, want MessageCreate", last.Op)
	}
	var cm protocol.CreateMessage
	_ = json.Unmarshal(last.D, &cm)
	if cm.ChannelID != "c1" || cm.Content != "hello there" {
		t.Errorf("frame body = %+v", cm)
	}
	if fx.session.Composer() != "" {
		t.Error("composer not cleared after send")
	}

	// no optimistic insert: the cache stays empty until the echo arrives
	if len(fx.messages.Messages("c1")) != 0 {
		t.Error("message inserted optimistically")
	}
	fx.dispatch(t, protocol.EventMessageCreated, messageEvent("m9", "c1", "hello there"))
	if len(fx.messages.Messages("c1")) != 1 {
		t.Error("echoed message not cached")
	}
}

func TestDisconnectClearsMessageCache(t *testing.T) {
	fx := newFixture(t, nil)
	fx.session.Connect(context.Background())
	fx.dispatch(t, protocol.EventReady, readyEvent())
	fx.dispatch(t, protocol.EventMessageCreated, messageEvent("m1", "c1", "hello"))

	fx.session.Disconnect()

	if fx.session.Status() != gateway.StatusDisconnected {
		t.Fatalf("status = %s", fx.session.Status())
	}
	if len(fx.messages.Messages("c1")) != 0 {
		t.Error("message cache survived disconnect")
	}
	if fx.transport.open {
		t.Error("transport still open")
	}
}

func historyServer(t *testing.T, pages map[string][]protocol.MessageResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := pages[r.URL.Query().Get("before")]
		_ = json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadHistoryAndOlder(t *testing.T) {
	srv := historyServer(t, map[string][]protocol.MessageResponse{
		"": {
			{ID: "m4", ChannelID: "c1", Content: "four", CreatedAt: "2026-08-30T12:03:00Z"},
			{ID: "m3", ChannelID: "c1", Content: "three", CreatedAt: "2026-08-30T12:02:00Z"},
		},
		"m3": {
			{ID: "m2", ChannelID: "c1", Content: "two", CreatedAt: "2026-08-30T12:01:00Z"},
			{ID: "m1", ChannelID: "c1", Content: "one", CreatedAt: "2026-08-30T12:00:00Z"},
		},
	})
	apiClient := api.NewClient(srv.URL, identity.NewStaticProvider("tok1"))

	fx := newFixture(t, apiClient)
	fx.session.Connect(context.Background())
	fx.dispatch(t, protocol.EventReady, readyEvent())

	if err := fx.session.LoadHistory(context.Background()); err != nil {
		t.Fatalf("load history: %s", err)
	}
	got := fx.messages.Messages("c1")
	if len(got) != 2 || got[0].ID != "m3" || got[1].ID != "m4" {
		t.Fatalf("hydrated = %v, want chronological [m3 m4]", got)
	}

	if err := fx.session.LoadOlder(context.Background()); err != nil {
		t.Fatalf("load older: %s", err)
	}
	got = fx.messages.Messages("c1")
	want := []string{"m1", "m2", "m3", "m4"}
	if len(got) != len(want) {
		t.Fatalf("merged = %v", got)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("merged[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestLoadHistoryWithoutActiveChannel(t *testing.T) {
	fx := newFixture(t, nil)
	if err := fx.session.LoadHistory(context.Background()); err != chat.ErrNoActiveChannel {
		t.Fatalf("err = %v, want ErrNoActiveChannel", err)
	}
}

func TestDirectoryCrudReconciliation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /servers":
			_ = json.NewEncoder(w).Encode(protocol.ServerResponse{ID: "s9", Name: "new", MyRole: "owner"})
		case "POST /servers/s1/channels":
			_ = json.NewEncoder(w).Encode(protocol.ChannelResponse{ID: "c9", ServerID: "s1", Name: "dev", Type: "text"})
		case "DELETE /channels/c9":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	apiClient := api.NewClient(srv.URL, identity.NewStaticProvider("tok1"))

	fx := newFixture(t, apiClient)
	fx.session.Connect(context.Background())
	fx.dispatch(t, protocol.EventReady, readyEvent())

	ctx := context.Background()
	if err := fx.session.CreateServer(ctx, "new"); err != nil {
		t.Fatalf("create server: %s", err)
	}
	if len(fx.dir.Servers()) != 2 {
		t.Fatalf("servers = %d, want 2", len(fx.dir.Servers()))
	}

	if err := fx.session.CreateChannel(ctx, "dev"); err != nil {
		t.Fatalf("create channel: %s", err)
	}
	if len(fx.dir.Channels()) != 3 {
		t.Fatalf("channels = %d, want 3", len(fx.dir.Channels()))
	}

	if err := fx.session.DeleteChannel(ctx, "c9"); err != nil {
		t.Fatalf("delete channel: %s", err)
	}
	if len(fx.dir.Channels()) != 2 {
		t.Fatalf("channels = %d, want 2", len(fx.dir.Channels()))
	}
}
