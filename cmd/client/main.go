package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"nebula/internal/api"
	"nebula/internal/cache"
	"nebula/internal/chat"
	"nebula/internal/config"
	"nebula/internal/directory"
	"nebula/internal/gateway"
	"nebula/internal/identity"
	"nebula/internal/protocol"
	"nebula/internal/store"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("client terminated")
}

func run(ctx context.Context) error {
	setupLogger()

	provider := identity.NewStaticProvider(config.GetString("auth.token"))

	storeOpts := []store.MessageStoreOption{
		store.WithInactiveLimit(config.GetInt("store.inactive_limit")),
	}
	if addr := config.GetString("redis.addr"); addr != "" {
		persister := cache.NewRedis(
			addr,
			config.GetString("redis.password"),
			provider.Subject(),
			time.Duration(config.GetInt("redis.ttl_hours"))*time.Hour,
		)
		defer persister.Close()
		storeOpts = append(storeOpts, store.WithPersister(persister))
	}

	auth := store.NewAuthStore()
	messages := store.NewMessageStore(storeOpts...)
	dir := directory.New()

	gw := gateway.NewClient(provider, gateway.Dialer(func() string {
		return config.GetString("gateway.ws_url")
	}))
	apiClient := api.NewClient(config.GetString("api.base_url"), provider)

	session := chat.NewSession(gw, auth, messages, dir, apiClient)
	defer session.Close()

	// Print live traffic next to the session's own handler.
	gw.OnDispatch(func(ev *protocol.Event) {
		switch ev.Type {
		case protocol.EventReady:
			fmt.Printf("-- ready as %s --\n", ev.Ready.Username)
		case protocol.EventMessageCreated:
			fmt.Printf("[%s] %s: %s\n", ev.MessageCreated.ChannelID,
				ev.MessageCreated.AuthorUsername, ev.MessageCreated.Content)
		case protocol.EventError:
			fmt.Printf("-- gateway error %s --\n", ev.Err.Code)
		}
	})

	session.Connect(ctx)
	fmt.Printf("%s (%s)\n", session.StatusLabel(), session.StatusNote())

	return repl(ctx, session)
}

func repl(ctx context.Context, session *chat.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			session.Disconnect()
			return nil
		case line == "/status":
			fmt.Printf("%s (%s)\n", session.StatusLabel(), session.StatusNote())
		case line == "/log":
			for _, entry := range session.GatewayLog() {
				fmt.Println(entry)
			}
		case line == "/history":
			if err := session.LoadHistory(ctx); err != nil {
				fmt.Println("history:", err)
				continue
			}
			for _, m := range session.FilteredMessages() {
				fmt.Printf("[%s] %s: %s\n", m.ChannelID, m.AuthorUsername, m.Content)
			}
		case line == "/older":
			if err := session.LoadOlder(ctx); err != nil {
				fmt.Println("older:", err)
			}
		case strings.HasPrefix(line, "/channel "):
			session.SwitchChannel(strings.TrimPrefix(line, "/channel "))
			fmt.Println("channel:", session.ActiveChannelName())
		case strings.HasPrefix(line, "/server "):
			session.SwitchServer(strings.TrimPrefix(line, "/server "))
		case line != "":
			session.SetComposer(line)
			session.SendMessage()
		}
	}
	session.Disconnect()
	return scanner.Err()
}

func setupLogger() {
	level := slog.LevelInfo
	if config.GetString("log.level") == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
