package protocol

import "time"

// Message is the immutable in-memory form of a chat message. ID is the
// de-duplication key within a channel.
type Message struct {
	ID             string
	ChannelID      string
	AuthorUserID   string
	AuthorUsername string
	Content        string
	CreatedAt      time.Time
}

type Channel struct {
	ID       string
	ServerID string
	Name     string
	Type     string
}

type Server struct {
	ID          string
	Name        string
	OwnerUserID string
	MyRole      string
	Channels    []Channel
}

type Invite struct {
	Code      string
	ServerID  string
	MaxUses   int
	UseCount  int
	ExpiresAt string
	CreatedAt string
}

// REST / gateway wire shapes, snake_case per the server contract.

type MessageResponse struct {
	ID             string `json:"id"`
	ChannelID      string `json:"channel_id"`
	AuthorUserID   string `json:"author_user_id"`
	AuthorUsername string `json:"author_username"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

type ChannelResponse struct {
	ID       string `json:"id"`
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Type     string `json:"channel_type"`
}

type ServerResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	OwnerUserID string            `json:"owner_user_id"`
	MyRole      string            `json:"my_role"`
	Channels    []ChannelResponse `json:"channels"`
}

type InviteResponse struct {
	Code      string `json:"code"`
	ServerID  string `json:"server_id"`
	MaxUses   int    `json:"max_uses"`
	UseCount  int    `json:"use_count"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

func MessageFromResponse(r MessageResponse) Message {
	return Message{
		ID:             r.ID,
		ChannelID:      r.ChannelID,
		AuthorUserID:   r.AuthorUserID,
		AuthorUsername: r.AuthorUsername,
		Content:        r.Content,
		CreatedAt:      parseTimestamp(r.CreatedAt),
	}
}

func MessageFromEvent(e *MessageCreatedEvent) Message {
	return Message{
		ID:             e.ID,
		ChannelID:      e.ChannelID,
		AuthorUserID:   e.AuthorUserID,
		AuthorUsername: e.AuthorUsername,
		Content:        e.Content,
		CreatedAt:      parseTimestamp(e.Timestamp),
	}
}

func ChannelFromResponse(r ChannelResponse) Channel {
	return Channel{ID: r.ID, ServerID: r.ServerID, Name: r.Name, Type: r.Type}
}

func ServerFromResponse(r ServerResponse) Server {
	s := Server{
		ID:          r.ID,
		Name:        r.Name,
		OwnerUserID: r.OwnerUserID,
		MyRole:      r.MyRole,
	}
	for _, c := range r.Channels {
		s.Channels = append(s.Channels, ChannelFromResponse(c))
	}
	return s
}

func InviteFromResponse(r InviteResponse) Invite {
	return Invite{
		Code:      r.Code,
		ServerID:  r.ServerID,
		MaxUses:   r.MaxUses,
		UseCount:  r.UseCount,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

// parseTimestamp accepts ISO-8601; a malformed value maps to the zero time
// rather than failing the whole frame.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
