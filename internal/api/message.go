package api

import (
	"context"
	"fmt"
	"net/url"

	"nebula/internal/protocol"
)

// DefaultPageSize matches the server's history page size.
const DefaultPageSize = 25

// History fetches one page of a channel's messages, newest first. An empty
// before fetches the latest page; otherwise the page strictly older than
// the given message id.
func (c *Client) History(ctx context.Context, channelID, before string, limit int) ([]protocol.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	if before != "" {
		q.Set("before", before)
	}

	var page []protocol.MessageResponse
	path := fmt.Sprintf("/channels/%s/messages?%s", channelID, q.Encode())
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}

	msgs := make([]protocol.Message, 0, len(page))
	for _, r := range page {
		msgs = append(msgs, protocol.MessageFromResponse(r))
	}
	return msgs, nil
}

// Chronological reverses a newest-first page into arrival order, the form
// the message store keeps.
func Chronological(page []protocol.Message) []protocol.Message {
	out := make([]protocol.Message, len(page))
	for i, m := range page {
		out[len(page)-1-i] = m
	}
	return out
}
