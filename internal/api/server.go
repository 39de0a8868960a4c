package api

import (
	"context"
	"fmt"

	"nebula/internal/protocol"
)

func (c *Client) CreateServer(ctx context.Context, name string) (protocol.Server, error) {
	var resp protocol.ServerResponse
	body := map[string]string{"name": name}
	if err := c.post(ctx, "/servers", body, &resp); err != nil {
		return protocol.Server{}, err
	}
	return protocol.ServerFromResponse(resp), nil
}

func (c *Client) DeleteServer(ctx context.Context, serverID string) error {
	return c.delete(ctx, fmt.Sprintf("/servers/%s", serverID))
}

func (c *Client) CreateChannel(ctx context.Context, serverID, name string) (protocol.Channel, error) {
	var resp protocol.ChannelResponse
	body := map[string]string{"name": name}
	if err := c.post(ctx, fmt.Sprintf("/servers/%s/channels", serverID), body, &resp); err != nil {
		return protocol.Channel{}, err
	}
	return protocol.ChannelFromResponse(resp), nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	return c.delete(ctx, fmt.Sprintf("/channels/%s", channelID))
}

func (c *Client) CreateInvite(ctx context.Context, serverID string, maxUses, expiresInHours int) (protocol.Invite, error) {
	var resp protocol.InviteResponse
	body := map[string]int{
		"max_uses":         maxUses,
		"expires_in_hours": expiresInHours,
	}
	if err := c.post(ctx, fmt.Sprintf("/servers/%s/invites", serverID), body, &resp); err != nil {
		return protocol.Invite{}, err
	}
	return protocol.InviteFromResponse(resp), nil
}
