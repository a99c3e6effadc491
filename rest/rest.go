// Package rest is the HTTP client for the operator console's channel-list
// and message-history endpoints. It implements chat.ChannelLister and
// chat.HistoryProvider.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/crewdesk/chatsync/chat"
	"github.com/crewdesk/chatsync/chat/validator"
)

// Client calls the console REST API. BaseURL is required; HTTP defaults to
// http.DefaultClient.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// val checks response payloads; the underlying validator is safe for
// concurrent use.
var val = validator.New()

func (c *Client) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// ListChannels fetches the channel list for the current user.
func (c *Client) ListChannels(ctx context.Context) ([]chat.Channel, error) {
	var body struct {
		Channels []chat.Channel `json:"channels"`
	}
	if err := c.get(ctx, "/channels", nil, &body); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	for i := range body.Channels {
		if err := val.Err(&body.Channels[i]); err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
	}
	return body.Channels, nil
}

// ListMessages fetches one page of a channel's history, newest page when
// beforeID is zero. Messages come back in ascending id order.
func (c *Client) ListMessages(ctx context.Context, channelID string, beforeID int64, limit int) ([]chat.Message, error) {
	q := url.Values{}
	if beforeID > 0 {
		q.Set("before", strconv.FormatInt(beforeID, 10))
	}
	q.Set("limit", strconv.Itoa(limit))

	var body struct {
		Messages []chat.Message `json:"messages"`
	}
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.get(ctx, path, q, &body); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i := range body.Messages {
		if err := val.Err(&body.Messages[i]); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
	}
	return body.Messages, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
