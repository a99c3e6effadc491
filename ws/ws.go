// Package ws adapts a gorilla/websocket connection to the chat core's
// transport interfaces. The wire format is one JSON event envelope per text
// frame, the same Event shape the core consumes.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/crewdesk/chatsync/chat"
	"github.com/crewdesk/chatsync/chat/validator"
)

// Dialer opens websocket connections to the realtime endpoint. It satisfies
// chat.Dialer.
type Dialer struct {
	URL    string
	Header http.Header
	Logger *slog.Logger
}

// Dial connects to the configured endpoint.
func (d *Dialer) Dial(ctx context.Context) (chat.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		conn:   conn,
		logger: logger,
		val:    validator.New(),
	}, nil
}

// Conn is one live websocket connection. It satisfies chat.Conn and also
// carries the write side used to announce typing and send messages.
type Conn struct {
	conn   *websocket.Conn
	logger *slog.Logger
	val    *validator.Validator

	writeMu sync.Mutex
}

// ReadEvent blocks until the next event frame arrives. Frames that do not
// decode into a valid event envelope are logged and skipped rather than
// forwarded. A returned error means the connection is gone.
func (c *Conn) ReadEvent() (chat.Event, error) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return chat.Event{}, fmt.Errorf("read frame: %w", err)
		}
		var ev chat.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.logger.Warn("Skipped undecodable frame", "error", err.Error())
			continue
		}
		if err := c.val.Err(&ev); err != nil {
			c.logger.Warn("Skipped invalid event frame", "error", err.Error())
			continue
		}
		return ev, nil
	}
}

// SendTyping announces that the current user is typing in a channel.
func (c *Conn) SendTyping(channelID, userID string) error {
	return c.write(chat.Event{
		Type:      chat.EventTyping,
		ChannelID: channelID,
		UserID:    userID,
	})
}

// SendMessage publishes a message to a channel. The server assigns the id
// and echoes the message back as a regular event.
func (c *Conn) SendMessage(channelID, authorID, content string) error {
	return c.write(chat.Event{
		Type:      chat.EventMessage,
		ChannelID: channelID,
		Message: &chat.Message{
			ChannelID: channelID,
			AuthorID:  authorID,
			Content:   content,
		},
	})
}

func (c *Conn) write(ev chat.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
