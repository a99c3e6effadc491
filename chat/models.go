package chat

import "time"

// ChannelType classifies a channel.
type ChannelType string

const (
	ChannelGeneral ChannelType = "general"
	ChannelTeam    ChannelType = "team"
	ChannelDirect  ChannelType = "direct"
)

// A Channel is a named scope of messages together with the summary state the
// directory tracks for it. The full message history lives in the message
// cache, not here.
type Channel struct {
	ID           string       `json:"id" validate:"required"`
	Type         ChannelType  `json:"type" validate:"required"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	TeamID       string       `json:"team_id,omitempty"` // team channels only
	Participants []string     `json:"participants,omitempty"`
	UnreadCount  int          `json:"unread_count"`
	Muted        bool         `json:"muted"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	LastActivity time.Time    `json:"last_activity"`
}

// A LastMessage is the preview snapshot shown in the channel list. It is
// never used for ordering.
type LastMessage struct {
	UserName string `json:"user_name"`
	Content  string `json:"content"`
}

// A Message is one entry in a channel's history. IDs are sequence numbers
// assigned by the server, strictly increasing within a channel.
type Message struct {
	ID         int64               `json:"id" validate:"required"`
	ChannelID  string              `json:"channel_id" validate:"required"`
	AuthorID   string              `json:"author_id" validate:"required"`
	AuthorName string              `json:"author_name,omitempty"`
	Content    string              `json:"content"`
	CreatedAt  time.Time           `json:"created_at"`
	Reactions  map[string][]string `json:"reactions,omitempty"` // emoji -> user ids
}

// AudioSettings holds the user's notification sound preferences. The zero
// value is not meaningful; use DefaultAudioSettings for first-run state.
type AudioSettings struct {
	Enabled      bool   `json:"enabled"`
	Volume       int    `json:"volume" validate:"gte=0,lte=100"`
	SendSound    string `json:"send_sound"`    // asset id, empty = silent
	ReceiveSound string `json:"receive_sound"` // asset id, empty = silent
}

// DefaultAudioSettings returns the settings applied on first load, before
// the user has saved anything.
func DefaultAudioSettings() AudioSettings {
	return AudioSettings{
		Enabled:      true,
		Volume:       70,
		SendSound:    "pop",
		ReceiveSound: "chime",
	}
}

// An AudioSettingsPatch is a partial update to AudioSettings. Nil fields are
// left unchanged.
type AudioSettingsPatch struct {
	Enabled      *bool   `json:"enabled,omitempty"`
	Volume       *int    `json:"volume,omitempty"`
	SendSound    *string `json:"send_sound,omitempty"`
	ReceiveSound *string `json:"receive_sound,omitempty"`
}

// ConnectionState reports the health of the realtime transport.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateDisconnected ConnectionState = "disconnected"
)

// Direction tells the notifier whether a message left or entered the client.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// EventType identifies a realtime event on the wire.
type EventType string

const (
	EventMessage    EventType = "message.new"
	EventTyping     EventType = "typing.start"
	EventReaction   EventType = "reaction.new"
	EventPresence   EventType = "presence.changed"
	EventMembership EventType = "channel.membership"
)

// An Event is one discrete update delivered by the realtime transport. Which
// fields are set depends on Type; HandleEvent rejects events that are missing
// the fields their type requires.
type Event struct {
	Type      EventType `json:"type" validate:"required"`
	ChannelID string    `json:"channel_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	UserName  string    `json:"user_name,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	MessageID int64     `json:"message_id,omitempty"`
	Emoji     string    `json:"emoji,omitempty"`
	Online    bool      `json:"online,omitempty"`
	Joined    bool      `json:"joined,omitempty"`
}
