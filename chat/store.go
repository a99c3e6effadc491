// Package chat implements the client-resident synchronization core behind the
// operator console's internal chat: the channel directory, per-channel message
// cache, presence and typing signals, notification dispatch, and the monitor
// for the realtime transport. The surrounding UI drives it only through the
// exported operations; all collaborators (history fetch, settings persistence,
// sound and toast primitives, the transport itself) are injected as narrow
// interfaces so the core can be exercised with synthetic events.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// A ChannelLister fetches the full channel list for the current user.
type ChannelLister interface {
	ListChannels(ctx context.Context) ([]Channel, error)
}

// A HistoryProvider fetches a page of channel history. A beforeID of zero
// means the newest page. Messages are returned in ascending id order.
type HistoryProvider interface {
	ListMessages(ctx context.Context, channelID string, beforeID int64, limit int) ([]Message, error)
}

// pageSize defines the number of messages fetched per history page.
var pageSize = 50

// Store is the shared chat state. All mutation goes through its methods; the
// zero value with the collaborator fields set is ready to use.
type Store struct {
	Logger  *slog.Logger
	Lister  ChannelLister
	History HistoryProvider
	Notify  *Notifier
	UserID  string

	once sync.Once
	mu   sync.Mutex

	channels map[string]*Channel
	active   string
	focused  bool

	loadSeq   uint64 // directory fetch token; stale results are discarded
	loadErr   error
	loadErrAt time.Time

	refreshWait chan struct{}
	refreshErr  error

	logs   map[string]*msgLog
	typing map[string]map[string]time.Time
	online map[string]bool

	typingTTL time.Duration
	now       func() time.Time
}

func (s *Store) init() {
	s.once.Do(func() {
		s.channels = make(map[string]*Channel)
		s.logs = make(map[string]*msgLog)
		s.typing = make(map[string]map[string]time.Time)
		s.online = make(map[string]bool)
		s.focused = true
		s.typingTTL = typingTTL
		s.now = time.Now
		if s.Logger == nil {
			s.Logger = slog.Default()
		}
	})
}

// LoadChannels fetches the channel list and replaces the directory wholesale.
// On failure the previous directory is kept and the error is recorded; the
// caller may retry by calling LoadChannels again. A load supersedes any fetch
// still in flight, whose result will be discarded on arrival.
func (s *Store) LoadChannels(ctx context.Context) error {
	s.init()
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.mu.Unlock()
	return s.fetchDirectory(ctx, seq)
}

// Refresh reloads the directory after a reconnect. Rapid repeated calls are
// coalesced: at most one fetch is in flight, and later callers wait for it.
func (s *Store) Refresh(ctx context.Context) error {
	s.init()
	s.mu.Lock()
	if wait := s.refreshWait; wait != nil {
		s.mu.Unlock()
		<-wait
		s.mu.Lock()
		err := s.refreshErr
		s.mu.Unlock()
		return err
	}
	wait := make(chan struct{})
	s.refreshWait = wait
	s.loadSeq++
	seq := s.loadSeq
	s.mu.Unlock()

	err := s.fetchDirectory(ctx, seq)

	s.mu.Lock()
	s.refreshErr = err
	s.refreshWait = nil
	s.mu.Unlock()
	close(wait)
	return err
}

func (s *Store) fetchDirectory(ctx context.Context, seq uint64) error {
	channels, err := s.Lister.ListChannels(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.loadSeq {
		// A newer load started while this one was in flight.
		s.Logger.Debug("Discarded stale channel list", "seq", seq)
		return nil
	}
	if err != nil {
		s.loadErr = err
		s.loadErrAt = s.now()
		s.Logger.Error("Could not load channels", "error", err.Error())
		return fmt.Errorf("list channels: %w", err)
	}

	replaced := make(map[string]*Channel, len(channels))
	for i := range channels {
		ch := channels[i]
		if prev, ok := s.channels[ch.ID]; ok {
			ch.Muted = prev.Muted
		}
		replaced[ch.ID] = &ch
	}
	s.channels = replaced
	s.loadErr = nil
	s.loadErrAt = time.Time{}
	if ch, ok := s.channels[s.active]; ok && s.focused {
		ch.UnreadCount = 0
	}
	s.Logger.Info("Loaded channels", "count", len(channels))
	return nil
}

// SetActiveChannel records the channel in focus, zeroes its unread counter,
// and makes sure its history is loaded.
func (s *Store) SetActiveChannel(ctx context.Context, id string) error {
	s.init()
	s.mu.Lock()
	s.active = id
	if ch, ok := s.channels[id]; ok {
		ch.UnreadCount = 0
	}
	s.mu.Unlock()
	return s.EnsureLoaded(ctx, id)
}

// ActiveChannel returns the id of the channel in focus, or "" if none.
func (s *Store) ActiveChannel() string {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SetWindowFocus tells the core whether the window is visible. Unread stays
// at zero for the active channel only while the window has focus; regaining
// focus marks the active channel read.
func (s *Store) SetWindowFocus(focused bool) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused = focused
	if !focused {
		return
	}
	if ch, ok := s.channels[s.active]; ok {
		ch.UnreadCount = 0
	}
}

// ToggleMute flips the mute flag of a channel. Muted channels keep counting
// unread but never produce a sound or toast.
func (s *Store) ToggleMute(id string) bool {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	if !ok {
		return false
	}
	ch.Muted = !ch.Muted
	return ch.Muted
}

// Channels returns a snapshot of the directory sorted by last activity,
// most recent first.
func (s *Store) Channels() []Channel {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Channel returns the directory entry for id.
func (s *Store) Channel(id string) (Channel, bool) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[id]
	if !ok {
		return Channel{}, false
	}
	return *ch, true
}

// LastError reports the most recent directory load failure and when it
// happened. It is cleared by the next successful load.
func (s *Store) LastError() (error, time.Time) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr, s.loadErrAt
}

// HandleEvent applies one realtime event to the core. Expected runtime
// conditions (duplicate delivery, unknown channels) are absorbed; an error is
// returned only when the event violates the transport contract, such as a
// channel-scoped event without a channel id.
func (s *Store) HandleEvent(ctx context.Context, ev Event) error {
	s.init()
	switch ev.Type {
	case EventMessage:
		if ev.ChannelID == "" || ev.Message == nil {
			return fmt.Errorf("message event missing channel id or payload")
		}
		s.applyMessage(ev.ChannelID, *ev.Message)
	case EventTyping:
		if ev.ChannelID == "" || ev.UserID == "" {
			return fmt.Errorf("typing event missing channel or user id")
		}
		s.MarkTyping(ev.ChannelID, ev.UserID)
	case EventReaction:
		if ev.ChannelID == "" || ev.MessageID == 0 || ev.Emoji == "" || ev.UserID == "" {
			return fmt.Errorf("reaction event missing channel, message, emoji or user")
		}
		s.applyReaction(ev)
	case EventPresence:
		if ev.UserID == "" {
			return fmt.Errorf("presence event missing user id")
		}
		s.SetPresence(ev.UserID, ev.Online)
	case EventMembership:
		if ev.ChannelID == "" || ev.UserID == "" {
			return fmt.Errorf("membership event missing channel or user id")
		}
		s.applyMembership(ev)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

func (s *Store) applyMessage(channelID string, msg Message) {
	dir := DirectionReceived
	if msg.AuthorID == s.UserID {
		dir = DirectionSent
	}

	s.mu.Lock()
	inserted := s.log(channelID).insert(msg)
	ch, known := s.channels[channelID]
	var snapshot Channel
	active := channelID == s.active
	if known && inserted {
		if dir == DirectionReceived && (!active || !s.focused) {
			ch.UnreadCount++
		}
		ch.LastMessage = &LastMessage{UserName: msg.AuthorName, Content: msg.Content}
		if msg.CreatedAt.After(ch.LastActivity) {
			ch.LastActivity = msg.CreatedAt
		}
		// A message implies the author stopped typing.
		if typers, ok := s.typing[channelID]; ok {
			delete(typers, msg.AuthorID)
		}
		snapshot = *ch
	}
	s.mu.Unlock()

	if !known {
		s.Logger.Debug("Message for unknown channel", "channel_id", channelID)
		return
	}
	if !inserted {
		// Duplicate delivery; the transport is at-least-once.
		return
	}
	if s.Notify != nil {
		s.Notify.OnMessage(msg, dir, active, snapshot.Muted)
	}
}

func (s *Store) applyReaction(ev Event) {
	s.mu.Lock()
	added := s.log(ev.ChannelID).addReaction(ev.MessageID, ev.Emoji, ev.UserID)
	if ch, ok := s.channels[ev.ChannelID]; ok && added {
		if now := s.now(); now.After(ch.LastActivity) {
			ch.LastActivity = now
		}
	}
	s.mu.Unlock()

	if added && ev.UserID != s.UserID && s.Notify != nil {
		from := ev.UserName
		if from == "" {
			from = ev.UserID
		}
		s.Notify.OnReaction(ev.MessageID, ev.Emoji, from)
	}
}

func (s *Store) applyMembership(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[ev.ChannelID]
	if !ok {
		s.Logger.Debug("Membership change for unknown channel", "channel_id", ev.ChannelID)
		return
	}
	if ev.Joined {
		for _, p := range ch.Participants {
			if p == ev.UserID {
				return
			}
		}
		ch.Participants = append(ch.Participants, ev.UserID)
	} else {
		kept := ch.Participants[:0]
		for _, p := range ch.Participants {
			if p != ev.UserID {
				kept = append(kept, p)
			}
		}
		ch.Participants = kept
	}
	if now := s.now(); now.After(ch.LastActivity) {
		ch.LastActivity = now
	}
}
