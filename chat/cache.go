package chat

import (
	"context"
	"fmt"
	"sort"
)

// A msgLog holds one channel's cached history in strictly increasing id
// order. Inserts are idempotent, which is what lets live updates and
// backfills interleave without conflict.
type msgLog struct {
	msgs    []Message
	loaded  bool
	loading bool
}

func (l *msgLog) insert(m Message) bool {
	i := sort.Search(len(l.msgs), func(i int) bool { return l.msgs[i].ID >= m.ID })
	if i < len(l.msgs) && l.msgs[i].ID == m.ID {
		return false
	}
	l.msgs = append(l.msgs, Message{})
	copy(l.msgs[i+1:], l.msgs[i:])
	l.msgs[i] = m
	return true
}

func (l *msgLog) merge(batch []Message) int {
	n := 0
	for _, m := range batch {
		if l.insert(m) {
			n++
		}
	}
	return n
}

func (l *msgLog) addReaction(messageID int64, emoji, userID string) bool {
	i := sort.Search(len(l.msgs), func(i int) bool { return l.msgs[i].ID >= messageID })
	if i >= len(l.msgs) || l.msgs[i].ID != messageID {
		return false
	}
	m := &l.msgs[i]
	for _, u := range m.Reactions[emoji] {
		if u == userID {
			return false
		}
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	m.Reactions[emoji] = append(m.Reactions[emoji], userID)
	return true
}

// log returns the cache entry for a channel, creating it if needed.
// Callers must hold s.mu.
func (s *Store) log(channelID string) *msgLog {
	l, ok := s.logs[channelID]
	if !ok {
		l = &msgLog{}
		s.logs[channelID] = l
	}
	return l
}

// EnsureLoaded fetches the newest history page for a channel the first time
// it is asked for. Repeated calls for a loaded (or loading) channel are
// no-ops, so channels can be pre-loaded eagerly without redundant fetches.
func (s *Store) EnsureLoaded(ctx context.Context, channelID string) error {
	s.init()
	s.mu.Lock()
	l := s.log(channelID)
	if l.loaded || l.loading {
		s.mu.Unlock()
		return nil
	}
	l.loading = true
	s.mu.Unlock()

	msgs, err := s.History.ListMessages(ctx, channelID, 0, pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	l = s.log(channelID)
	l.loading = false
	if err != nil {
		s.Logger.Error("Could not load history", "channel_id", channelID, "error", err.Error())
		return fmt.Errorf("load history: %w", err)
	}
	l.merge(msgs)
	l.loaded = true
	return nil
}

// LoadOlder extends a channel's history backward from beforeID. The page is
// merged preserving order, so overlap with already-cached messages is
// harmless. A failed fetch leaves the cache untouched.
func (s *Store) LoadOlder(ctx context.Context, channelID string, beforeID int64) error {
	s.init()
	msgs, err := s.History.ListMessages(ctx, channelID, beforeID, pageSize)
	if err != nil {
		s.Logger.Error("Could not load older history", "channel_id", channelID, "error", err.Error())
		return fmt.Errorf("load older history: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log(channelID).merge(msgs)
	return nil
}

// AppendIncoming inserts a live message into a channel's cache, keeping the
// ordering invariant. Inserting an id that is already present is a no-op and
// reports false. This is the bare cache operation; HandleEvent layers the
// directory and notification side effects on top of it.
func (s *Store) AppendIncoming(channelID string, msg Message) bool {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log(channelID).insert(msg)
}

// Messages returns a copy of a channel's cached history in ascending id
// order. It does not trigger a fetch; use EnsureLoaded for that.
func (s *Store) Messages(channelID string) []Message {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[channelID]
	if !ok {
		return nil
	}
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}
