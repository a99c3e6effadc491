package chat

import (
	"sort"
	"time"
)

// typingTTL is how long a typing signal lives without a refresh. Clients
// re-announce while keys are pressed, so this only needs to outlast the
// debounce interval.
const typingTTL = 5 * time.Second

// MarkTyping records that a user is typing in a channel. Calling it again
// before the signal expires extends it.
func (s *Store) MarkTyping(channelID, userID string) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	typers, ok := s.typing[channelID]
	if !ok {
		typers = make(map[string]time.Time)
		s.typing[channelID] = typers
	}
	typers[userID] = s.now().Add(s.typingTTL)
}

// Typing returns the users whose typing signal for a channel has not
// expired, sorted by user id. Expired entries are pruned on read; no
// background sweep is needed.
func (s *Store) Typing(channelID string) []string {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	typers, ok := s.typing[channelID]
	if !ok {
		return nil
	}
	now := s.now()
	var out []string
	for userID, expiresAt := range typers {
		if expiresAt.After(now) {
			out = append(out, userID)
		} else {
			delete(typers, userID)
		}
	}
	sort.Strings(out)
	return out
}

// SetPresence records a user's online flag as reported by the transport.
func (s *Store) SetPresence(userID string, online bool) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	if online {
		s.online[userID] = true
	} else {
		delete(s.online, userID)
	}
}

// Online reports whether a user is currently online.
func (s *Store) Online(userID string) bool {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

// OnlineUsers returns the ids of all users currently online, sorted.
func (s *Store) OnlineUsers() []string {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.online))
	for userID := range s.online {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}
