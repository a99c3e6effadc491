package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
)

func TestMsgLog_Insert(t *testing.T) {
	var l msgLog
	for _, id := range []int64{5, 2, 9, 2, 7, 5} {
		l.insert(Message{ID: id, ChannelID: "general", AuthorID: "u1"})
	}
	got := make([]int64, len(l.msgs))
	for i, m := range l.msgs {
		got[i] = m.ID
	}
	if diff := cmp.Diff([]int64{2, 5, 7, 9}, got); diff != "" {
		t.Errorf("Cached ids (-want +got):\n%s", diff)
	}
}

func TestStore_AppendIncoming(t *testing.T) {
	s := storeWithChannels(t, "team-5")

	msg := Message{ID: 101, ChannelID: "team-5", AuthorID: "u1", Content: "hi"}
	if !s.AppendIncoming("team-5", msg) {
		t.Error("First insert should report true")
	}
	if s.AppendIncoming("team-5", msg) {
		t.Error("Duplicate insert should report false")
	}
	if got := len(s.Messages("team-5")); got != 1 {
		t.Errorf("Got %d cached messages, want 1", got)
	}
}

func TestStore_EnsureLoaded(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent", func(t *testing.T) {
		fetches := 0
		s := &Store{
			Logger: slogt.New(t),
			History: &testhistory{T: t, listMessages: func(t *testing.T, channelID string, beforeID int64, limit int) ([]Message, error) {
				fetches++
				return []Message{
					{ID: 1, ChannelID: channelID, AuthorID: "u1", Content: "first"},
					{ID: 2, ChannelID: channelID, AuthorID: "u2", Content: "second"},
				}, nil
			}},
		}
		for i := 0; i < 3; i++ {
			if err := s.EnsureLoaded(ctx, "general"); err != nil {
				t.Fatalf("EnsureLoaded: %v", err)
			}
		}
		if fetches != 1 {
			t.Errorf("Got %d fetches, want 1", fetches)
		}
		if got := len(s.Messages("general")); got != 2 {
			t.Errorf("Got %d messages, want 2", got)
		}
	})

	t.Run("FailureAllowsRetry", func(t *testing.T) {
		fetches := 0
		s := &Store{
			Logger: slogt.New(t),
			History: &testhistory{T: t, listMessages: func(t *testing.T, channelID string, beforeID int64, limit int) ([]Message, error) {
				fetches++
				if fetches == 1 {
					return nil, errors.New("boom")
				}
				return []Message{{ID: 1, ChannelID: channelID, AuthorID: "u1"}}, nil
			}},
		}
		if err := s.EnsureLoaded(ctx, "general"); err == nil {
			t.Fatal("Expected error from failed fetch")
		}
		if got := s.Messages("general"); len(got) != 0 {
			t.Errorf("Cache not empty after failed fetch: %+v", got)
		}
		if err := s.EnsureLoaded(ctx, "general"); err != nil {
			t.Fatalf("EnsureLoaded retry: %v", err)
		}
		if got := len(s.Messages("general")); got != 1 {
			t.Errorf("Got %d messages after retry, want 1", got)
		}
	})
}

func TestStore_LoadOlder(t *testing.T) {
	ctx := context.Background()

	t.Run("MergePreservesOrder", func(t *testing.T) {
		pages := map[int64][]Message{
			0:  {{ID: 10, ChannelID: "general", AuthorID: "u1"}, {ID: 11, ChannelID: "general", AuthorID: "u2"}},
			10: {{ID: 8, ChannelID: "general", AuthorID: "u1"}, {ID: 9, ChannelID: "general", AuthorID: "u2"}, {ID: 10, ChannelID: "general", AuthorID: "u1"}}, // overlap
		}
		s := &Store{
			Logger: slogt.New(t),
			History: &testhistory{T: t, listMessages: func(t *testing.T, channelID string, beforeID int64, limit int) ([]Message, error) {
				return pages[beforeID], nil
			}},
		}
		if err := s.EnsureLoaded(ctx, "general"); err != nil {
			t.Fatalf("EnsureLoaded: %v", err)
		}

		// A live message lands while the backfill is conceptually in flight.
		s.AppendIncoming("general", Message{ID: 12, ChannelID: "general", AuthorID: "u2"})

		if err := s.LoadOlder(ctx, "general", 10); err != nil {
			t.Fatalf("LoadOlder: %v", err)
		}
		got := make([]int64, 0)
		for _, m := range s.Messages("general") {
			got = append(got, m.ID)
		}
		if diff := cmp.Diff([]int64{8, 9, 10, 11, 12}, got); diff != "" {
			t.Errorf("History after backfill (-want +got):\n%s", diff)
		}
	})

	t.Run("FailureLeavesCache", func(t *testing.T) {
		fetches := 0
		s := &Store{
			Logger: slogt.New(t),
			History: &testhistory{T: t, listMessages: func(t *testing.T, channelID string, beforeID int64, limit int) ([]Message, error) {
				fetches++
				if fetches == 1 {
					return []Message{{ID: 5, ChannelID: "general", AuthorID: "u1"}}, nil
				}
				return nil, errors.New("boom")
			}},
		}
		if err := s.EnsureLoaded(ctx, "general"); err != nil {
			t.Fatalf("EnsureLoaded: %v", err)
		}
		if err := s.LoadOlder(ctx, "general", 5); err == nil {
			t.Fatal("Expected error from failed backfill")
		}
		if got := len(s.Messages("general")); got != 1 {
			t.Errorf("Got %d messages, want 1", got)
		}
	})
}

func TestStore_Reactions(t *testing.T) {
	s := storeWithChannels(t, "general")
	s.AppendIncoming("general", Message{ID: 7, ChannelID: "general", AuthorID: "u1", Content: "ship it", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})

	mustHandle(t, s, Event{Type: EventReaction, ChannelID: "general", MessageID: 7, Emoji: "🚀", UserID: "u2"})
	mustHandle(t, s, Event{Type: EventReaction, ChannelID: "general", MessageID: 7, Emoji: "🚀", UserID: "u2"}) // duplicate
	mustHandle(t, s, Event{Type: EventReaction, ChannelID: "general", MessageID: 7, Emoji: "🚀", UserID: "u3"})

	msgs := s.Messages("general")
	want := map[string][]string{"🚀": {"u2", "u3"}}
	if diff := cmp.Diff(want, msgs[0].Reactions); diff != "" {
		t.Errorf("Reactions (-want +got):\n%s", diff)
	}

	// Reactions to uncached messages are absorbed silently.
	mustHandle(t, s, Event{Type: EventReaction, ChannelID: "general", MessageID: 999, Emoji: "👍", UserID: "u2"})
}
