package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/crewdesk/chatsync/chat"
)

func TestClient_ListChannels(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    []chat.Channel
		wantErr bool
	}{
		{
			name:   "OK",
			status: 200,
			body: `{
				"channels": [
					{
						"id": "general",
						"type": "general",
						"name": "General",
						"unread_count": 0,
						"last_activity": "2024-01-01T00:00:00Z"
					},
					{
						"id": "team-5",
						"type": "team",
						"team_id": "5",
						"name": "Support",
						"participants": ["u1", "u2"],
						"unread_count": 3,
						"last_message": {"user_name": "Bea", "content": "lunch?"},
						"last_activity": "2024-01-02T00:00:00Z"
					}
				]
			}`,
			want: []chat.Channel{
				{
					ID:           "general",
					Type:         chat.ChannelGeneral,
					Name:         "General",
					LastActivity: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				},
				{
					ID:           "team-5",
					Type:         chat.ChannelTeam,
					TeamID:       "5",
					Name:         "Support",
					Participants: []string{"u1", "u2"},
					UnreadCount:  3,
					LastMessage:  &chat.LastMessage{UserName: "Bea", Content: "lunch?"},
					LastActivity: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				},
			},
		},
		{
			name:   "Empty",
			status: 200,
			body:   `{"channels": []}`,
			want:   []chat.Channel{},
		},
		{
			name:    "ServerError",
			status:  500,
			body:    `{"error": "boom"}`,
			wantErr: true,
		},
		{
			name:    "InvalidJSON",
			status:  200,
			body:    `not json`,
			wantErr: true,
		},
		{
			name:    "MissingType",
			status:  200,
			body:    `{"channels": [{"id": "general"}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/channels" {
					t.Errorf("Got path %q, want /channels", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := &Client{BaseURL: srv.URL}
			got, err := c.ListChannels(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ListChannels: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Channels (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClient_ListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/team-5/messages" {
			t.Errorf("Got path %q, want /channels/team-5/messages", r.URL.Path)
		}
		if got := r.URL.Query().Get("before"); got != "100" {
			t.Errorf("Got before %q, want 100", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("Got limit %q, want 50", got)
		}
		w.Write([]byte(`{
			"messages": [
				{
					"id": 98,
					"channel_id": "team-5",
					"author_id": "u1",
					"author_name": "Al",
					"content": "before lunch",
					"created_at": "2024-01-01T11:00:00Z"
				},
				{
					"id": 99,
					"channel_id": "team-5",
					"author_id": "u2",
					"author_name": "Bea",
					"content": "lunch?",
					"created_at": "2024-01-01T12:00:00Z",
					"reactions": {"👍": ["u1"]}
				}
			]
		}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	got, err := c.ListMessages(context.Background(), "team-5", 100, 50)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	want := []chat.Message{
		{
			ID:         98,
			ChannelID:  "team-5",
			AuthorID:   "u1",
			AuthorName: "Al",
			Content:    "before lunch",
			CreatedAt:  time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			ID:         99,
			ChannelID:  "team-5",
			AuthorID:   "u2",
			AuthorName: "Bea",
			Content:    "lunch?",
			CreatedAt:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			Reactions:  map[string][]string{"👍": {"u1"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Messages (-want +got):\n%s", diff)
	}
}

func TestClient_ListMessagesNewestPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("before") {
			t.Error("Newest page request must not carry a before cursor")
		}
		w.Write([]byte(`{"messages": []}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	if _, err := c.ListMessages(context.Background(), "general", 0, 50); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
}

func TestClient_ListMessagesContractBreach(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages": [{"id": 1, "channel_id": "general"}]}`)) // no author
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	if _, err := c.ListMessages(context.Background(), "general", 0, 50); err == nil {
		t.Fatal("Expected validation error")
	}
}
