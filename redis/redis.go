// Package redis persists per-user AudioSettings in Redis, one hash per user.
// It implements chat.SettingsStore.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/crewdesk/chatsync/chat"
)

// Settings provides AudioSettings persistence in Redis.
type Settings struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings it to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Settings, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Settings{
		cli: cli,
	}, nil
}

const settingsPrefix = "chat:settings"

// audioSettings mirrors chat.AudioSettings with redis hash field tags.
type audioSettings struct {
	Enabled      bool   `redis:"enabled"`
	Volume       int    `redis:"volume"`
	SendSound    string `redis:"send_sound"`
	ReceiveSound string `redis:"receive_sound"`
}

func key(userID string) string {
	return settingsPrefix + ":" + userID
}

// Load reads a user's saved settings. The second return value is false when
// the user has never saved any.
func (s *Settings) Load(ctx context.Context, userID string) (chat.AudioSettings, bool, error) {
	res := s.cli.HGetAll(ctx, key(userID))
	if err := res.Err(); err != nil {
		return chat.AudioSettings{}, false, fmt.Errorf("hgetall: %w", err)
	}
	vals, err := res.Result()
	if err != nil {
		return chat.AudioSettings{}, false, fmt.Errorf("hgetall: %w", err)
	}
	if len(vals) == 0 {
		return chat.AudioSettings{}, false, nil
	}
	var m audioSettings
	if err := res.Scan(&m); err != nil {
		return chat.AudioSettings{}, false, fmt.Errorf("scan: %w", err)
	}
	return chat.AudioSettings{
		Enabled:      m.Enabled,
		Volume:       m.Volume,
		SendSound:    m.SendSound,
		ReceiveSound: m.ReceiveSound,
	}, true, nil
}

// Save writes a user's settings, replacing any previous values.
func (s *Settings) Save(ctx context.Context, userID string, settings chat.AudioSettings) error {
	err := s.cli.HSet(ctx, key(userID),
		"enabled", settings.Enabled,
		"volume", settings.Volume,
		"send_sound", settings.SendSound,
		"receive_sound", settings.ReceiveSound,
	).Err()
	if err != nil {
		return fmt.Errorf("hset: %w", err)
	}
	return nil
}
