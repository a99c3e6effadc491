package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// A SoundPlayer plays a sound asset. Implementations are provided by the
// embedding environment and resolve asset ids however they like.
type SoundPlayer interface {
	Play(asset string, volume int) error
}

// A Toaster shows a transient notification that auto-dismisses after ttl.
type Toaster interface {
	Show(content string, ttl time.Duration)
}

// A SettingsStore persists AudioSettings across sessions. Load reports false
// when nothing has been saved yet.
type SettingsStore interface {
	Load(ctx context.Context, userID string) (AudioSettings, bool, error)
	Save(ctx context.Context, userID string, settings AudioSettings) error
}

const (
	messageToastTTL  = 4 * time.Second
	reactionToastTTL = 4 * time.Second
)

// Notifier decides whether an event is worth a sound or a toast, and owns
// the user's AudioSettings. Playback is best effort: a sound that cannot be
// played is logged and forgotten, never an error for the message path.
type Notifier struct {
	Logger   *slog.Logger
	Player   SoundPlayer
	Toasts   Toaster
	Settings SettingsStore
	UserID   string

	once sync.Once
	mu   sync.Mutex
	cfg  AudioSettings

	current *reactionToast
	queue   []*reactionToast
	after   func(time.Duration, func())
}

type reactionToast struct {
	messageID int64
	emoji     string
	from      string
	count     int
}

func (n *Notifier) init() {
	n.once.Do(func() {
		n.cfg = DefaultAudioSettings()
		if n.after == nil {
			n.after = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
		}
		if n.Logger == nil {
			n.Logger = slog.Default()
		}
	})
}

// Load reads the persisted AudioSettings. Defaults apply when nothing has
// been saved yet or no store is configured.
func (n *Notifier) Load(ctx context.Context) error {
	n.init()
	if n.Settings == nil {
		return nil
	}
	cfg, ok, err := n.Settings.Load(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("load audio settings: %w", err)
	}
	if !ok {
		return nil
	}
	n.mu.Lock()
	n.cfg = cfg
	n.mu.Unlock()
	return nil
}

// AudioSettings returns the current settings.
func (n *Notifier) AudioSettings() AudioSettings {
	n.init()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cfg
}

// UpdateAudioSettings merges a partial update into the settings and persists
// the result.
func (n *Notifier) UpdateAudioSettings(ctx context.Context, patch AudioSettingsPatch) (AudioSettings, error) {
	n.init()
	n.mu.Lock()
	if patch.Enabled != nil {
		n.cfg.Enabled = *patch.Enabled
	}
	if patch.Volume != nil {
		n.cfg.Volume = *patch.Volume
	}
	if patch.SendSound != nil {
		n.cfg.SendSound = *patch.SendSound
	}
	if patch.ReceiveSound != nil {
		n.cfg.ReceiveSound = *patch.ReceiveSound
	}
	cfg := n.cfg
	n.mu.Unlock()

	if n.Settings != nil {
		if err := n.Settings.Save(ctx, n.UserID, cfg); err != nil {
			return cfg, fmt.Errorf("save audio settings: %w", err)
		}
	}
	return cfg, nil
}

// ToggleSound flips the master switch and reports the new state.
func (n *Notifier) ToggleSound(ctx context.Context) (bool, error) {
	n.init()
	enabled := !n.AudioSettings().Enabled
	_, err := n.UpdateAudioSettings(ctx, AudioSettingsPatch{Enabled: &enabled})
	return enabled, err
}

// PreviewSound plays an asset once at the current volume, for the explicit
// sound-test affordance in the settings screen.
func (n *Notifier) PreviewSound(asset string) {
	n.init()
	if asset == "" || n.Player == nil {
		return
	}
	if err := n.Player.Play(asset, n.AudioSettings().Volume); err != nil {
		n.Logger.Warn("Could not preview sound", "asset", asset, "error", err.Error())
	}
}

// OnMessage reacts to a message entering or leaving the client. The master
// switch beats every per-sound setting; a muted channel suppresses sound and
// toast alike; a received message in a channel that is not active also gets
// a toast.
func (n *Notifier) OnMessage(msg Message, dir Direction, active, muted bool) {
	n.init()
	if muted {
		return
	}
	cfg := n.AudioSettings()
	if cfg.Enabled {
		asset := cfg.ReceiveSound
		if dir == DirectionSent {
			asset = cfg.SendSound
		}
		if asset != "" && n.Player != nil {
			if err := n.Player.Play(asset, cfg.Volume); err != nil {
				n.Logger.Warn("Could not play sound", "asset", asset, "error", err.Error())
			}
		}
	}
	if dir == DirectionReceived && !active && n.Toasts != nil {
		n.Toasts.Show(fmt.Sprintf("%s: %s", msg.AuthorName, msg.Content), messageToastTTL)
	}
}

// OnReaction queues an emoji-reaction toast. Toasts display one at a time
// and auto-dismiss; a burst of reactions to the same message updates the
// displayed count in place instead of stacking duplicates.
func (n *Notifier) OnReaction(messageID int64, emoji, from string) {
	n.init()
	if n.Toasts == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil && n.current.messageID == messageID {
		n.current.count++
		n.Toasts.Show(n.current.render(), reactionToastTTL)
		return
	}
	for _, t := range n.queue {
		if t.messageID == messageID {
			t.count++
			return
		}
	}
	t := &reactionToast{messageID: messageID, emoji: emoji, from: from, count: 1}
	if n.current != nil {
		n.queue = append(n.queue, t)
		return
	}
	n.show(t)
}

// show displays a toast and schedules its dismissal. Callers must hold n.mu.
func (n *Notifier) show(t *reactionToast) {
	n.current = t
	n.Toasts.Show(t.render(), reactionToastTTL)
	n.after(reactionToastTTL, n.dismiss)
}

// dismiss retires the displayed toast and shows the next queued one, if any.
func (n *Notifier) dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.queue) == 0 {
		n.current = nil
		return
	}
	next := n.queue[0]
	n.queue = n.queue[1:]
	n.show(next)
}

func (t *reactionToast) render() string {
	if t.count > 1 {
		return fmt.Sprintf("%s and %d others reacted with %s", t.from, t.count-1, t.emoji)
	}
	return fmt.Sprintf("%s reacted with %s", t.from, t.emoji)
}
