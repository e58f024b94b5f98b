package sensors

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/burnout-twin/burnout-twin/internal/events"
)

// #region music
// Music reports the current track whenever it changes. With a source set,
// the first track the source returns wins; otherwise, or when the source
// fails, the simulated rotation is used.
type Music struct {
	rotation []Track
	period   time.Duration
	now      func() time.Time
	source   *MCPSource
	logger   *zap.Logger

	mu   sync.Mutex
	last string
}

// MusicConfig configures the listening sensor. Zero values take defaults.
type MusicConfig struct {
	Rotation []Track
	Period   time.Duration
	Now      func() time.Time
	Source   *MCPSource
	Logger   *zap.Logger
}

// NewMusic returns a listening sensor.
func NewMusic(cfg MusicConfig) *Music {
	m := &Music{
		rotation: cfg.Rotation,
		period:   cfg.Period,
		now:      cfg.Now,
		source:   cfg.Source,
		logger:   cfg.Logger,
	}
	if len(m.rotation) == 0 {
		m.rotation = DefaultRotation
	}
	if m.period <= 0 {
		m.period = 15 * time.Second
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

func (m *Music) Name() string { return "music" }

// Poll emits a MusicEvent when the track differs from the previous poll.
func (m *Music) Poll(ctx context.Context) ([]events.Event, error) {
	ev, ok := m.fromSource(ctx)
	if !ok {
		ev = m.simulated()
	}

	key := ev.Track + "\x00" + ev.Artist
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == m.last {
		return nil, nil
	}
	m.last = key
	return []events.Event{ev}, nil
}

func (m *Music) simulated() events.MusicEvent {
	slot := m.now().UnixNano() / int64(m.period)
	t := m.rotation[int(slot%int64(len(m.rotation)))]
	return events.MusicEvent{Track: t.Title, Vibe: t.Vibe}
}

func (m *Music) fromSource(ctx context.Context) (events.MusicEvent, bool) {
	if m.source == nil {
		return events.MusicEvent{}, false
	}
	items, err := m.source.Fetch(ctx)
	if err != nil {
		m.logger.Warn("music source failed, using rotation", zap.Error(err))
		return events.MusicEvent{}, false
	}
	for _, item := range items {
		title := firstString(item, "title", "name")
		if title == "" {
			continue
		}
		return events.MusicEvent{Track: title, Artist: artistOf(item)}, true
	}
	return events.MusicEvent{}, false
}

// #endregion music

// #region fields
func firstString(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := item[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// artistOf accepts "artist" as a string or "artists" as a list of strings
// or of objects with a name.
func artistOf(item map[string]any) string {
	if s := firstString(item, "artist"); s != "" {
		return s
	}
	list, ok := item["artists"].([]any)
	if !ok {
		return ""
	}
	names := make([]string, 0, len(list))
	for _, a := range list {
		switch v := a.(type) {
		case string:
			names = append(names, v)
		case map[string]any:
			if n := firstString(v, "name"); n != "" {
				names = append(names, n)
			}
		default:
			names = append(names, fmt.Sprint(v))
		}
	}
	return strings.Join(names, ", ")
}

// #endregion fields
