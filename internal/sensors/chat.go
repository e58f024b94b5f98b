package sensors

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/burnout-twin/burnout-twin/internal/events"
)

// #region chat
// Chat simulates an interrupting chat feed: each poll emits the configured
// message with the configured probability.
type Chat struct {
	probability float64
	from        string
	message     string

	mu  sync.Mutex
	rng *rand.Rand
}

// ChatConfig configures the simulated chat sensor. Zero values take defaults.
type ChatConfig struct {
	Probability float64
	From        string
	Message     string
	Rand        *rand.Rand
}

// NewChat returns a simulated chat sensor.
func NewChat(cfg ChatConfig) *Chat {
	c := &Chat{
		probability: cfg.Probability,
		from:        cfg.From,
		message:     cfg.Message,
		rng:         cfg.Rand,
	}
	if c.probability <= 0 {
		c.probability = DefaultChatProbability
	}
	if c.from == "" {
		c.from = DefaultChatFrom
	}
	if c.message == "" {
		c.message = DefaultChatMessage
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return c
}

func (c *Chat) Name() string { return "chat" }

func (c *Chat) Poll(context.Context) ([]events.Event, error) {
	c.mu.Lock()
	roll := c.rng.Float64()
	c.mu.Unlock()
	if roll >= c.probability {
		return nil, nil
	}
	return []events.Event{events.ChatEvent{From: c.from, Message: c.message}}, nil
}

// #endregion chat
