package sensors

import (
	"context"

	"github.com/burnout-twin/burnout-twin/internal/events"
)

// #region sensor
// Sensor produces zero or more events per polling cycle. A sensor with
// nothing new returns an empty slice and a nil error.
type Sensor interface {
	Name() string
	Poll(ctx context.Context) ([]events.Event, error)
}

// #endregion sensor

// #region track
// Track is one entry of the simulated listening rotation.
type Track struct {
	Title string
	Vibe  string
}

// DefaultRotation is the simulated listening feed, one track per period.
var DefaultRotation = []Track{
	{Title: "Lofi Study Beats", Vibe: "Neutral"},
	{Title: "Stress (Justice)", Vibe: "High Anxiety"},
	{Title: "Hurt (Johnny Cash)", Vibe: "Depressive"},
	{Title: "Silence", Vibe: "Numb"},
}

// #endregion track

// #region chat
// Chat defaults.
const (
	DefaultChatProbability = 0.2
	DefaultChatFrom        = "boss"
	DefaultChatMessage     = "URGENT: Client is furious. Fix this NOW."
)

// #endregion chat
