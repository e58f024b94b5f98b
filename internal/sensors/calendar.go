package sensors

import (
	"context"
	"fmt"

	"github.com/burnout-twin/burnout-twin/internal/events"
)

// #region calendar
// Calendar reports upcoming entries from an MCP calendar server. Without a
// source it never emits.
type Calendar struct {
	source *MCPSource
}

// DefaultCalendarTool is the tool called on the calendar server.
const DefaultCalendarTool = "list_events"

// NewCalendar returns a calendar sensor. source may be nil.
func NewCalendar(source *MCPSource) *Calendar {
	return &Calendar{source: source}
}

func (c *Calendar) Name() string { return "calendar" }

// Poll returns one CalendarEvent when the server lists any entries.
func (c *Calendar) Poll(ctx context.Context) ([]events.Event, error) {
	if c.source == nil {
		return nil, nil
	}
	items, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return []events.Event{events.CalendarEvent{Entries: items}}, nil
}

// #endregion calendar
