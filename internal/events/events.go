package events

import (
	"encoding/json"
	"fmt"
)

// #region marshal
func (e CommitBatch) MarshalJSON() ([]byte, error) {
	type alias CommitBatch
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindCommit, alias(e)})
}

func (e MusicEvent) MarshalJSON() ([]byte, error) {
	type alias MusicEvent
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindMusic, alias(e)})
}

func (e ChatEvent) MarshalJSON() ([]byte, error) {
	type alias ChatEvent
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindChat, alias(e)})
}

func (e CalendarEvent) MarshalJSON() ([]byte, error) {
	type alias CalendarEvent
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindCalendar, alias(e)})
}

// MarshalJSON encodes a nil batch as an empty array so payloads never carry null events.
func (b Batch) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Event(b))
}

// #endregion marshal

// #region unmarshal
// UnmarshalBatch decodes a JSON array of tagged events.
func UnmarshalBatch(data []byte) (Batch, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	batch := make(Batch, 0, len(raw))
	for i, r := range raw {
		ev, err := UnmarshalEvent(r)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		batch = append(batch, ev)
	}
	return batch, nil
}

// UnmarshalJSON lets a Batch field round-trip inside larger documents.
func (b *Batch) UnmarshalJSON(data []byte) error {
	out, err := UnmarshalBatch(data)
	if err != nil {
		return err
	}
	*b = out
	return nil
}

// UnmarshalEvent decodes a single tagged event.
func UnmarshalEvent(data []byte) (Event, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event type: %w", err)
	}
	switch head.Type {
	case KindCommit:
		var e CommitBatch
		err := json.Unmarshal(data, &e)
		return e, err
	case KindMusic:
		var e MusicEvent
		err := json.Unmarshal(data, &e)
		return e, err
	case KindChat:
		var e ChatEvent
		err := json.Unmarshal(data, &e)
		return e, err
	case KindCalendar:
		var e CalendarEvent
		err := json.Unmarshal(data, &e)
		return e, err
	default:
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
}

// #endregion unmarshal
