package signals

import (
	_ "embed"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/burnout-twin/burnout-twin/internal/events"
)

//go:embed heuristics.yaml
var heuristicsYAML []byte

var defaultRules = mustLoadRules(heuristicsYAML)

func mustLoadRules(data []byte) Rules {
	r, err := LoadRules(data)
	if err != nil {
		panic(fmt.Sprintf("load heuristics.yaml: %v", err))
	}
	return r
}

// LoadRules decodes a heuristics document.
func LoadRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	if r.MaxDamage <= 0 {
		return Rules{}, fmt.Errorf("max_damage must be positive, got %d", r.MaxDamage)
	}
	return r, nil
}

// DefaultRules returns the embedded rule set.
func DefaultRules() Rules {
	return defaultRules
}

// #region calculate
// CalculateDamage scores commits with the embedded rules.
func CalculateDamage(commits []events.Commit) Damage {
	return defaultRules.Calculate(commits)
}

// Calculate scores commits. Every rule is evaluated independently per
// commit; the total is capped at MaxDamage and signals keep first-seen order.
func (r Rules) Calculate(commits []events.Commit) Damage {
	out := Damage{Signals: []string{}, Count: len(commits)}
	seen := make(map[string]struct{})
	emit := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out.Signals = append(out.Signals, s)
	}

	total := 0
	for _, c := range commits {
		if hour, ok := commitHour(c.Date); ok && hour >= r.OffHours.FirstHour && hour <= r.OffHours.LastHour {
			total += r.OffHours.Penalty
			emit(r.OffHours.Signal)
		}

		n := utf8.RuneCountInString(strings.TrimSpace(c.Message))
		if n >= r.ShortMessage.MinLength && n <= r.ShortMessage.MaxLength {
			total += r.ShortMessage.Penalty
			emit(r.ShortMessage.Signal)
		}

		lower := strings.ToLower(c.Message)
		for _, kw := range r.Despair.Keywords {
			if strings.Contains(lower, kw) {
				total += r.Despair.Penalty
				emit(fmt.Sprintf(r.Despair.Signal, kw))
				break
			}
		}
	}

	if total > r.MaxDamage {
		total = r.MaxDamage
	}
	out.Damage = total
	return out
}

// #endregion calculate

// #region timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// commitHour returns the hour of day in the timestamp's own offset.
// Zone-less timestamps are read as UTC.
func commitHour(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Hour(), true
		}
	}
	return 0, false
}

// #endregion timestamps
