package proposal

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// Integer values are bounded to this magnitude before clamping so that
// huge or non-finite numbers cannot overflow channel arithmetic.
const intBound = math.MaxInt32

// #region parse
// Parse turns free-form judgment text into a Proposal. It tries the first
// balanced JSON substring, then the whole text. When neither yields a JSON
// object it returns an empty proposal and a *ParseError.
func Parse(text string) (Proposal, error) {
	if sub, ok := Extract(text); ok {
		if p, err := Decode([]byte(sub)); err == nil {
			return p, nil
		}
	}
	p, err := Decode([]byte(strings.TrimSpace(text)))
	if err != nil {
		return Proposal{}, err
	}
	return p, nil
}

// #endregion parse

// #region decode
// Decode reads a JSON object permissively. Comments and trailing commas are
// tolerated. Fields with the wrong type are dropped rather than rejected;
// only input that is not a JSON object at all is an error.
func Decode(raw []byte) (Proposal, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		if err2 := json.Unmarshal(jsonc.ToJSON(raw), &v); err2 != nil {
			return Proposal{}, &ParseError{Reason: err.Error(), Text: string(raw)}
		}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Proposal{}, &ParseError{Reason: "judgment is not a JSON object", Text: string(raw)}
	}

	var p Proposal
	p.Absolute = intMap(firstOf(obj, "new_stats", "absolute"))
	p.Deltas = intMap(firstOf(obj, "adjustments", "deltas"))
	p.MemoryAdditions = stringList(obj["memory_additions"])
	if s, ok := obj["explanation"].(string); ok {
		p.Explanation = s
	}
	if b, ok := obj["push"].(bool); ok {
		p.Push = &b
	}
	if m, ok := obj["math"]; ok && m != nil {
		if b, err := json.Marshal(m); err == nil {
			p.Math = b
		}
	}
	return p, nil
}

// #endregion decode

// #region helpers
func firstOf(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return nil
}

// intMap keeps the entries of v that read as integers. Non-object input
// yields nil.
func intMap(v any) map[string]int {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, raw := range m {
		if n, ok := toInt(raw); ok {
			out[k] = n
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// toInt accepts JSON numbers and numeric strings, truncating toward zero.
// Booleans, nulls and everything else are rejected.
func toInt(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	f = math.Trunc(f)
	if f > intBound {
		return intBound, true
	}
	if f < -intBound {
		return -intBound, true
	}
	return int(f), true
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// #endregion helpers
