package proposal

import (
	"encoding/json"
	"fmt"
)

// #region proposal
// Proposal is the structured reading of one judgment response. Every field
// is optional; fields that were missing or malformed in the source text are
// simply absent here.
type Proposal struct {
	Deltas          map[string]int  `json:"adjustments,omitempty"`
	Absolute        map[string]int  `json:"new_stats,omitempty"`
	MemoryAdditions []string        `json:"memory_additions,omitempty"`
	Explanation     string          `json:"explanation,omitempty"`
	Push            *bool           `json:"push,omitempty"`
	Math            json.RawMessage `json:"math,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// ShouldPublish reports whether the caller should publish after this
// update. It defaults to true and is the only publish authority, including
// for failed proposals.
func (p Proposal) ShouldPublish() bool {
	if p.Push == nil {
		return true
	}
	return *p.Push
}

// Failed reports whether p carries an error marker.
func (p Proposal) Failed() bool {
	return p.Error != ""
}

// Empty reports whether p would leave any state untouched.
func (p Proposal) Empty() bool {
	return len(p.Deltas) == 0 && len(p.Absolute) == 0 && len(p.MemoryAdditions) == 0
}

// Failure returns the error-marker proposal for err.
func Failure(err error) Proposal {
	return Proposal{Error: err.Error()}
}

// #endregion proposal

// #region parse-error
// ParseError reports judgment text that held no usable JSON object.
type ParseError struct {
	Reason string
	Text   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("proposal parse: %s (len=%d)", e.Reason, len(e.Text))
}

// #endregion parse-error
