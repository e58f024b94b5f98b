package minds

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/llm"
	"github.com/burnout-twin/burnout-twin/internal/persona"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

// #region judge
// Judge asks the model how a batch of events should move the persona.
type Judge struct {
	llm llm.Completer
}

// NewJudge wraps a completer.
func NewJudge(c llm.Completer) *Judge {
	return &Judge{llm: c}
}

// Judge implements persona.Judge.
func (j *Judge) Judge(ctx context.Context, req persona.JudgeRequest) (string, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal judge input: %w", err)
	}
	return j.llm.Complete(ctx, llm.Request{
		System: judgeInstructions,
		User:   "INPUT_JSON:\n" + string(payload),
	})
}

// #endregion judge

// #region assessor
// Assessment is the reply shape requested from the assessor.
type Assessment struct {
	Assessment string `json:"assessment"`
	Notes      string `json:"notes"`
}

var assessmentSchema = llm.GenerateSchema[Assessment]()

// Assessor asks the model for a short verdict on a published snapshot.
type Assessor struct {
	llm llm.Completer
}

// NewAssessor wraps a completer.
func NewAssessor(c llm.Completer) *Assessor {
	return &Assessor{llm: c}
}

// Assess implements persona.Assessor. The raw text is returned unparsed.
func (a *Assessor) Assess(ctx context.Context, snap persona.Snapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return a.llm.Complete(ctx, llm.Request{
		System:     assessInstructions,
		User:       "SNAPSHOT:\n" + string(payload),
		Schema:     assessmentSchema,
		SchemaName: "PersonaAssessment",
	})
}

// #endregion assessor

// #region narrator
// Narrator produces the twin's short spoken reaction to a cycle.
type Narrator struct {
	llm llm.Completer
}

// NewNarrator wraps a completer.
func NewNarrator(c llm.Completer) *Narrator {
	return &Narrator{llm: c}
}

// Narrate returns a one-to-two sentence reaction, trimmed.
func (n *Narrator) Narrate(ctx context.Context, vitals state.Vitals, batch events.Batch) (string, error) {
	evs, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	var b strings.Builder
	b.WriteString("YOUR CURRENT VITALS:\n")
	keys := make([]string, 0, len(vitals))
	for k := range vitals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %d%%\n", titleCase(k), vitals[k])
	}
	b.WriteString("\nNEW EVENTS:\n")
	b.Write(evs)

	out, err := n.llm.Complete(ctx, llm.Request{System: narrateInstructions, User: b.String()})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// #endregion narrator
