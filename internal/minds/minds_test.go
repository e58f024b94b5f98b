package minds

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/llm"
	"github.com/burnout-twin/burnout-twin/internal/persona"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

type recorder struct {
	reqs  []llm.Request
	reply string
}

func (r *recorder) Complete(_ context.Context, req llm.Request) (string, error) {
	r.reqs = append(r.reqs, req)
	return r.reply, nil
}

func TestJudgeSendsPersonaAndEvents(t *testing.T) {
	rec := &recorder{reply: `{"adjustments":{"energy":-5}}`}
	j := NewJudge(rec)

	out, err := j.Judge(context.Background(), persona.JudgeRequest{
		PersonaState: state.NewPersona("twin", state.DefaultChannels),
		Events:       events.Batch{events.MusicEvent{Track: "Hurt", Vibe: "Depressive"}},
	})
	require.NoError(t, err)
	assert.Equal(t, rec.reply, out)

	require.Len(t, rec.reqs, 1)
	req := rec.reqs[0]
	assert.Contains(t, req.System, "memory_additions")
	require.True(t, strings.HasPrefix(req.User, "INPUT_JSON:\n"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(req.User, "INPUT_JSON:\n")), &payload))
	assert.Contains(t, payload, "persona_state")
	evs := payload["events"].([]any)
	assert.Equal(t, "SPOTIFY", evs[0].(map[string]any)["type"])
}

func TestAssessorRequestsSchema(t *testing.T) {
	rec := &recorder{reply: `{"assessment":"fine","notes":""}`}
	a := NewAssessor(rec)

	out, err := a.Assess(context.Background(), persona.Snapshot{ID: "twin"})
	require.NoError(t, err)
	assert.Equal(t, rec.reply, out)
	require.Len(t, rec.reqs, 1)
	assert.NotNil(t, rec.reqs[0].Schema)
	assert.Equal(t, "PersonaAssessment", rec.reqs[0].SchemaName)
	assert.Contains(t, rec.reqs[0].User, `"id":"twin"`)
}

func TestNarratorTrimsAndListsVitals(t *testing.T) {
	rec := &recorder{reply: "  I am so tired of this build.  \n"}
	n := NewNarrator(rec)

	out, err := n.Narrate(context.Background(),
		state.Vitals{"energy": 12, "social": 80},
		events.Batch{events.ChatEvent{Message: "Fix this NOW."}})
	require.NoError(t, err)
	assert.Equal(t, "I am so tired of this build.", out)
	assert.Contains(t, rec.reqs[0].User, "Energy: 12%")
	assert.Contains(t, rec.reqs[0].User, "Social: 80%")
	assert.Contains(t, rec.reqs[0].User, `"msg": "Fix this NOW."`)
}
