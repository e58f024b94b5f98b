package mcp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/burnout-twin/burnout-twin/internal/eval"
	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/signals"
	"github.com/burnout-twin/burnout-twin/internal/snapshot"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

// Server wraps the MCP SDK server and exposes the twin to MCP clients.
type Server struct {
	MCPServer *sdkmcp.Server

	store        *state.Store
	snapshotPath string
	personaID    string
	rules        signals.Rules
}

// NewServer creates an MCP server over the given store and snapshot file.
func NewServer(store *state.Store, snapshotPath, personaID string) *Server {
	s := &Server{
		store:        store,
		snapshotPath: snapshotPath,
		personaID:    personaID,
		rules:        signals.DefaultRules(),
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "burnout-twin", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_persona_state",
		Description: "Get the active persona version: vitals, memory, version and burnout band.",
	}, s.handleGetPersonaState)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_last_snapshot",
		Description: "Get the most recently published persona snapshot as JSON text.",
	}, s.handleGetLastSnapshot)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "score_commits",
		Description: "Score commit messages and timestamps with the local burnout heuristic.",
	}, s.handleScoreCommits)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_versions",
		Description: "List recent persona versions, newest first, with the decision that produced each.",
	}, s.handleListVersions)
}

// --- Tool input/output types ---

type personaStateInput struct {
	PersonaID string `json:"persona_id,omitempty" jsonschema:"persona id; defaults to the twin's own"`
}

type personaStateOutput struct {
	PersonaID string         `json:"persona_id"`
	VersionID string         `json:"version_id"`
	Version   int            `json:"version"`
	Vitals    map[string]int `json:"vitals"`
	Memory    []string       `json:"memory"`
	CreatedAt string         `json:"created_at"`
	Band      eval.Band      `json:"band"`
}

type lastSnapshotInput struct{}

type lastSnapshotOutput struct {
	Present  bool   `json:"present"`
	Snapshot string `json:"snapshot,omitempty"`
}

type commitInput struct {
	Message string `json:"message" jsonschema:"commit message"`
	Date    string `json:"date,omitempty" jsonschema:"commit timestamp, RFC 3339"`
}

type scoreCommitsInput struct {
	Commits []commitInput `json:"commits" jsonschema:"commits to score"`
}

type listVersionsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"max versions to return (default 10)"`
}

type versionSummary struct {
	VersionID string         `json:"version_id"`
	ParentID  string         `json:"parent_id,omitempty"`
	Version   int            `json:"version"`
	Vitals    map[string]int `json:"vitals"`
	Decision  string         `json:"decision,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type listVersionsOutput struct {
	Versions []versionSummary `json:"versions"`
}

// --- Tool handlers ---

func (s *Server) handleGetPersonaState(_ context.Context, _ *sdkmcp.CallToolRequest, in personaStateInput) (*sdkmcp.CallToolResult, personaStateOutput, error) {
	id := in.PersonaID
	if id == "" {
		id = s.personaID
	}
	rec, err := s.store.GetCurrent(id)
	if err != nil {
		return nil, personaStateOutput{}, fmt.Errorf("persona %q: %w", id, err)
	}
	return nil, personaStateOutput{
		PersonaID: rec.PersonaID,
		VersionID: rec.VersionID,
		Version:   rec.Version,
		Vitals:    rec.Vitals,
		Memory:    nonNil(rec.Memory),
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		Band:      eval.Classify(rec.Vitals),
	}, nil
}

func (s *Server) handleGetLastSnapshot(_ context.Context, _ *sdkmcp.CallToolRequest, _ lastSnapshotInput) (*sdkmcp.CallToolResult, lastSnapshotOutput, error) {
	data, err := snapshot.Read(s.snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, lastSnapshotOutput{Present: false}, nil
	}
	if err != nil {
		return nil, lastSnapshotOutput{}, fmt.Errorf("read snapshot: %w", err)
	}
	return nil, lastSnapshotOutput{Present: true, Snapshot: string(data)}, nil
}

func (s *Server) handleScoreCommits(_ context.Context, _ *sdkmcp.CallToolRequest, in scoreCommitsInput) (*sdkmcp.CallToolResult, signals.Damage, error) {
	commits := make([]events.Commit, 0, len(in.Commits))
	for _, c := range in.Commits {
		commits = append(commits, events.Commit{Message: c.Message, Date: c.Date})
	}
	return nil, s.rules.Calculate(commits), nil
}

func (s *Server) handleListVersions(_ context.Context, _ *sdkmcp.CallToolRequest, in listVersionsInput) (*sdkmcp.CallToolResult, listVersionsOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.store.ListVersionsWithProvenance(limit)
	if err != nil {
		return nil, listVersionsOutput{}, fmt.Errorf("list versions: %w", err)
	}
	out := listVersionsOutput{Versions: make([]versionSummary, 0, len(rows))}
	for _, r := range rows {
		out.Versions = append(out.Versions, versionSummary{
			VersionID: r.VersionID,
			ParentID:  r.ParentID,
			Version:   r.Version,
			Vitals:    r.Vitals,
			Decision:  r.Decision,
			Reason:    r.Reason,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
