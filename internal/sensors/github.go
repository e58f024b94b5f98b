package sensors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/burnout-twin/burnout-twin/internal/events"
	"github.com/burnout-twin/burnout-twin/internal/signals"
)

// #region config
// GitHubConfig configures the commit sensor.
type GitHubConfig struct {
	// Repo is "owner/name".
	Repo  string
	Token string

	// BaseURL defaults to https://api.github.com.
	BaseURL string
	// PerPage is how many recent commits to fetch per poll. Defaults to 15.
	PerPage int

	HTTPClient *http.Client
	Rules      *signals.Rules
	Logger     *zap.Logger
}

// DefaultRepo is watched when no repository is configured.
const DefaultRepo = "nishsm/sample-burnout-repo"

// #endregion config

// #region sensor
// GitHub polls the commits endpoint and scores commits it has not seen
// before. The first poll scores the whole page.
type GitHub struct {
	repo    string
	token   string
	baseURL string
	perPage int
	http    *http.Client
	rules   signals.Rules
	logger  *zap.Logger

	mu       sync.Mutex
	lastHead string
}

// NewGitHub returns a commit sensor with defaults resolved.
func NewGitHub(cfg GitHubConfig) *GitHub {
	g := &GitHub{
		repo:    cfg.Repo,
		token:   cfg.Token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		perPage: cfg.PerPage,
		http:    cfg.HTTPClient,
		rules:   signals.DefaultRules(),
		logger:  cfg.Logger,
	}
	if g.repo == "" {
		g.repo = DefaultRepo
	}
	if g.baseURL == "" {
		g.baseURL = "https://api.github.com"
	}
	if g.perPage <= 0 {
		g.perPage = 15
	}
	if g.http == nil {
		g.http = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Rules != nil {
		g.rules = *cfg.Rules
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	return g
}

func (g *GitHub) Name() string { return "github" }

// Poll fetches recent commits and emits one CommitBatch when the unseen
// commits carry any damage.
func (g *GitHub) Poll(ctx context.Context) ([]events.Event, error) {
	commits, err := g.fetch(ctx)
	if err != nil {
		return nil, err
	}
	fresh := g.unseen(commits)
	if len(fresh) == 0 {
		return nil, nil
	}

	d := g.rules.Calculate(fresh)
	g.logger.Debug("scored commits",
		zap.String("repo", g.repo),
		zap.Int("count", d.Count),
		zap.Int("damage", d.Damage),
	)
	if d.Damage <= 0 {
		return nil, nil
	}
	return []events.Event{events.CommitBatch{
		Damage:  d.Damage,
		Signals: d.Signals,
		Count:   d.Count,
		Commits: fresh,
	}}, nil
}

// unseen returns the commits newer than the last head, newest first, and
// advances the head.
func (g *GitHub) unseen(commits []events.Commit) []events.Commit {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(commits) == 0 {
		return nil
	}
	prev := g.lastHead
	g.lastHead = commits[0].SHA
	if prev == "" {
		return commits
	}
	for i, c := range commits {
		if c.SHA == prev {
			return commits[:i]
		}
	}
	return commits
}

// #endregion sensor

// #region fetch
type apiCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

func (g *GitHub) fetch(ctx context.Context) ([]events.Commit, error) {
	u := fmt.Sprintf("%s/repos/%s/commits?per_page=%d", g.baseURL, g.repo, g.perPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if g.token != "" {
		req.Header.Set("Authorization", "token "+g.token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github commits: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github commits: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw []apiCommit
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode github commits: %w", err)
	}
	out := make([]events.Commit, 0, len(raw))
	for _, c := range raw {
		out = append(out, events.Commit{
			SHA:     c.SHA,
			Message: c.Commit.Message,
			Date:    c.Commit.Author.Date,
		})
	}
	return out, nil
}

// #endregion fetch
