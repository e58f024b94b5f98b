package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/burnout-twin/burnout-twin/internal/eval"
	"github.com/burnout-twin/burnout-twin/internal/interior"
	"github.com/burnout-twin/burnout-twin/internal/state"
)

var (
	inspectLast      int
	inspectVersion   string
	inspectReactions int
	inspectJSON      bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show persona versions, their decisions and recent reactions",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent versions")
	inspectCmd.Flags().StringVar(&inspectVersion, "version", "", "show single version detail")
	inspectCmd.Flags().IntVar(&inspectReactions, "reactions", 0, "also show N most recent narrated reactions")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of table")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if inspectVersion != "" {
		if err := runDetailMode(out, store, inspectVersion, inspectJSON); err != nil {
			return err
		}
	} else if err := runListMode(out, store, inspectLast, inspectJSON); err != nil {
		return err
	}

	if inspectReactions > 0 {
		return runReactions(out, store, inspectReactions, inspectJSON)
	}
	return nil
}

// #region list-mode

type listRow struct {
	VersionID string       `json:"version_id"`
	Version   int          `json:"version"`
	Vitals    state.Vitals `json:"vitals"`
	Band      eval.Band    `json:"band"`
	Decision  string       `json:"decision"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt string       `json:"created_at"`
}

func runListMode(w io.Writer, store *state.Store, last int, jsonOut bool) error {
	versions, err := store.ListVersionsWithProvenance(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// store returns newest first; print chronologically
	rows := make([]listRow, len(versions))
	for i, vp := range versions {
		decision := vp.Decision
		if decision == "" && vp.ParentID == "" {
			decision = "initial"
		}
		rows[len(versions)-1-i] = listRow{
			VersionID: vp.VersionID,
			Version:   vp.Version,
			Vitals:    vp.Vitals,
			Band:      eval.Classify(vp.Vitals),
			Decision:  decision,
			Reason:    vp.Reason,
			CreatedAt: vp.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(w, rows)
	}
	printListTable(w, rows)
	return nil
}

func printListTable(w io.Writer, rows []listRow) {
	channels := channelNames(rows[len(rows)-1].Vitals)
	header := fmt.Sprintf("%-10s  %4s", "Version", "#")
	rule := fmt.Sprintf("%-10s+-%4s", "----------", "----")
	for _, c := range channels {
		header += fmt.Sprintf("  %10s", c)
		rule += "+-" + strings.Repeat("-", 10)
	}
	header += fmt.Sprintf("  %7s  %-10s  %-8s  %s", "Burnout", "Band", "Decision", "Time")
	rule += "+-" + strings.Repeat("-", 7) + "+-" + strings.Repeat("-", 10) + "+-" + strings.Repeat("-", 8) + "+-" + strings.Repeat("-", 20)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, rule)

	for _, r := range rows {
		line := fmt.Sprintf("%-10s  %4d", shortID(r.VersionID), r.Version)
		for _, c := range channels {
			line += fmt.Sprintf("  %10d", r.Vitals[c])
		}
		line += fmt.Sprintf("  %7d  %-10s  %-8s  %s", r.Band.BurnoutValue, r.Band.StressBand, r.Decision, r.CreatedAt)
		fmt.Fprintln(w, line)
	}
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	VersionID string       `json:"version_id"`
	ParentID  string       `json:"parent_id"`
	PersonaID string       `json:"persona_id"`
	Version   int          `json:"version"`
	CreatedAt string       `json:"created_at"`
	Vitals    state.Vitals `json:"vitals"`
	Memory    []string     `json:"memory"`
	Band      eval.Band    `json:"band"`
	Metrics   any          `json:"metrics,omitempty"`
}

func runDetailMode(w io.Writer, store *state.Store, versionID string, jsonOut bool) error {
	rec, err := store.GetVersion(versionID)
	if err != nil {
		return fmt.Errorf("version %s: %w", versionID, err)
	}

	out := detailOutput{
		VersionID: rec.VersionID,
		ParentID:  rec.ParentID,
		PersonaID: rec.PersonaID,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Vitals:    rec.Vitals,
		Memory:    rec.Memory,
		Band:      eval.Classify(rec.Vitals),
	}
	if rec.MetricsJSON != "" {
		var m map[string]any
		if json.Unmarshal([]byte(rec.MetricsJSON), &m) == nil {
			out.Metrics = m
		}
	}

	if jsonOut {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Version:  %s (#%d)\n", out.VersionID, out.Version)
	fmt.Fprintf(w, "Parent:   %s\n", out.ParentID)
	fmt.Fprintf(w, "Persona:  %s\n", out.PersonaID)
	fmt.Fprintf(w, "Created:  %s\n", out.CreatedAt)
	fmt.Fprintf(w, "Band:     %s (burnout %d, %s)\n", out.Band.StressBand, out.Band.BurnoutValue, out.Band.Avatar)

	fmt.Fprintf(w, "\nVitals:\n")
	for _, c := range channelNames(out.Vitals) {
		fmt.Fprintf(w, "  %-12s %3d\n", c, out.Vitals[c])
	}
	if len(out.Memory) > 0 {
		fmt.Fprintf(w, "\nMemory (newest first):\n")
		for _, m := range out.Memory {
			fmt.Fprintf(w, "  - %s\n", m)
		}
	}
	return nil
}

// #endregion detail-mode

// #region reactions

func runReactions(w io.Writer, store *state.Store, limit int, jsonOut bool) error {
	rs, err := interior.NewReactionStore(store.DB())
	if err != nil {
		return err
	}
	reactions, err := rs.List(limit)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, reactions)
	}
	fmt.Fprintf(w, "\nReactions (newest first):\n")
	for _, r := range reactions {
		fmt.Fprintf(w, "  [%s] %s\n", r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"), r.ReactionText)
	}
	return nil
}

// #endregion reactions

// #region output

func channelNames(v state.Vitals) []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
