package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jayteealao/distpush/internal/orchestrator"
	"github.com/jayteealao/distpush/internal/state"
	"github.com/jayteealao/distpush/internal/tui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [name]",
	Short: "Show deployment history",
	Long: `Show recorded deploy runs, most recent first.

With a name, only runs of that project or environment are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var (
	historyLimitFlag int
	historyJSONFlag  bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "number of deployments to show")
	historyCmd.Flags().BoolVar(&historyJSONFlag, "json", false, "output in JSON format")
}

type historyEntry struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Host        string  `json:"host"`
	WebDir      string  `json:"web_dir"`
	Revision    string  `json:"revision,omitempty"`
	Status      string  `json:"status"`
	FailedStage string  `json:"failed_stage,omitempty"`
	Error       string  `json:"error,omitempty"`
	StartedAt   string  `json:"started_at"`
	FinishedAt  *string `json:"finished_at,omitempty"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var name string
	if len(args) > 0 {
		name = args[0]
	}

	store, err := initStore()
	if err != nil {
		return err
	}
	defer store.Close()

	deployments, err := store.ListDeployments(ctx, name, historyLimitFlag)
	if err != nil {
		return fmt.Errorf("failed to list deployments: %w", err)
	}

	out := cmd.OutOrStdout()
	if historyJSONFlag {
		return outputHistoryJSON(out, deployments)
	}

	if len(deployments) == 0 {
		if name != "" {
			fmt.Fprintf(out, "No deployments found for %q.\n", name)
		} else {
			fmt.Fprintln(out, "No deployments found.")
		}
		return nil
	}

	return outputHistoryTable(out, deployments)
}

func toHistoryEntry(d *state.Deployment) historyEntry {
	entry := historyEntry{
		ID:          d.ID,
		Name:        d.Name,
		Host:        d.Host,
		WebDir:      d.WebDir,
		Revision:    d.Revision,
		Status:      d.Status,
		FailedStage: d.FailedStage,
		Error:       d.ErrorMessage,
		StartedAt:   d.StartedAt.UTC().Format(time.RFC3339),
	}
	if d.FinishedAt != nil {
		finishedStr := d.FinishedAt.UTC().Format(time.RFC3339)
		entry.FinishedAt = &finishedStr
	}
	return entry
}

func outputHistoryJSON(out io.Writer, deployments []*state.Deployment) error {
	entries := make([]historyEntry, 0, len(deployments))
	for _, d := range deployments {
		entries = append(entries, toHistoryEntry(d))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func outputHistoryTable(out io.Writer, deployments []*state.Deployment) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tTARGET\tREVISION\tSTATUS\tSTAGE\tSTARTED\tDURATION")
	fmt.Fprintln(w, "  --\t----\t------\t--------\t------\t-----\t-------\t--------")

	for _, d := range deployments {
		stage := "-"
		if d.FailedStage != "" {
			stage = d.FailedStage
			if s, err := orchestrator.ParseStage(d.FailedStage); err == nil {
				stage = fmt.Sprintf("(%d) %s", s.Number(), s)
			}
		}
		revision := d.Revision
		if revision == "" {
			revision = "-"
		}

		fmt.Fprintf(w, "  %s\t%s\t%s:%s\t%s\t%s %s\t%s\t%s\t%s\n",
			shortID(d.ID),
			d.Name,
			d.Host,
			d.WebDir,
			revision,
			tui.GetStatusIcon(d.Status),
			d.Status,
			stage,
			d.StartedAt.Local().Format("2006-01-02 15:04"),
			formatDuration(d))
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d *state.Deployment) string {
	if d.FinishedAt == nil {
		return "-"
	}
	dur := d.Duration()
	if dur.Seconds() < 60 {
		return fmt.Sprintf("%.0fs", dur.Seconds())
	}
	return fmt.Sprintf("%.1fm", dur.Minutes())
}
