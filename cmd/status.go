package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jayteealao/distpush/internal/config"
	"github.com/jayteealao/distpush/internal/lock"
	"github.com/jayteealao/distpush/internal/state"
	"github.com/jayteealao/distpush/internal/tui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured targets and their last deploy",
	Long: `Show every target defined in distpush.yaml together with the outcome
of its most recent deploy, and whether a deploy is running in the current
directory.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// targetStatus is one row of the status table.
type targetStatus struct {
	Environment string
	Target      config.DeployConfig
	Last        *state.Deployment
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	file, err := loadConfigFile()
	if err != nil {
		return err
	}

	store, err := initStore()
	if err != nil {
		return err
	}
	defer store.Close()

	targets, err := collectTargets(file)
	if err != nil {
		return err
	}

	for i := range targets {
		recent, err := store.ListDeployments(ctx, targets[i].Target.DisplayName(), 1)
		if err != nil {
			return fmt.Errorf("failed to list deployments: %w", err)
		}
		if len(recent) > 0 {
			targets[i].Last = recent[0]
		}
	}

	if len(targets) == 0 {
		fmt.Fprintf(out, "No targets configured. Run 'distpush init' to create %s.\n", ConfigName)
	} else {
		outputStatusTable(out, targets)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	lockMgr, err := initLockManager()
	if err != nil {
		return err
	}
	locked, pid, err := lockMgr.IsLocked(lock.KeyForDir(workDir))
	if err != nil {
		return err
	}
	if locked {
		fmt.Fprintf(out, "\nA deploy is running in this directory (PID %d).\n", pid)
	}
	return nil
}

// collectTargets lists the top-level target, when it names a host, followed
// by every environment.
func collectTargets(file *config.File) ([]targetStatus, error) {
	var targets []targetStatus
	if file.Host != "" {
		cfg, err := file.Target("")
		if err != nil {
			return nil, err
		}
		targets = append(targets, targetStatus{Environment: "-", Target: cfg})
	}
	for _, env := range file.EnvironmentNames() {
		cfg, err := file.Target(env)
		if err != nil {
			return nil, err
		}
		targets = append(targets, targetStatus{Environment: env, Target: cfg})
	}
	return targets, nil
}

func outputStatusTable(out io.Writer, targets []targetStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENVIRONMENT\tNAME\tTARGET\tLAST DEPLOY\tSTATUS")
	fmt.Fprintln(w, "-----------\t----\t------\t-----------\t------")

	for _, t := range targets {
		last, status := "-", "-"
		if t.Last != nil {
			last = t.Last.StartedAt.Local().Format("2006-01-02 15:04")
			status = tui.GetStatusStyle(t.Last.Status).Render(tui.GetStatusIcon(t.Last.Status) + " " + t.Last.Status)
		}
		fmt.Fprintf(w, "%s\t%s\t%s:%s\t%s\t%s\n",
			t.Environment, t.Target.DisplayName(), t.Target.Address(), t.Target.WebDir, last, status)
	}
	w.Flush()
}
