package cmd

import (
	"fmt"
	"os"

	"github.com/jayteealao/distpush/internal/artifact"
	apperrors "github.com/jayteealao/distpush/internal/errors"
	"github.com/jayteealao/distpush/internal/lock"
	"github.com/jayteealao/distpush/internal/state"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove residue left by failed deploys",
	Long: `Remove what a failed deploy leaves behind in the current directory.

A deploy that stops after the archive stage and before local cleanup leaves
dist.zip on disk, and a deploy that was killed leaves its history record in
the "deploying" state. This command:
1. Removes a stray dist.zip from the current directory
2. Marks unfinished deployments started here as interrupted

Remote residue (an uploaded dist.zip whose unpack failed) is overwritten by
the next successful deploy.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var (
	cleanupDryRunFlag bool
)

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().BoolVar(&cleanupDryRunFlag, "dry-run", false, "show what would be cleaned without making changes")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	lockMgr, err := initLockManager()
	if err != nil {
		return err
	}

	// A running deploy owns both the archive and its record.
	locked, pid, err := lockMgr.IsLocked(lock.KeyForDir(workDir))
	if err != nil {
		return err
	}
	if locked {
		return fmt.Errorf("%w (PID %d)", apperrors.ErrProjectLocked, pid)
	}

	store, err := initStore()
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintln(out, "Starting cleanup...")
	if cleanupDryRunFlag {
		fmt.Fprintln(out, "(dry run mode - no changes will be made)")
	}

	// 1. Local archive
	artifacts := artifact.NewManager(workDir)
	if artifacts.Exists() {
		fmt.Fprintf(out, "  Found stray archive: %s\n", artifacts.Path())
		if !cleanupDryRunFlag {
			if _, err := artifacts.RemoveResidue(); err != nil {
				return err
			}
		}
	}

	// 2. Unfinished records
	interrupted, err := store.GetInterruptedDeployments(ctx, workDir)
	if err != nil {
		return fmt.Errorf("failed to get interrupted deployments: %w", err)
	}

	for _, d := range interrupted {
		fmt.Fprintf(out, "  Found interrupted deployment: %s (%s, started %s)\n",
			shortID(d.ID), d.Name, d.StartedAt.Local().Format("2006-01-02 15:04"))
		if !cleanupDryRunFlag {
			errMsg := "marked as interrupted during cleanup"
			if err := store.FinishDeployment(ctx, d.ID, state.StatusInterrupted, "", &errMsg); err != nil {
				fmt.Fprintf(os.Stderr, "    Warning: failed to update status: %v\n", err)
			}
		}
	}

	fmt.Fprintln(out, "Cleanup complete.")
	return nil
}
