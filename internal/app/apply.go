package app

import (
	"fmt"

	"github.com/kesokaj/brew-lag/internal/executor"
	"github.com/kesokaj/brew-lag/internal/output"
	"github.com/kesokaj/brew-lag/internal/store"
	"github.com/spf13/cobra"
)

var (
	applyYes bool

	applyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Execute the queued change set",
		Long: `Replay the change set compiled by the last 'brew-lag plan' run.

Each queued change materializes the target definition into a private tap,
uninstalls the current keg, installs the target version and pins it so
ordinary 'brew upgrade' runs leave it alone. A failed install is recovered
by reinstalling the latest version, unpinned, and reported; the remaining
changes still execute.

The change set is consumed exactly once. After an apply pass, successful
or not, a fresh 'brew-lag plan' is needed before the next apply.`,
		Example: `  # Review and confirm interactively
  brew-lag apply

  # Skip the confirmation prompt
  brew-lag apply --yes`,
		RunE: runApply,
	}
)

func init() {
	applyCmd.Flags().BoolVar(&applyYes, "yes", false, "skip the confirmation prompt")
}

func runApply(cmd *cobra.Command, args []string) error {
	// Fail fast when a collaborator is missing
	if err := checkCollaborators(); err != nil {
		return err
	}

	// Get database path
	dbPath, err := getDBPath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}

	// Open database
	db, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.CreateSchema(); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	meta, err := db.GetPlanMeta()
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	if meta == nil {
		return store.ErrNoPlan
	}
	if meta.Stale {
		fmt.Println("⚠ The catalog has moved since this plan was compiled.")
		fmt.Println("  Targets may be off by a version. Re-run 'brew-lag plan' to refresh.")
		fmt.Println()
	}

	changes, err := db.ListChangeSet()
	if err != nil {
		return fmt.Errorf("failed to load change set: %w", err)
	}
	if len(changes) == 0 {
		fmt.Println("Nothing to do. Run 'brew-lag plan' to compile a fresh change set.")
		return nil
	}

	fmt.Print(output.RenderChangeTable(changes))
	fmt.Println()

	if !applyYes {
		if !confirm(fmt.Sprintf("Apply %d change(s)", len(changes))) {
			fmt.Println("Aborted.")
			return nil
		}
		fmt.Println()
	}

	repo, err := openTap()
	if err != nil {
		return err
	}

	ex := executor.New(db, repo)

	bar := output.NewPhaseBar()
	bar.StartPhase("applying changes", len(changes))
	result, err := ex.Apply(func(done, total int, pkg string) {
		bar.Update(done, pkg)
	})
	bar.FinishPhase()
	if err != nil {
		return fmt.Errorf("apply pass failed: %w", err)
	}

	fmt.Println()
	for _, f := range result.Failed {
		fmt.Printf("✗ %s: %v\n", f.Package, f.Err)
	}
	fmt.Printf("Applied %d of %d change(s).\n", len(result.Applied), len(changes))

	// Partial failure surfaces in the exit status
	return result.Err()
}
