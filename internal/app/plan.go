package app

import (
	"fmt"

	"github.com/kesokaj/brew-lag/internal/brew"
	"github.com/kesokaj/brew-lag/internal/miner"
	"github.com/kesokaj/brew-lag/internal/output"
	"github.com/kesokaj/brew-lag/internal/planner"
	"github.com/kesokaj/brew-lag/internal/resolver"
	"github.com/kesokaj/brew-lag/internal/store"
	"github.com/spf13/cobra"
)

var (
	planRefresh bool
	planOffset  int
	planJobs    int

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Mine lag targets and compile the change set",
		Long: `Compute a lag target for every installed formula and queue the changes
needed to reach it.

For each formula the homebrew-core git history is scanned newest-first and
the Nth-most-recent distinct version becomes the target (N is the lag
offset). Runtime dependencies are then reconciled: when a formula's target
needs a dependency newer than that dependency's own target, the dependency
is raised so the set stays installable together.

The plan command runs in phases:
  • Scan installed formulae via brew
  • Mine each formula's history for its lag target
  • Read each target definition for runtime dependencies
  • Raise dependencies to the level their dependents require
  • Classify every formula and queue the required changes

The compiled plan is stored durably. Review the table, then run
'brew-lag apply' to execute it. Re-running plan replaces the previous
plan wholesale.`,
		Example: `  # Plan with the configured offset (default 3 versions back)
  brew-lag plan

  # Refresh homebrew-core first, then plan
  brew-lag plan --refresh

  # Plan a deeper lag with more workers
  brew-lag plan --offset 5 --jobs 16`,
		RunE: runPlan,
	}
)

func init() {
	planCmd.Flags().BoolVar(&planRefresh, "refresh", false, "run 'brew update' before planning")
	planCmd.Flags().IntVar(&planOffset, "offset", 0, "versions to lag behind the newest (default from config, 3)")
	planCmd.Flags().IntVar(&planJobs, "jobs", 0, "parallel history workers (default from config, 8)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	// Fail fast when a collaborator is missing
	if err := checkCollaborators(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Flags override config file values
	if cmd.Flags().Changed("offset") {
		cfg.Offset = planOffset
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Jobs = planJobs
	}
	if cfg.Offset < 1 {
		return fmt.Errorf("offset must be at least 1, got %d", cfg.Offset)
	}
	if cfg.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", cfg.Jobs)
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

	// Create schema if needed
	if err := db.CreateSchema(); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	if planRefresh {
		spinner := output.NewSpinner("Updating homebrew-core...")
		spinner.Start()
		if err := brew.Update(); err != nil {
			spinner.Stop()
			return fmt.Errorf("failed to update homebrew-core: %w", err)
		}
		spinner.StopWithMessage("✓ homebrew-core updated")
	}

	repo, err := openTap()
	if err != nil {
		return err
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve catalog head: %w", err)
	}

	spinner := output.NewSpinner("Scanning installed formulae...")
	spinner.Start()
	installed, err := brew.InstalledFormulae()
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to list installed formulae: %w", err)
	}
	spinner.StopWithMessage(fmt.Sprintf("✓ %d formulae installed", len(installed)))

	excepted, err := db.ExceptionNames()
	if err != nil {
		return fmt.Errorf("failed to load exceptions: %w", err)
	}

	// Excepted formulae are never mined; they only get EXCEPTED rows.
	var minable []*brew.PackageRecord
	var exceptedInstalled []string
	for _, pkg := range installed {
		if excepted[pkg.Name] {
			exceptedInstalled = append(exceptedInstalled, pkg.Name)
			continue
		}
		minable = append(minable, pkg)
	}

	bar := output.NewPhaseBar()

	m := miner.New(repo, db, head, cfg.Offset)
	bar.StartPhase("mining history", len(minable))
	outcomes := m.ResolveAll(minable, cfg.Jobs, func(done int, name string) {
		bar.Update(done, name)
	})
	bar.FinishPhase()

	var targets []*miner.RevisionTarget
	for _, o := range outcomes {
		if o.Err == nil {
			targets = append(targets, o.Target)
		}
	}

	bar.StartPhase("reading definitions", len(targets))
	deps, warnings := resolver.RuntimeDeps(targets, repo, cfg.Jobs, func(done int, name string) {
		bar.Update(done, name)
	})
	bar.FinishPhase()
	for _, w := range warnings {
		fmt.Printf("warning: %v\n", w)
	}

	levels := resolver.WaterLevel(targets, deps)

	plan := planner.Compile(outcomes, levels, exceptedInstalled, repo)
	if err := planner.Save(db, plan, head, cfg.Offset); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	fmt.Println()
	fmt.Print(output.RenderPlanTable(plan.Rows))
	fmt.Println()
	fmt.Print(output.RenderPlanSummary(plan.Counts()))

	if queued := len(plan.Changes); queued > 0 {
		fmt.Println()
		fmt.Printf("Run 'brew-lag apply' to execute %d queued change(s).\n", queued)
	}

	return nil
}
