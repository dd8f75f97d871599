package app

import (
	"fmt"

	"github.com/kesokaj/brew-lag/internal/brew"
	"github.com/kesokaj/brew-lag/internal/executor"
	"github.com/kesokaj/brew-lag/internal/formula"
	"github.com/kesokaj/brew-lag/internal/miner"
	"github.com/kesokaj/brew-lag/internal/output"
	"github.com/kesokaj/brew-lag/internal/resolver"
	"github.com/kesokaj/brew-lag/internal/store"
	"github.com/kesokaj/brew-lag/internal/tap"
	"github.com/kesokaj/brew-lag/internal/version"
	"github.com/spf13/cobra"
)

var (
	checkFix  bool
	checkDeps bool

	checkCmd = &cobra.Command{
		Use:   "check <formula>",
		Short: "Consult the lag target for a single formula",
		Long: `Report where one formula stands against its lag target.

The stored plan snapshot is consulted first so the answer agrees with the
last batch run, including any raise a dependent forced. A formula absent
from the snapshot is mined in isolation instead; isolated answers carry a
caveat because dependents outside the check cannot raise the target.

With --deps the formula's runtime dependencies are expanded recursively
against the snapshot, for information only. With --fix the formula is
installed at its target and pinned, releasing and restoring pins on its
already-pinned dependencies around the install.`,
		Example: `  # Where does jq stand?
  brew-lag check jq

  # Include the dependency expansion
  brew-lag check ffmpeg --deps

  # Bring one formula to its target without a batch apply
  brew-lag check jq --fix`,
		Args: cobra.ExactArgs(1),
		RunE: runCheck,
	}
)

func init() {
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "install the target version and pin it")
	checkCmd.Flags().BoolVar(&checkDeps, "deps", false, "expand runtime dependencies against the snapshot")
}

func runCheck(cmd *cobra.Command, args []string) error {
	name := args[0]

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

	pkg, err := brew.GetFormula(name)
	if err != nil {
		return err
	}

	report := output.CheckReport{
		Package:   name,
		Installed: pkg.InstalledVersion,
		Pinned:    pkg.Pinned,
	}

	excepted, err := db.ExceptionNames()
	if err != nil {
		return fmt.Errorf("failed to load exceptions: %w", err)
	}
	if excepted[name] {
		report.Excepted = true
		fmt.Print(output.RenderCheckReport(report))
		return nil
	}

	repo, err := openTap()
	if err != nil {
		return err
	}

	entry, err := db.GetResolvedEntry(name)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if entry == nil {
		var shallow bool
		entry, shallow, err = mineIsolated(db, repo, name, pkg.InstalledVersion)
		if err != nil {
			return err
		}
		report.Caveats = append(report.Caveats,
			"mined in isolation; dependents were not consulted")
		if shallow {
			report.Caveats = append(report.Caveats, "history window exhausted")
		}
	}
	report.Entry = entry

	if checkDeps {
		deps, err := resolver.DependencyTree(db, repo, entry, map[string]bool{})
		if err != nil {
			return err
		}
		report.Deps = deps
	}

	fmt.Print(output.RenderCheckReport(report))

	if !checkFix {
		return nil
	}

	action := fixAction(entry, pkg.InstalledVersion)
	if !action.Queued() {
		fmt.Printf("\n%s is already at its lag target.\n", name)
		return nil
	}

	fmt.Println()
	if !confirm(fmt.Sprintf("Install %s %s and pin it", name, entry.VersionLabel)) {
		fmt.Println("Aborted.")
		return nil
	}

	pinnedDeps, err := pinnedRuntimeDeps(repo, entry)
	if err != nil {
		return err
	}

	change := &store.Change{
		Package:        name,
		Action:         action,
		TargetLabel:    entry.VersionLabel,
		RevisionHandle: entry.RevisionHandle,
		DefinitionPath: entry.DefinitionPath,
	}

	spinner := output.NewSpinner(fmt.Sprintf("Installing %s %s...", name, entry.VersionLabel))
	spinner.Start()
	if err := executor.New(db, repo).ApplyOne(change, pinnedDeps); err != nil {
		spinner.Stop()
		return err
	}
	spinner.StopWithMessage(fmt.Sprintf("✓ %s pinned at %s", name, entry.VersionLabel))

	return nil
}

// mineIsolated resolves a lag target outside the batch snapshot. The
// resulting entry carries its own commit time as the pin time since no
// dependent can raise it here.
func mineIsolated(db *store.Store, repo *tap.Repo, name, installedVersion string) (*store.ResolvedEntry, bool, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, false, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve catalog head: %w", err)
	}

	spinner := output.NewSpinner(fmt.Sprintf("Mining history for %s...", name))
	spinner.Start()
	m := miner.New(repo, db, head, cfg.Offset)
	target, err := m.Resolve(name, installedVersion)
	if err != nil {
		spinner.Stop()
		return nil, false, fmt.Errorf("no lag target for %s: %w", name, err)
	}
	spinner.StopWithMessage(fmt.Sprintf("✓ Target mined: %s %s", name, target.VersionLabel))

	entry := &store.ResolvedEntry{
		Package:          name,
		InstalledVersion: installedVersion,
		VersionLabel:     target.VersionLabel,
		RevisionHandle:   target.RevisionHandle,
		DefinitionPath:   target.DefinitionPath,
		FinalTime:        target.CommitTime,
	}
	return entry, target.Shallow, nil
}

// fixAction classifies a fix against the current install state using the
// same comparison rules the plan compiler applies.
func fixAction(entry *store.ResolvedEntry, installed string) store.Action {
	switch {
	case installed == "":
		return store.ActionNewInstall
	case entry.Moved:
		if version.Compare(entry.VersionLabel, installed) == 0 {
			return store.ActionOKSync
		}
		return store.ActionSyncUp
	default:
		switch cmp := version.Compare(entry.VersionLabel, installed); {
		case cmp == 0:
			return store.ActionOK
		case cmp < 0:
			return store.ActionDowngrade
		default:
			return store.ActionUpgrade
		}
	}
}

// pinnedRuntimeDeps lists the formula's runtime dependencies that are
// currently installed and pinned, so a fix can release them for the
// install and put them back after.
func pinnedRuntimeDeps(repo *tap.Repo, entry *store.ResolvedEntry) ([]string, error) {
	content, err := repo.FileAt(entry.RevisionHandle, entry.DefinitionPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition for %s: %w", entry.Package, err)
	}

	installed, err := brew.InstalledFormulae()
	if err != nil {
		return nil, fmt.Errorf("failed to list installed formulae: %w", err)
	}
	pinned := make(map[string]bool, len(installed))
	for _, pkg := range installed {
		if pkg.Pinned {
			pinned[pkg.Name] = true
		}
	}

	var deps []string
	for _, dep := range formula.RuntimeDeps(content) {
		if pinned[dep] && dep != entry.Package {
			deps = append(deps, dep)
		}
	}
	return deps, nil
}
