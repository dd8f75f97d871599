package app

import (
	"fmt"
	"sort"

	"github.com/kesokaj/brew-lag/internal/brew"
	"github.com/kesokaj/brew-lag/internal/output"
	"github.com/kesokaj/brew-lag/internal/store"
	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [formula]...",
	Short: "Upgrade excepted formulae to the newest versions",
	Long: `Bulk-upgrade the formulae on the exception list.

Only excepted formulae are touched; everything under lag control keeps its
pin. A formula that was pinned before being excepted is unpinned first so
brew will move it. With no arguments every installed excepted formula is
upgraded; with arguments only the named ones are, and naming a formula
that is not excepted is an error rather than a silent bypass of its pin.`,
	Example: `  # Upgrade everything on the exception list
  brew-lag upgrade

  # Upgrade just one excepted formula
  brew-lag upgrade openssl@3`,
	RunE: runUpgrade,
}

func runUpgrade(cmd *cobra.Command, args []string) error {
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

	excepted, err := db.ExceptionNames()
	if err != nil {
		return fmt.Errorf("failed to load exceptions: %w", err)
	}
	if len(excepted) == 0 {
		fmt.Println("No excepted formulae. Nothing to upgrade.")
		return nil
	}

	// Naming a lag-controlled formula here would silently defeat its pin
	for _, name := range args {
		if !excepted[name] {
			return fmt.Errorf("%s is not excepted; use 'brew-lag except add %s' first", name, name)
		}
	}

	spinner := output.NewSpinner("Scanning installed formulae...")
	spinner.Start()
	installed, err := brew.InstalledFormulae()
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to list installed formulae: %w", err)
	}
	spinner.Stop()

	requested := make(map[string]bool, len(args))
	for _, name := range args {
		requested[name] = true
	}

	var candidates []*brew.PackageRecord
	for _, pkg := range installed {
		if !excepted[pkg.Name] {
			continue
		}
		if len(requested) > 0 && !requested[pkg.Name] {
			continue
		}
		candidates = append(candidates, pkg)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })

	if len(candidates) == 0 {
		fmt.Println("No excepted formulae are installed. Nothing to upgrade.")
		return nil
	}

	// An empty answer may mean brew outdated failed, so it never gates the
	// attempts; a populated one saves a brew exec per current formula.
	newest, err := brew.Outdated()
	if err != nil {
		return fmt.Errorf("failed to check outdated formulae: %w", err)
	}

	var failed []string
	skipped := 0
	for _, pkg := range candidates {
		newVersion, behind := newest[pkg.Name]
		if len(newest) > 0 && !behind && !pkg.Pinned {
			fmt.Printf("✓ %s already current\n", pkg.Name)
			skipped++
			continue
		}

		label := fmt.Sprintf("Upgrading %s...", pkg.Name)
		if behind {
			label = fmt.Sprintf("Upgrading %s → %s...", pkg.Name, newVersion)
		}
		spinner := output.NewSpinner(label)
		spinner.Start()

		if pkg.Pinned {
			if err := brew.Unpin(pkg.Name); err != nil {
				spinner.Stop()
				fmt.Printf("✗ %s: %v\n", pkg.Name, err)
				failed = append(failed, pkg.Name)
				continue
			}
		}
		if err := brew.Upgrade(pkg.Name); err != nil {
			spinner.Stop()
			fmt.Printf("✗ %s: %v\n", pkg.Name, err)
			failed = append(failed, pkg.Name)
			continue
		}
		spinner.StopWithMessage(fmt.Sprintf("✓ %s upgraded", pkg.Name))
	}

	fmt.Println()
	fmt.Printf("Upgraded %d of %d excepted formula(e).\n", len(candidates)-len(failed)-skipped, len(candidates))
	if len(failed) > 0 {
		return fmt.Errorf("%d upgrade(s) failed", len(failed))
	}
	return nil
}
