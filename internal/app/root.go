package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	dbPath string

	// RootCmd is the root command for brew-lag
	RootCmd = &cobra.Command{
		Use:   "brew-lag",
		Short: "Hold Homebrew formulae a few versions behind the bleeding edge",
		Long: `brew-lag pins every installed Homebrew formula to an older release, mined
from the homebrew-core git history, so your machine trails the newest
versions by a configurable number of releases.

New releases occasionally ship regressions, supply-chain surprises, or
breaking changes that get caught within days. Running a few versions
behind lets the rest of the world find those first.

IMPORTANT: homebrew-core moves constantly. Run 'brew-lag watch --daemon'
to get notified (via a stale plan) when the catalog advances past the
state your plan was computed against.

Quick Start:
  1. brew-lag plan              # mine targets, review the table
  2. brew-lag apply             # downgrade and pin everything queued
  3. brew-lag watch --daemon    # keep the plan honest
  4. Re-run 'brew-lag plan' whenever status reports a stale plan

Features:
  • Per-formula lag targets mined from homebrew-core history
  • Dependency-aware consistency (dependents raise their dependencies)
  • Exception list for formulae that must stay current
  • Single-formula check and fix without a full batch run
  • Catalog watch daemon that flags stale plans

Examples:
  # Compute a plan three versions behind (the default)
  brew-lag plan

  # Apply the queued downgrades
  brew-lag apply

  # Inspect one formula against the snapshot
  brew-lag check jq --deps

  # Keep a formula on the newest version
  brew-lag except add openssl@3

  # See where everything stands
  brew-lag status`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := getDBPath()
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				fmt.Println("brew-lag: deliberate version lag for Homebrew formulae")
				fmt.Println()
				fmt.Println("Run 'brew-lag plan' to get started.")
				fmt.Println("Run 'brew-lag --help' for the full reference.")
			} else {
				fmt.Println("brew-lag: deliberate version lag for Homebrew formulae")
				fmt.Println()
				fmt.Println("Tip: Run 'brew-lag status' to see where the plan stands.")
				fmt.Println("     Run 'brew-lag plan' to recompute targets.")
				fmt.Println("     Run 'brew-lag --help' for all commands.")
			}
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.brew-lag/brew-lag.db)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(planCmd)
	RootCmd.AddCommand(applyCmd)
	RootCmd.AddCommand(checkCmd)
	RootCmd.AddCommand(exceptCmd)
	RootCmd.AddCommand(upgradeCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(watchCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	// Create .brew-lag directory if it doesn't exist
	lagDir := filepath.Join(home, ".brew-lag")
	if err := os.MkdirAll(lagDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create brew-lag directory: %w", err)
	}

	return filepath.Join(lagDir, "brew-lag.db"), nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	lagDir := filepath.Join(home, ".brew-lag")
	if err := os.MkdirAll(lagDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create brew-lag directory: %w", err)
	}

	return filepath.Join(lagDir, "watch.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	lagDir := filepath.Join(home, ".brew-lag")
	if err := os.MkdirAll(lagDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create brew-lag directory: %w", err)
	}

	return filepath.Join(lagDir, "watch.log"), nil
}
