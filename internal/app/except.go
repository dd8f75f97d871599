package app

import (
	"fmt"

	"github.com/kesokaj/brew-lag/internal/output"
	"github.com/kesokaj/brew-lag/internal/store"
	"github.com/spf13/cobra"
)

var (
	exceptCmd = &cobra.Command{
		Use:   "except",
		Short: "Manage formulae excluded from lag control",
		Long: `Maintain the exception list.

Excepted formulae stay on whatever version brew gives them: they are never
mined, never downgraded, and never place water-level constraints on other
formulae. Security-sensitive packages are the usual candidates.

Changing the list marks any compiled plan stale since its EXCEPTED rows
no longer match.`,
		Example: `  # Keep openssl on the newest release
  brew-lag except add openssl@3

  # Put a formula back under lag control
  brew-lag except remove openssl@3

  # Show the current list
  brew-lag except list`,
	}

	exceptAddCmd = &cobra.Command{
		Use:   "add <formula>...",
		Short: "Add formulae to the exception list",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExceptAdd,
	}

	exceptRemoveCmd = &cobra.Command{
		Use:   "remove <formula>...",
		Short: "Remove formulae from the exception list",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExceptRemove,
	}

	exceptListCmd = &cobra.Command{
		Use:   "list",
		Short: "Show the exception list",
		Args:  cobra.NoArgs,
		RunE:  runExceptList,
	}
)

func init() {
	exceptCmd.AddCommand(exceptAddCmd)
	exceptCmd.AddCommand(exceptRemoveCmd)
	exceptCmd.AddCommand(exceptListCmd)
}

func openExceptStore() (*store.Store, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	db, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.CreateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return db, nil
}

func runExceptAdd(cmd *cobra.Command, args []string) error {
	db, err := openExceptStore()
	if err != nil {
		return err
	}
	defer db.Close()

	changed := false
	for _, name := range args {
		added, err := db.AddException(name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", name, err)
		}
		if added {
			fmt.Printf("✓ %s added to exceptions\n", name)
			changed = true
		} else {
			fmt.Printf("%s is already excepted\n", name)
		}
	}

	return staleOnExceptionChange(db, changed)
}

func runExceptRemove(cmd *cobra.Command, args []string) error {
	db, err := openExceptStore()
	if err != nil {
		return err
	}
	defer db.Close()

	changed := false
	for _, name := range args {
		removed, err := db.RemoveException(name)
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
		if removed {
			fmt.Printf("✓ %s removed from exceptions\n", name)
			changed = true
		} else {
			fmt.Printf("%s was not excepted\n", name)
		}
	}

	return staleOnExceptionChange(db, changed)
}

func runExceptList(cmd *cobra.Command, args []string) error {
	db, err := openExceptStore()
	if err != nil {
		return err
	}
	defer db.Close()

	exceptions, err := db.ListExceptions()
	if err != nil {
		return fmt.Errorf("failed to list exceptions: %w", err)
	}

	fmt.Print(output.RenderExceptionTable(exceptions))
	return nil
}

// staleOnExceptionChange marks a compiled plan stale after the exception
// list moves under it.
func staleOnExceptionChange(db *store.Store, changed bool) error {
	if !changed {
		return nil
	}

	meta, err := db.GetPlanMeta()
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}
	if meta == nil || meta.Stale {
		return nil
	}

	if err := db.MarkPlanStale(); err != nil {
		return fmt.Errorf("failed to mark plan stale: %w", err)
	}
	fmt.Println("\nThe compiled plan predates this change. Re-run 'brew-lag plan'.")
	return nil
}
