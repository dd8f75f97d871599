package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kesokaj/brew-lag/internal/brew"
	"github.com/kesokaj/brew-lag/internal/output"
	"github.com/kesokaj/brew-lag/internal/store"
	"github.com/kesokaj/brew-lag/internal/version"
	"github.com/kesokaj/brew-lag/internal/watcher"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show plan, catalog and watcher state",
	Long: `Report where the lag system stands: when the plan was compiled and at
what offset, whether the catalog has moved past it, how much is queued,
the exception count, the resolution cache size and the watch daemon state.

Formulae whose installed version has drifted away from their snapshot
target (outside the queued changes) are called out; drift usually means
something was upgraded behind brew-lag's back.`,
	Example: `  brew-lag status`,
	RunE:    runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	// Get database path
	dbPath, err := getDBPath()
	if err != nil {
		return fmt.Errorf("failed to get database path: %w", err)
	}

	// A missing database just means no plan has ever been compiled
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No plan compiled yet. Run 'brew-lag plan' to get started.")
		return nil
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

	s := output.Status{}

	s.Meta, err = db.GetPlanMeta()
	if err != nil {
		return fmt.Errorf("failed to load plan: %w", err)
	}

	if s.Resolved, err = db.ResolvedCount(); err != nil {
		return fmt.Errorf("failed to count snapshot entries: %w", err)
	}
	if s.Queued, err = db.ChangeCount(); err != nil {
		return fmt.Errorf("failed to count queued changes: %w", err)
	}
	excepted, err := db.ExceptionNames()
	if err != nil {
		return fmt.Errorf("failed to load exceptions: %w", err)
	}
	s.Exceptions = len(excepted)
	if s.CacheSize, err = db.CacheCount(); err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}

	// Compare the planned head against the live checkout. A failure here
	// (no git, no tap) just leaves the stored staleness as the answer.
	if s.Meta != nil && !s.Meta.Stale {
		if repo, err := openTap(); err == nil {
			if head, err := repo.Head(); err == nil && head != s.Meta.CatalogHead {
				s.Meta.Stale = true
			}
		}
	}

	s.WatcherOn, s.WatcherPID = daemonState()
	s.Drifted = driftedFormulae(db)

	fmt.Print(output.RenderStatus(s))
	return nil
}

// daemonState probes the watch daemon through its PID file.
func daemonState() (bool, int) {
	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return false, 0
	}

	running, err := watcher.IsDaemonRunning(pidFile)
	if err != nil || !running {
		return false, 0
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		return true, 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return true, pid
}

// driftedFormulae lists snapshot packages whose installed version moved
// away from the target without a queued change explaining it. Inventory
// failures degrade to an empty answer; status stays usable without brew.
func driftedFormulae(db *store.Store) []string {
	entries, err := db.ListResolvedEntries()
	if err != nil || len(entries) == 0 {
		return nil
	}

	installed, err := brew.InstalledFormulae()
	if err != nil {
		return nil
	}
	versionByName := make(map[string]string, len(installed))
	for _, pkg := range installed {
		versionByName[pkg.Name] = pkg.InstalledVersion
	}

	queued := make(map[string]bool)
	if changes, err := db.ListChangeSet(); err == nil {
		for _, c := range changes {
			queued[c.Package] = true
		}
	}

	var drifted []string
	for _, e := range entries {
		if queued[e.Package] {
			continue
		}
		v, ok := versionByName[e.Package]
		if !ok || v == "" {
			continue
		}
		if version.Compare(v, e.VersionLabel) != 0 {
			drifted = append(drifted, e.Package)
		}
	}
	return drifted
}
