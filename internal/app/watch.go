package app

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/kesokaj/brew-lag/internal/output"
	"github.com/kesokaj/brew-lag/internal/store"
	"github.com/kesokaj/brew-lag/internal/watcher"
	"github.com/spf13/cobra"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchStatus      bool

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the catalog and flag stale plans",
		Long: `Watch the homebrew-core checkout and mark the compiled plan stale the
moment the catalog head moves past it.

A plan mines targets against one catalog state. Every 'brew update' (and
Homebrew's own auto-update) advances that state, so a plan can silently
rot. The watcher listens for git activity in the tap's .git directory and
compares heads when something happens; a periodic recheck covers anything
filesystem events miss.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as a background process
  • Stop: Stop a running daemon
  • Status: Report whether the daemon is running

Daemon output goes to the log file, one line per head movement.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  brew-lag watch

  # Run as background daemon
  brew-lag watch --daemon

  # Stop the running daemon
  brew-lag watch --stop

  # Is it running?
  brew-lag watch --status

  # Use custom PID and log files
  brew-lag watch --daemon --pid-file /tmp/watch.pid --log-file /tmp/watch.log`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.brew-lag/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: ~/.brew-lag/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().BoolVar(&watchStatus, "status", false, "report daemon state")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Get default paths if not specified
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	// Handle stop and status before anything touches the database
	if watchStop {
		return stopWatchDaemon()
	}
	if watchStatus {
		return reportWatchDaemon()
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

	repo, err := openTap()
	if err != nil {
		return err
	}

	// Create watcher
	w, err := watcher.New(db, repo)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Handle daemon mode
	if watchDaemon {
		return startWatchDaemon(w)
	}

	// Handle daemon child process
	if watchDaemonChild {
		return runWatchDaemonChild(w)
	}

	// Run in foreground
	return runWatchForeground(w)
}

func stopWatchDaemon() error {
	// Check if daemon is running
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon...")
	spinner.Start()
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")

	return nil
}

func reportWatchDaemon() error {
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Println("Watch daemon is not running")
		return nil
	}

	if data, err := os.ReadFile(watchPIDFile); err == nil {
		pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
		fmt.Printf("Watch daemon running (PID %d)\n", pid)
	} else {
		fmt.Println("Watch daemon running")
	}
	fmt.Printf("  Log file: %s\n", watchLogFile)
	return nil
}

func startWatchDaemon(w *watcher.Watcher) error {
	// Check if already running
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if running {
		return fmt.Errorf("daemon already running (PID file: %s)", watchPIDFile)
	}

	spinner := output.NewSpinner("Starting daemon...")
	spinner.Start()
	if err := w.StartDaemon(watchPIDFile, watchLogFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Printf("\nCatalog watch daemon started\n")
	fmt.Printf("  PID file: %s\n", watchPIDFile)
	fmt.Printf("  Log file: %s\n", watchLogFile)
	fmt.Printf("\nTo stop: brew-lag watch --stop\n")

	return nil
}

func runWatchDaemonChild(w *watcher.Watcher) error {
	// Runs as the daemon child; stdout/stderr are the log file, so the
	// watcher's slog lines land there.
	return w.RunDaemon(watchPIDFile)
}

func runWatchForeground(w *watcher.Watcher) error {
	fmt.Println("Watching the catalog (press Ctrl+C to stop)...")
	fmt.Println()

	// Start the watcher
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	fmt.Println("Head movements mark the plan stale as they happen.")
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal
	sig := <-sigCh
	fmt.Printf("\nReceived signal %v, shutting down...\n", sig)

	// Stop the watcher
	if err := w.Stop(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}

	fmt.Println("Catalog watch stopped")

	return nil
}
