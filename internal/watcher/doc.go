// Package watcher keeps the compiled plan honest between runs.
//
// A plan is compiled against one catalog head. Homebrew moves the core
// tap forward on its own schedule (brew update, auto-updates during
// install), and a plan replayed against a moved catalog would pin
// packages to revisions the mining never saw. The watcher follows the
// tap's .git directory and marks the plan stale the moment the head
// moves, so apply can warn before replaying old targets.
//
// Key features:
//   - fsnotify on the tap's .git directory (no polling loop)
//   - Debounced head checks (one fetch burst, one git call)
//   - Slow recheck ticker as a fallback for missed events
//   - Daemon mode support with PID file management
//   - Graceful shutdown with SIGTERM/SIGINT handling
//
// Example usage:
//
//	st, err := store.New("~/.brew-lag/brew-lag.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	repo, err := tap.Open(corePath)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	w, err := watcher.New(st, repo)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Watch in the foreground
//	if err := w.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
//
//	// Or fork into the background
//	if err := w.StartDaemon("/tmp/brew-lag.pid", "/tmp/brew-lag.log"); err != nil {
//		log.Fatal(err)
//	}
package watcher
