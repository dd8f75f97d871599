// Package output renders brew-lag's terminal output.
//
// This package includes:
//   - Table renderers for plans, queued changes, exceptions and status
//   - A phase-labelled progress bar for the plan pipeline
//   - A spinner for indeterminate operations
//
// Renderers return strings so commands decide where output goes. ANSI
// color is emitted only on a terminal and never when NO_COLOR is set.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/kesokaj/brew-lag/internal/planner"
	"github.com/kesokaj/brew-lag/internal/resolver"
	"github.com/kesokaj/brew-lag/internal/store"
)

// ANSI color codes for action display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// actionColor returns the display color for a plan action.
func actionColor(a store.Action) string {
	switch a {
	case store.ActionOK, store.ActionOKSync:
		return colorGreen
	case store.ActionError:
		return colorRed
	case store.ActionExcepted:
		return colorGray
	default:
		return colorYellow
	}
}

// padAction pads the action to its column width before coloring so the
// escape codes do not break the alignment.
func padAction(a store.Action) string {
	return colorize(actionColor(a), fmt.Sprintf("%-12s", string(a)))
}

// RenderPlanTable renders one row per package in plan order.
// Note: Does not sort - plans are compiled in name order already.
func RenderPlanTable(rows []planner.Row) string {
	if len(rows) == 0 {
		return "No packages under lag control.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("%-24s %-14s %-14s %-12s %s\n",
		"Package", "Installed", "Target", "Action", "Note"))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	// Rows
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%-24s %-14s %-14s %s %s\n",
			truncate(row.Package, 24),
			displayVersion(row.Installed),
			displayVersion(row.Target),
			padAction(row.Action),
			rowNote(row)))
	}

	return sb.String()
}

// rowNote joins the markers a row carries into one display note.
func rowNote(row planner.Row) string {
	var notes []string
	if row.Detail != "" {
		notes = append(notes, row.Detail)
	}
	if row.Moved {
		notes = append(notes, "raised by a dependent")
	}
	if row.Shallow {
		notes = append(notes, "history window exhausted")
	}
	return strings.Join(notes, "; ")
}

// RenderPlanSummary renders the one-line action breakdown under a plan
// table. Format: "QUEUED: 3 · IN SYNC: 112 · EXCEPTED: 2 · ERRORS: 1"
func RenderPlanSummary(counts map[store.Action]int) string {
	queued := counts[store.ActionDowngrade] + counts[store.ActionUpgrade] +
		counts[store.ActionSyncUp] + counts[store.ActionNewInstall]
	inSync := counts[store.ActionOK] + counts[store.ActionOKSync]

	var sb strings.Builder
	sb.WriteString(colorize(colorYellow, fmt.Sprintf("QUEUED: %d", queued)))
	sb.WriteString(" · ")
	sb.WriteString(colorize(colorGreen, fmt.Sprintf("IN SYNC: %d", inSync)))
	if n := counts[store.ActionExcepted]; n > 0 {
		sb.WriteString(fmt.Sprintf(" · EXCEPTED: %d", n))
	}
	if n := counts[store.ActionError]; n > 0 {
		sb.WriteString(" · ")
		sb.WriteString(colorize(colorRed, fmt.Sprintf("ERRORS: %d", n)))
	}
	return sb.String()
}

// RenderChangeTable renders the queued change set in replay order.
func RenderChangeTable(changes []*store.Change) string {
	if len(changes) == 0 {
		return "No changes queued.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-4s %-24s %-12s %s\n",
		"#", "Package", "Action", "Target"))
	sb.WriteString(strings.Repeat("─", 60))
	sb.WriteString("\n")

	for _, c := range changes {
		sb.WriteString(fmt.Sprintf("%-4d %-24s %s %s\n",
			c.Position+1,
			truncate(c.Package, 24),
			padAction(c.Action),
			c.TargetLabel))
	}

	return sb.String()
}

// CheckReport is the assembled view the check command renders.
type CheckReport struct {
	Package   string
	Installed string
	Pinned    bool
	Excepted  bool
	Entry     *store.ResolvedEntry
	Deps      []resolver.CheckDep
	Caveats   []string
}

// RenderCheckReport renders the single-package breakdown.
func RenderCheckReport(r CheckReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Package:   %s\n", r.Package))
	if r.Excepted {
		sb.WriteString("Status:    " + colorize(colorGray, "EXCEPTED") + " (not under lag control)\n")
	}

	installed := displayVersion(r.Installed)
	if r.Pinned {
		installed += " (pinned)"
	}
	sb.WriteString(fmt.Sprintf("Installed: %s\n", installed))

	if r.Entry != nil {
		t := time.Unix(r.Entry.FinalTime, 0)
		sb.WriteString(fmt.Sprintf("Target:    %s at %s (%s, %s)\n",
			r.Entry.VersionLabel,
			shortRevision(r.Entry.RevisionHandle),
			t.UTC().Format("2006-01-02"),
			humanize.Time(t)))
		if r.Entry.Moved {
			sb.WriteString("           raised by a dependent\n")
		}
	}

	if len(r.Deps) > 0 {
		sb.WriteString("Dependencies:\n")
		renderDeps(&sb, r.Deps, 0)
	}

	for _, c := range r.Caveats {
		sb.WriteString(colorize(colorYellow, "note: "+c) + "\n")
	}

	return sb.String()
}

func renderDeps(sb *strings.Builder, deps []resolver.CheckDep, depth int) {
	for _, d := range deps {
		indent := strings.Repeat("  ", depth+1)
		if d.Entry == nil {
			sb.WriteString(fmt.Sprintf("%s%s (outside lag control)\n", indent, d.Name))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s%s pinned at %s\n", indent, d.Name, d.Entry.VersionLabel))
		renderDeps(sb, d.Deps, depth+1)
	}
}

// RenderExceptionTable renders the excepted packages.
// Note: Does not sort - the store lists exceptions in name order.
func RenderExceptionTable(exceptions []*store.Exception) string {
	if len(exceptions) == 0 {
		return "No exceptions. Every installed formula is under lag control.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %s\n", "Package", "Added"))
	sb.WriteString(strings.Repeat("─", 48))
	sb.WriteString("\n")

	for _, e := range exceptions {
		sb.WriteString(fmt.Sprintf("%-24s %s\n",
			truncate(e.Name, 24),
			humanize.Time(e.AddedAt)))
	}

	return sb.String()
}

// Status is the state overview the status command renders.
type Status struct {
	Meta       *store.PlanMeta
	Resolved   int
	Queued     int
	Exceptions int
	CacheSize  int
	// WatcherOn reports whether the catalog watch daemon is alive.
	WatcherOn  bool
	WatcherPID int
	// Drifted lists pinned packages whose installed version no longer
	// matches their snapshot target.
	Drifted []string
}

// RenderStatus renders the state overview.
func RenderStatus(s Status) string {
	var sb strings.Builder

	if s.Meta == nil {
		sb.WriteString("No plan compiled yet. Run 'brew-lag plan' to get started.\n")
	} else {
		sb.WriteString(fmt.Sprintf("Plan:       compiled %s at offset %d\n",
			humanize.Time(s.Meta.CreatedAt), s.Meta.LagOffset))
		sb.WriteString(fmt.Sprintf("Catalog:    %s", shortRevision(s.Meta.CatalogHead)))
		if s.Meta.Stale {
			sb.WriteString(" " + colorize(colorYellow, "(stale, catalog has moved)"))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Resolved:   %d packages\n", s.Resolved))
	sb.WriteString(fmt.Sprintf("Queued:     %d changes\n", s.Queued))
	sb.WriteString(fmt.Sprintf("Exceptions: %d\n", s.Exceptions))
	sb.WriteString(fmt.Sprintf("Cache:      %d resolutions\n", s.CacheSize))

	if s.WatcherOn {
		sb.WriteString(fmt.Sprintf("Watcher:    %s (PID %d)\n",
			colorize(colorGreen, "running"), s.WatcherPID))
	} else {
		sb.WriteString("Watcher:    stopped (run 'brew-lag watch --daemon')\n")
	}

	if len(s.Drifted) > 0 {
		drifted := make([]string, len(s.Drifted))
		copy(drifted, s.Drifted)
		sort.Strings(drifted)
		sb.WriteString(colorize(colorYellow,
			fmt.Sprintf("Drifted:    %s (run 'brew-lag plan')", strings.Join(drifted, ", "))))
		sb.WriteString("\n")
	}

	return sb.String()
}

// displayVersion substitutes a dash for versions that do not exist, such
// as the installed column of a NEW_INSTALL row.
func displayVersion(v string) string {
	if v == "" {
		return "—"
	}
	return v
}

// shortRevision truncates a revision handle for display.
func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
