// Package tap reads formula history out of a Homebrew tap checkout. All
// access goes through read-only git subprocesses; nothing here ever writes
// to the tap.
package tap

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

var (
	// ErrNoFormula means no conventional path in the tap carries history
	// for the requested formula.
	ErrNoFormula = errors.New("formula not found in tap")

	// ErrNoRevision means no commit exists at or before the requested
	// timestamp for the given path.
	ErrNoRevision = errors.New("no revision at or before timestamp")
)

// LogEntry is one commit touching a formula path, newest first in scans.
type LogEntry struct {
	Hash    string
	Time    int64
	Subject string
}

// Repo is a read-only view of a tap checkout.
type Repo struct {
	dir string
}

// Open validates that dir looks like a git checkout and returns a Repo.
func Open(dir string) (*Repo, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("tap checkout not found at %s: %w", dir, err)
	}
	r := &Repo{dir: dir}
	if _, err := r.git("rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("%s is not a git checkout: %w", dir, err)
	}
	return r, nil
}

// Dir returns the checkout path.
func (r *Repo) Dir() string {
	return r.dir
}

// Head returns the commit hash the tap currently points at.
func (r *Repo) Head() (string, error) {
	out, err := r.git("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Log returns up to limit commits touching path, newest first. Renames are
// followed so history reaches back past tap layout migrations.
func (r *Repo) Log(path string, limit int) ([]LogEntry, error) {
	out, err := r.git("log", "-n", strconv.Itoa(limit), "--follow",
		"--format=%H%x09%ct%x09%s", "--", path)
	if err != nil {
		return nil, err
	}
	return parseLog(out)
}

// FileAt returns the content of path as of rev.
func (r *Repo) FileAt(rev, path string) (string, error) {
	return r.git("show", rev+":"+path)
}

// NewestBefore returns the newest commit touching path whose commit time is
// at or before ts. Returns ErrNoRevision when none exists.
func (r *Repo) NewestBefore(ts int64, path string) (string, error) {
	out, err := r.git("rev-list", "-1", fmt.Sprintf("--before=@%d", ts), "HEAD", "--", path)
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(out)
	if hash == "" {
		return "", fmt.Errorf("%s@%d: %w", path, ts, ErrNoRevision)
	}
	return hash, nil
}

// CommitTime returns the commit timestamp of rev as epoch seconds.
func (r *Repo) CommitTime(rev string) (int64, error) {
	out, err := r.git("show", "-s", "--format=%ct", rev)
	if err != nil {
		return 0, err
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected commit time for %s: %w", rev, err)
	}
	return ts, nil
}

// FindFormulaPath locates the tap path holding name's definition. The
// sharded layout is tried first, then the flat layouts older taps use. A
// path counts as existing when it has at least one commit, so formulas
// deleted from the tip remain resolvable.
func (r *Repo) FindFormulaPath(name string) (string, error) {
	for _, p := range formulaPathCandidates(name) {
		out, err := r.git("log", "-n", "1", "--follow", "--format=%H", "--", p)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) != "" {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNoFormula)
}

func formulaPathCandidates(name string) []string {
	base := name
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	candidates := []string{}
	if base != "" {
		shard := strings.ToLower(base[:1])
		candidates = append(candidates,
			"Formula/"+shard+"/"+base+".rb",
			"Formula/"+base+".rb",
			"HomebrewFormula/"+base+".rb",
			base+".rb",
		)
	}
	return candidates
}

func parseLog(out string) ([]LogEntry, error) {
	var entries []LogEntry
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("unexpected log line: %q", line)
		}
		ts, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected commit time in log line %q: %w", line, err)
		}
		subject := ""
		if len(parts) == 3 {
			subject = parts[2]
		}
		entries = append(entries, LogEntry{Hash: parts[0], Time: ts, Subject: subject})
	}
	return entries, nil
}

func (r *Repo) git(args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", r.dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git %s failed: %w: %s", args[0], err,
				strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return string(out), nil
}
