// Package resolver turns mined revision targets into a mutually
// consistent set: every package's pin time is raised to the newest
// requirement its dependents place on it before anything is planned.
package resolver

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kesokaj/brew-lag/internal/formula"
	"github.com/kesokaj/brew-lag/internal/miner"
)

// ContentOracle reads a formula definition as it existed at a specific
// revision. *tap.Repo satisfies it.
type ContentOracle interface {
	FileAt(rev, path string) (string, error)
}

// RuntimeDeps reads each mined target's definition at its target revision
// and parses the runtime dependencies, jobs at a time. A read failure
// degrades to a warning for that package; it then simply places no
// constraints on anything.
func RuntimeDeps(targets []*miner.RevisionTarget, oracle ContentOracle, jobs int, progress func(done int, name string)) (map[string][]string, []error) {
	depsByIndex := make([][]string, len(targets))
	errsByIndex := make([]error, len(targets))

	var mu sync.Mutex
	done := 0

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			content, err := oracle.FileAt(target.RevisionHandle, target.DefinitionPath)
			if err != nil {
				errsByIndex[i] = fmt.Errorf("%s: failed to read definition at %s: %w", target.Package, target.RevisionHandle, err)
			} else {
				depsByIndex[i] = formula.RuntimeDeps(content)
			}
			if progress != nil {
				mu.Lock()
				done++
				progress(done, target.Package)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	deps := make(map[string][]string, len(targets))
	var warnings []error
	for i, target := range targets {
		if errsByIndex[i] != nil {
			warnings = append(warnings, errsByIndex[i])
			continue
		}
		deps[target.Package] = depsByIndex[i]
	}
	return deps, warnings
}

// Level is a package's pin time once dependency constraints are settled.
type Level struct {
	FinalTime int64
	Moved     bool
}

// WaterLevel folds dependency constraints over the mined set. A package
// needs its runtime dependencies at revisions no older than its own
// target commit, so each dependency's level rises to the newest
// requirement placed on it. The fold is a max, so the order constraints
// arrive in cannot change the result. Constraints reach one hop only:
// a raised level does not re-raise the packages the raised one depends
// on in turn.
func WaterLevel(targets []*miner.RevisionTarget, deps map[string][]string) map[string]Level {
	required := make(map[string]int64)
	for _, target := range targets {
		for _, dep := range deps[target.Package] {
			if target.CommitTime > required[dep] {
				required[dep] = target.CommitTime
			}
		}
	}

	levels := make(map[string]Level, len(targets))
	for _, target := range targets {
		final := target.CommitTime
		if req := required[target.Package]; req > final {
			final = req
		}
		levels[target.Package] = Level{
			FinalTime: final,
			Moved:     final > target.CommitTime,
		}
	}
	return levels
}
