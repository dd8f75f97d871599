package miner

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kesokaj/brew-lag/internal/brew"
)

// Outcome is one package's mining result. Exactly one of Target and Err
// is set.
type Outcome struct {
	Package          string
	InstalledVersion string
	Target           *RevisionTarget
	Err              error
}

// ResolveAll mines every package with at most jobs parallel workers.
// Outcomes land at their package's index regardless of completion order,
// and per-package failures are recorded rather than aborting the pass.
// The store is the only shared resource; its single connection serializes
// cache writes.
func (m *Miner) ResolveAll(packages []*brew.PackageRecord, jobs int, progress func(done int, name string)) []Outcome {
	outcomes := make([]Outcome, len(packages))

	var mu sync.Mutex
	done := 0

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, pkg := range packages {
		i, pkg := i, pkg
		g.Go(func() error {
			target, err := m.Resolve(pkg.Name, pkg.InstalledVersion)
			outcomes[i] = Outcome{
				Package:          pkg.Name,
				InstalledVersion: pkg.InstalledVersion,
				Target:           target,
				Err:              err,
			}
			if progress != nil {
				mu.Lock()
				done++
				progress(done, pkg.Name)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
