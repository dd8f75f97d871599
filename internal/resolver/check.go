package resolver

import (
	"fmt"

	"github.com/kesokaj/brew-lag/internal/formula"
	"github.com/kesokaj/brew-lag/internal/store"
)

// CheckDep is one node of a single-package dependency expansion.
// Entry is nil when the dependency sits outside the snapshot.
type CheckDep struct {
	Name  string
	Entry *store.ResolvedEntry
	Deps  []CheckDep
}

// DependencyTree expands a pinned package's runtime dependencies against
// the snapshot, recursively. The visited set is an explicit parameter
// threaded through the recursion so shared dependencies appear once and
// cycles terminate; callers start with an empty map. The expansion is
// informational and does not re-raise any pin times.
func DependencyTree(st *store.Store, oracle ContentOracle, entry *store.ResolvedEntry, visited map[string]bool) ([]CheckDep, error) {
	visited[entry.Package] = true

	content, err := oracle.FileAt(entry.RevisionHandle, entry.DefinitionPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition for %s: %w", entry.Package, err)
	}

	var nodes []CheckDep
	for _, dep := range formula.RuntimeDeps(content) {
		if visited[dep] {
			continue
		}
		visited[dep] = true

		depEntry, err := st.GetResolvedEntry(dep)
		if err != nil {
			return nil, err
		}

		node := CheckDep{Name: dep, Entry: depEntry}
		if depEntry != nil {
			children, err := DependencyTree(st, oracle, depEntry, visited)
			if err != nil {
				return nil, err
			}
			node.Deps = children
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}
