// Package planner classifies mined targets against the installed state
// and compiles the ordered change set a later apply replays.
package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/kesokaj/brew-lag/internal/formula"
	"github.com/kesokaj/brew-lag/internal/miner"
	"github.com/kesokaj/brew-lag/internal/resolver"
	"github.com/kesokaj/brew-lag/internal/store"
	"github.com/kesokaj/brew-lag/internal/version"
)

// Oracle is the slice of tap access classification needs when a raised
// water level forces a target to be re-resolved. *tap.Repo satisfies it.
type Oracle interface {
	NewestBefore(ts int64, path string) (string, error)
	FileAt(rev, path string) (string, error)
	CommitTime(rev string) (int64, error)
}

// Row is one package's plan outcome, for reporting.
type Row struct {
	Package        string
	Installed      string
	Target         string
	Action         store.Action
	Moved          bool
	Shallow        bool
	RevisionHandle string
	DefinitionPath string
	Detail         string
}

// Plan is a compiled run: report rows for every package, snapshot entries
// for every resolvable one, and the queued changes in replay order.
type Plan struct {
	Rows    []Row
	Entries []*store.ResolvedEntry
	Changes []*store.Change
}

// Compile classifies every outcome in package name order so repeated runs
// over the same state produce identical plans. Excepted names that were
// never mined still get report rows.
func Compile(outcomes []miner.Outcome, levels map[string]resolver.Level, excepted []string, oracle Oracle) *Plan {
	exceptedSet := make(map[string]bool, len(excepted))
	for _, name := range excepted {
		exceptedSet[name] = true
	}

	p := &Plan{}
	seen := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		seen[o.Package] = true
		row, entry := classify(o, levels, exceptedSet, oracle)
		p.Rows = append(p.Rows, row)
		if entry != nil {
			p.Entries = append(p.Entries, entry)
		}
	}

	for _, name := range excepted {
		if seen[name] {
			continue
		}
		seen[name] = true
		p.Rows = append(p.Rows, Row{Package: name, Action: store.ActionExcepted})
	}

	sort.Slice(p.Rows, func(i, j int) bool { return p.Rows[i].Package < p.Rows[j].Package })
	sort.Slice(p.Entries, func(i, j int) bool { return p.Entries[i].Package < p.Entries[j].Package })

	for _, row := range p.Rows {
		if !row.Action.Queued() {
			continue
		}
		p.Changes = append(p.Changes, &store.Change{
			Package:        row.Package,
			Action:         row.Action,
			TargetLabel:    row.Target,
			RevisionHandle: row.RevisionHandle,
			DefinitionPath: row.DefinitionPath,
		})
	}

	return p
}

// classify decides one package's action. It returns a snapshot entry for
// every package whose target is still resolvable, nil otherwise.
func classify(o miner.Outcome, levels map[string]resolver.Level, excepted map[string]bool, oracle Oracle) (Row, *store.ResolvedEntry) {
	row := Row{Package: o.Package, Installed: o.InstalledVersion}

	if excepted[o.Package] {
		row.Action = store.ActionExcepted
		return row, nil
	}
	if o.Err != nil {
		row.Action = store.ActionError
		row.Detail = o.Err.Error()
		return row, nil
	}

	target := o.Target
	row.Shallow = target.Shallow

	lvl, ok := levels[target.Package]
	if !ok {
		lvl = resolver.Level{FinalTime: target.CommitTime}
	}
	row.Moved = lvl.Moved

	handle := target.RevisionHandle
	label := target.VersionLabel

	if lvl.Moved {
		// A dependent needs this package newer than its mined target, so
		// the pin moves to the newest revision at or under the water level
		// and the label is re-read from that definition.
		newHandle, err := oracle.NewestBefore(lvl.FinalTime, target.DefinitionPath)
		if err != nil {
			row.Action = store.ActionError
			row.Detail = fmt.Sprintf("lost revision: %v", err)
			return row, nil
		}
		content, err := oracle.FileAt(newHandle, target.DefinitionPath)
		if err != nil {
			row.Action = store.ActionError
			row.Detail = fmt.Sprintf("failed to read definition at %s: %v", newHandle, err)
			return row, nil
		}
		ct, err := oracle.CommitTime(newHandle)
		if err != nil {
			ct = lvl.FinalTime
		}
		handle = newHandle
		label = formula.EffectiveVersion(content, time.Unix(ct, 0))
	}

	row.Target = label
	row.RevisionHandle = handle
	row.DefinitionPath = target.DefinitionPath

	switch {
	case o.InstalledVersion == "":
		row.Action = store.ActionNewInstall
	case lvl.Moved:
		if version.Compare(label, o.InstalledVersion) == 0 {
			row.Action = store.ActionOKSync
		} else {
			row.Action = store.ActionSyncUp
		}
	default:
		switch cmp := version.Compare(label, o.InstalledVersion); {
		case cmp == 0:
			row.Action = store.ActionOK
		case cmp < 0:
			row.Action = store.ActionDowngrade
		default:
			row.Action = store.ActionUpgrade
		}
	}

	entry := &store.ResolvedEntry{
		Package:          o.Package,
		InstalledVersion: o.InstalledVersion,
		VersionLabel:     label,
		RevisionHandle:   handle,
		DefinitionPath:   target.DefinitionPath,
		FinalTime:        lvl.FinalTime,
		Moved:            lvl.Moved,
	}
	return row, entry
}

// Counts tallies rows by action for the plan summary line.
func (p *Plan) Counts() map[store.Action]int {
	counts := make(map[store.Action]int)
	for _, row := range p.Rows {
		counts[row.Action]++
	}
	return counts
}

// Save persists a compiled plan: the resolution snapshot, the queued
// change set and the plan context, in that order. The snapshot lands even
// when nothing is queued so check keeps working between runs.
func Save(st *store.Store, p *Plan, head string, offset int) error {
	if err := st.ReplaceResolvedEntries(p.Entries); err != nil {
		return err
	}
	if err := st.ReplaceChangeSet(p.Changes); err != nil {
		return err
	}
	return st.PutPlanMeta(&store.PlanMeta{
		CatalogHead: head,
		LagOffset:   offset,
		CreatedAt:   time.Now(),
	})
}
