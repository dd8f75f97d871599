// Package miner locates the historical revision a package should be pinned
// to: the revision a configured number of distinct versions behind the
// newest mention in the catalog's change log.
package miner

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kesokaj/brew-lag/internal/store"
	"github.com/kesokaj/brew-lag/internal/tap"
)

// ErrNoHistory means a formula has no resolvable definition path and no
// commits anywhere the tap conventionally keeps it.
var ErrNoHistory = errors.New("no history for formula")

// ScanWindow caps how many log entries a single scan walks. Deep lags on
// busy formulae resolve within this; scanning full history would make cold
// runs unusably slow.
const ScanWindow = 500

// Oracle is the slice of tap access mining needs. *tap.Repo satisfies it.
type Oracle interface {
	FindFormulaPath(name string) (string, error)
	Log(path string, limit int) ([]tap.LogEntry, error)
}

// RevisionTarget is the mined lag target for one package. If
// RevisionHandle is set, CommitTime and DefinitionPath are set too.
type RevisionTarget struct {
	Package        string
	VersionLabel   string
	RevisionHandle string
	DefinitionPath string
	CommitTime     int64
	// Shallow marks a target older than requested because the scan window
	// ran out of distinct versions. Reported, not fatal.
	Shallow bool
}

// Miner resolves lag targets through an oracle, memoizing results in the
// store under the full five-part cache key.
type Miner struct {
	oracle Oracle
	store  *store.Store
	head   string
	offset int
}

// New returns a Miner for one plan run. The catalog head is fixed for the
// run so every resolution shares one cache generation.
func New(oracle Oracle, st *store.Store, head string, offset int) *Miner {
	return &Miner{oracle: oracle, store: st, head: head, offset: offset}
}

// Resolve returns the lag target for a package, consulting the cache
// first. On a miss it scans the log and appends the result; the store's
// first-write-wins insert absorbs concurrent duplicate writes.
func (m *Miner) Resolve(name, installedVersion string) (*RevisionTarget, error) {
	cached, err := m.store.GetCacheEntry(name, installedVersion, m.head, m.offset, store.CacheSchemaVersion)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return &RevisionTarget{
			Package:        cached.Package,
			VersionLabel:   cached.VersionLabel,
			RevisionHandle: cached.RevisionHandle,
			DefinitionPath: cached.DefinitionPath,
			CommitTime:     cached.CommitTime,
			Shallow:        cached.Shallow,
		}, nil
	}

	target, err := m.mine(name)
	if err != nil {
		return nil, err
	}

	err = m.store.PutCacheEntry(&store.CacheEntry{
		Package:          name,
		InstalledVersion: installedVersion,
		CatalogHead:      m.head,
		LagOffset:        m.offset,
		SchemaVersion:    store.CacheSchemaVersion,
		VersionLabel:     target.VersionLabel,
		RevisionHandle:   target.RevisionHandle,
		DefinitionPath:   target.DefinitionPath,
		CommitTime:       target.CommitTime,
		Shallow:          target.Shallow,
	})
	if err != nil {
		return nil, err
	}

	return target, nil
}

func (m *Miner) mine(name string) (*RevisionTarget, error) {
	path, err := m.oracle.FindFormulaPath(name)
	if err != nil {
		if errors.Is(err, tap.ErrNoFormula) {
			return nil, fmt.Errorf("%s: %w", name, ErrNoHistory)
		}
		return nil, err
	}

	entries, err := m.oracle.Log(path, ScanWindow)
	if err != nil {
		return nil, err
	}

	sel, ok := selectTarget(name, entries, m.offset)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNoHistory)
	}

	return &RevisionTarget{
		Package:        name,
		VersionLabel:   sel.label,
		RevisionHandle: sel.entry.Hash,
		DefinitionPath: path,
		CommitTime:     sel.entry.Time,
		Shallow:        sel.shallow,
	}, nil
}

type selection struct {
	entry   tap.LogEntry
	label   string
	shallow bool
}

// selectTarget picks the lag target from a newest-first log scan. Distinct
// version mentions count positions: position 1 is the newest, the target
// sits at position offset+1. A window with fewer distinct versions falls
// back to the oldest one found; a window with none falls back to stepping
// offset entries down the raw log under a truncated-hash label.
func selectTarget(name string, entries []tap.LogEntry, offset int) (selection, bool) {
	if len(entries) == 0 {
		return selection{}, false
	}

	type hit struct {
		entry tap.LogEntry
		label string
	}
	var distinct []hit
	seen := make(map[string]bool)
	for _, e := range entries {
		if !subjectMentions(e.Subject, name) {
			continue
		}
		label := versionToken(e.Subject)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		distinct = append(distinct, hit{entry: e, label: label})
		if len(distinct) > offset {
			// Older entries can only add older versions; the position
			// is already decided.
			break
		}
	}

	if len(distinct) > offset {
		h := distinct[offset]
		return selection{entry: h.entry, label: h.label}, true
	}
	if len(distinct) > 0 {
		h := distinct[len(distinct)-1]
		return selection{entry: h.entry, label: h.label, shallow: true}, true
	}

	idx := offset
	shallow := false
	if idx >= len(entries) {
		idx = len(entries) - 1
		shallow = true
	}
	e := entries[idx]
	return selection{entry: e, label: shortHash(e.Hash), shallow: shallow}, true
}

var versionTokenPattern = regexp.MustCompile(`^[0-9]+[.-][0-9A-Za-z._+-]*$`)

// versionToken extracts the first version-shaped token from a log subject.
func versionToken(subject string) string {
	for _, tok := range strings.Fields(subject) {
		tok = strings.Trim(tok, ".,:;()[]")
		if versionTokenPattern.MatchString(tok) {
			return tok
		}
	}
	return ""
}

// subjectMentions reports whether a subject names the formula itself, not
// just a package containing it as a substring.
func subjectMentions(subject, name string) bool {
	for _, tok := range strings.Fields(subject) {
		tok = strings.Trim(tok, ".,:;()[]")
		if strings.EqualFold(tok, name) {
			return true
		}
	}
	return false
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
