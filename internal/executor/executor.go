// Package executor replays a compiled change set against Homebrew, one
// package at a time. Changes are independent: a failure rolls its own
// package back to the newest catalog version and the pass moves on.
package executor

import (
	"fmt"

	"github.com/kesokaj/brew-lag/internal/brew"
	"github.com/kesokaj/brew-lag/internal/store"
)

// ContentOracle reads a formula definition as it existed at a specific
// revision. *tap.Repo satisfies it.
type ContentOracle interface {
	FileAt(rev, path string) (string, error)
}

// steps are the brew-side effects one change needs. The indirection keeps
// the replay logic testable; production code always runs brewSteps.
type steps interface {
	WriteFormula(name, content string) (string, error)
	RemoveFormula(name string) error
	Uninstall(name string) error
	Install(ref string) error
	Pin(name string) error
	Unpin(name string) error
}

type brewSteps struct{}

func (brewSteps) WriteFormula(name, content string) (string, error) {
	return brew.WriteFormula(name, content)
}
func (brewSteps) RemoveFormula(name string) error { return brew.RemoveFormula(name) }
func (brewSteps) Uninstall(name string) error     { return brew.Uninstall(name) }
func (brewSteps) Install(ref string) error        { return brew.Install(ref) }
func (brewSteps) Pin(name string) error           { return brew.Pin(name) }
func (brewSteps) Unpin(name string) error         { return brew.Unpin(name) }

// Failure records one change that did not land.
type Failure struct {
	Package string
	Err     error
}

// Result is the outcome of an apply pass.
type Result struct {
	Applied []string
	Failed  []Failure
}

// Err returns a summary error when any change failed.
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("applied %d/%d changes, %d failures",
		len(r.Applied), len(r.Applied)+len(r.Failed), len(r.Failed))
}

// Executor replays queued changes from the store.
type Executor struct {
	store  *store.Store
	oracle ContentOracle
	steps  steps
}

// New returns an Executor that runs real brew commands.
func New(st *store.Store, oracle ContentOracle) *Executor {
	return &Executor{store: st, oracle: oracle, steps: brewSteps{}}
}

// Apply replays the stored change set in position order and then deletes
// it; a change set is consumed exactly once whether or not every change
// landed. Returns ErrNoPlan when no plan has been compiled at all. An
// empty change set is not an error, the result is just empty.
func (e *Executor) Apply(progress func(done, total int, pkg string)) (*Result, error) {
	meta, err := e.store.GetPlanMeta()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, store.ErrNoPlan
	}

	changes, err := e.store.ListChangeSet()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, c := range changes {
		if progress != nil {
			progress(i+1, len(changes), c.Package)
		}
		if err := e.applyChange(c); err != nil {
			res.Failed = append(res.Failed, Failure{Package: c.Package, Err: err})
			continue
		}
		res.Applied = append(res.Applied, c.Package)
	}

	if err := e.store.DeleteChangeSet(); err != nil {
		return res, err
	}
	return res, nil
}

// ApplyOne replays a single change outside a batch pass. Pins on the
// package's already-pinned runtime dependencies are released for the
// duration so brew can resolve them, then put back.
func (e *Executor) ApplyOne(c *store.Change, pinnedDeps []string) error {
	for _, dep := range pinnedDeps {
		if err := e.steps.Unpin(dep); err != nil {
			return fmt.Errorf("failed to release pin on %s: %w", dep, err)
		}
	}

	applyErr := e.applyChange(c)

	for _, dep := range pinnedDeps {
		if err := e.steps.Pin(dep); err != nil && applyErr == nil {
			applyErr = fmt.Errorf("failed to re-pin %s: %w", dep, err)
		}
	}
	return applyErr
}

// applyChange materializes the target definition into the private tap,
// swaps the installed package for it and pins the result. The definition
// file is removed again whatever happens; installed kegs do not need it.
func (e *Executor) applyChange(c *store.Change) error {
	content, err := e.oracle.FileAt(c.RevisionHandle, c.DefinitionPath)
	if err != nil {
		return fmt.Errorf("failed to read definition: %w", err)
	}

	ref, err := e.steps.WriteFormula(c.Package, content)
	if err != nil {
		return err
	}
	defer func() { _ = e.steps.RemoveFormula(c.Package) }()

	if c.Action != store.ActionNewInstall {
		if err := e.steps.Uninstall(c.Package); err != nil {
			return err
		}
	}

	if err := e.steps.Install(ref); err != nil {
		return e.restoreLatest(c.Package, err)
	}

	if err := e.steps.Pin(c.Package); err != nil {
		// The target landed, it just will not survive a brew upgrade.
		// Reinstalling latest here would throw the good install away.
		return fmt.Errorf("installed %s but failed to pin: %w", c.TargetLabel, err)
	}

	return nil
}

// restoreLatest reinstalls the newest catalog version after a failed
// historical install so the package is never left missing.
func (e *Executor) restoreLatest(name string, cause error) error {
	if err := e.steps.Install(name); err != nil {
		return fmt.Errorf("%w; restore to latest also failed: %v", cause, err)
	}
	return fmt.Errorf("%w (restored latest)", cause)
}
