package store

import "time"

// Action classifies what a plan decided for one package.
type Action string

const (
	// ActionOK means the installed version already matches the lag target.
	ActionOK Action = "OK"
	// ActionOKSync means a raised water level lands on the version that is
	// already installed.
	ActionOKSync Action = "OK-SYNC"
	// ActionDowngrade moves an installed package back to an older target.
	ActionDowngrade Action = "DOWNGRADE"
	// ActionUpgrade moves an installed package forward; the lag target is
	// newer than what is on disk.
	ActionUpgrade Action = "UPGRADE"
	// ActionSyncUp moves a package to a newer revision because a dependent
	// raised its water level.
	ActionSyncUp Action = "SYNC-UP"
	// ActionNewInstall installs a package that is not currently present.
	ActionNewInstall Action = "NEW_INSTALL"
	// ActionExcepted skips a package the user excluded from lag control.
	ActionExcepted Action = "EXCEPTED"
	// ActionError records a package whose target could not be resolved.
	ActionError Action = "ERROR"
)

// Queued reports whether the action produces a change set entry.
func (a Action) Queued() bool {
	switch a {
	case ActionDowngrade, ActionUpgrade, ActionSyncUp, ActionNewInstall:
		return true
	}
	return false
}

// CacheEntry is one memoized lag resolution. The five key fields make a
// result reusable only while the package, its installed version, the
// catalog head, the offset and the cache schema all still match.
type CacheEntry struct {
	Package          string
	InstalledVersion string
	CatalogHead      string
	LagOffset        int
	SchemaVersion    int
	VersionLabel     string
	RevisionHandle   string
	DefinitionPath   string
	CommitTime       int64
	Shallow          bool
}

// ResolvedEntry is one row of the resolution snapshot a plan run persists,
// holding the effective target after water-level adjustment.
type ResolvedEntry struct {
	Package          string
	InstalledVersion string
	VersionLabel     string
	RevisionHandle   string
	DefinitionPath   string
	FinalTime        int64
	Moved            bool
}

// Change is one queued step of a change plan, replayed in Position order.
type Change struct {
	Position       int
	Package        string
	Action         Action
	TargetLabel    string
	RevisionHandle string
	DefinitionPath string
}

// PlanMeta records the context the current plan was compiled under.
type PlanMeta struct {
	CatalogHead string
	LagOffset   int
	CreatedAt   time.Time
	Stale       bool
}

// Exception is a package the user excluded from lag control.
type Exception struct {
	Name    string
	AddedAt time.Time
}
