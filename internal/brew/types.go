package brew

// PackageRecord describes one installed formula as brew reports it.
type PackageRecord struct {
	Name             string
	InstalledVersion string
	Tap              string // e.g., "homebrew/core", "kesokaj/lag"
	Pinned           bool
}
