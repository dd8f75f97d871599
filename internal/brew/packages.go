package brew

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// infoOutput represents the structure of `brew info --json=v2` output
type infoOutput struct {
	Formulae []infoFormula `json:"formulae"`
}

// infoFormula represents a Homebrew formula in JSON output
type infoFormula struct {
	Name      string         `json:"name"`
	FullName  string         `json:"full_name"`
	Tap       string         `json:"tap"`
	Pinned    bool           `json:"pinned"`
	Installed []installedKeg `json:"installed"`
}

// installedKeg represents one installed version of a formula
type installedKeg struct {
	Version            string `json:"version"`
	InstalledAsDep     bool   `json:"installed_as_dependency"`
	InstalledOnRequest bool   `json:"installed_on_request"`
}

// InstalledFormulae returns every installed formula with its active version
// and pin state. Casks are not managed and never appear here.
func InstalledFormulae() ([]*PackageRecord, error) {
	cmd := exec.Command("brew", "info", "--json=v2", "--installed")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("brew info --installed failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("brew info --installed failed: %w", err)
	}

	return parseInstalledJSON(output)
}

// GetFormula returns the install state of a single formula. A formula that
// exists in the catalog but is not installed comes back with an empty
// InstalledVersion.
func GetFormula(name string) (*PackageRecord, error) {
	cmd := exec.Command("brew", "info", "--json=v2", name)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("brew info failed for %s: %w (stderr: %s)", name, err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("brew info failed for %s: %w", name, err)
	}

	var info infoOutput
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse brew info output: %w", err)
	}
	if len(info.Formulae) == 0 {
		return nil, fmt.Errorf("formula %s not found", name)
	}

	return formulaRecord(info.Formulae[0]), nil
}

// parseInstalledJSON parses `brew info --json=v2 --installed` output.
func parseInstalledJSON(output []byte) ([]*PackageRecord, error) {
	var info infoOutput
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse brew info output: %w", err)
	}

	var packages []*PackageRecord
	for _, f := range info.Formulae {
		// Metadata without a keg means nothing is actually installed
		if len(f.Installed) == 0 {
			continue
		}
		packages = append(packages, formulaRecord(f))
	}

	return packages, nil
}

func formulaRecord(f infoFormula) *PackageRecord {
	rec := &PackageRecord{
		Name:   f.Name,
		Tap:    f.Tap,
		Pinned: f.Pinned,
	}
	// brew lists kegs oldest first; the last one is the active install
	if len(f.Installed) > 0 {
		rec.InstalledVersion = f.Installed[len(f.Installed)-1].Version
	}
	return rec
}

// GetBrewPrefix returns the Homebrew installation prefix
func GetBrewPrefix() (string, error) {
	cmd := exec.Command("brew", "--prefix")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("brew --prefix failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("brew --prefix failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// GetRepository returns the Homebrew repository root, under which taps live.
func GetRepository() (string, error) {
	cmd := exec.Command("brew", "--repository")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("brew --repository failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("brew --repository failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// GetCoreTapPath returns the homebrew-core checkout location.
func GetCoreTapPath() (string, error) {
	cmd := exec.Command("brew", "--repository", "homebrew/core")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("brew --repository homebrew/core failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("brew --repository homebrew/core failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}
