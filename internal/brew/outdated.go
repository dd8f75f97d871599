package brew

import (
	"encoding/json"
	"fmt"
	"os/exec"
)

// Outdated returns the installed formulae brew considers outdated, mapped
// to the newest catalog version. Returns an empty map silently if brew is
// not on PATH or the command fails — callers surface staleness
// opportunistically and must not treat this as an error.
func Outdated() (map[string]string, error) {
	cmd := exec.Command("brew", "outdated", "--json=v2")
	out, err := cmd.Output()
	if err != nil {
		// brew not found or failed — degrade silently
		return map[string]string{}, nil
	}

	return parseOutdatedJSON(out)
}

// parseOutdatedJSON parses `brew outdated --json=v2` output.
func parseOutdatedJSON(out []byte) (map[string]string, error) {
	var parsed struct {
		Formulae []struct {
			Name              string   `json:"name"`
			InstalledVersions []string `json:"installed_versions"`
			CurrentVersion    string   `json:"current_version"`
		} `json:"formulae"`
	}

	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse brew outdated output: %w", err)
	}

	result := make(map[string]string, len(parsed.Formulae))
	for _, f := range parsed.Formulae {
		result[f.Name] = f.CurrentVersion
	}

	return result, nil
}
