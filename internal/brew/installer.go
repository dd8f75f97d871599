package brew

import (
	"fmt"
	"os/exec"
	"strings"
)

// Uninstall removes a package via brew uninstall. Dependencies are left in
// place; the plan replays them on their own terms. Uninstalling a package
// that is not installed is not an error.
func Uninstall(pkgName string) error {
	cmd := exec.Command("brew", "uninstall", "--ignore-dependencies", pkgName)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if absentKegOutput(string(output)) {
			return nil
		}
		return fmt.Errorf("brew uninstall %s failed: %w (output: %s)", pkgName, err, string(output))
	}
	return nil
}

// Install installs a package via brew install. The ref may be a plain name
// for the newest catalog version or a tap-qualified name such as
// kesokaj/lag/jq for a materialized historical definition.
func Install(ref string) error {
	cmd := exec.Command("brew", "install", ref)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("brew install %s failed: %w (output: %s)", ref, err, string(output))
	}
	return nil
}

// Pin holds a package at its installed version so brew upgrade skips it.
func Pin(pkgName string) error {
	cmd := exec.Command("brew", "pin", pkgName)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("brew pin %s failed: %w (output: %s)", pkgName, err, string(output))
	}
	return nil
}

// Unpin releases a pin. Unpinning a package that is not pinned is not an
// error.
func Unpin(pkgName string) error {
	cmd := exec.Command("brew", "unpin", pkgName)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "not pinned") {
			return nil
		}
		return fmt.Errorf("brew unpin %s failed: %w (output: %s)", pkgName, err, string(output))
	}
	return nil
}

// Upgrade moves a package to the newest catalog version. Upgrading a
// package that is already current is not an error.
func Upgrade(pkgName string) error {
	cmd := exec.Command("brew", "upgrade", pkgName)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "already installed") {
			return nil
		}
		return fmt.Errorf("brew upgrade %s failed: %w (output: %s)", pkgName, err, string(output))
	}
	return nil
}

// Update refreshes all taps, moving the catalog head forward.
func Update() error {
	cmd := exec.Command("brew", "update")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("brew update failed: %w (output: %s)", err, string(output))
	}
	return nil
}

// absentKegOutput reports whether an uninstall failure just means the
// package was not there.
func absentKegOutput(out string) bool {
	return strings.Contains(out, "No such keg") ||
		strings.Contains(out, "is not installed")
}
