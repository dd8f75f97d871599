package brew

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Historical definitions are installed from a private tap so they never
// collide with homebrew-core. A plain directory under the Taps tree is all
// brew needs to resolve a tap-qualified ref.
const (
	lagTapUser = "kesokaj"
	lagTapRepo = "lag"
)

// LagTapRef returns the tap-qualified install ref for a formula.
func LagTapRef(name string) string {
	return lagTapUser + "/" + lagTapRepo + "/" + name
}

// EnsureLagTap creates the private tap if needed and returns its Formula
// directory.
func EnsureLagTap() (string, error) {
	repo, err := GetRepository()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(repo, "Library", "Taps", lagTapUser, "homebrew-"+lagTapRepo, "Formula")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create lag tap: %w", err)
	}

	return dir, nil
}

// WriteFormula materializes a historical definition into the private tap
// and returns the ref to install it by.
func WriteFormula(name, content string) (string, error) {
	dir, err := EnsureLagTap()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, formulaFileName(name))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write formula %s: %w", name, err)
	}

	return LagTapRef(name), nil
}

// RemoveFormula deletes a materialized definition once it is no longer
// needed. Removing a definition that is already gone is not an error.
func RemoveFormula(name string) error {
	dir, err := EnsureLagTap()
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(dir, formulaFileName(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove formula %s: %w", name, err)
	}
	return nil
}

// formulaFileName maps a formula name to its file in the tap. Brew resolves
// a formula by the file named after it, versioned names included.
func formulaFileName(name string) string {
	return filepath.Base(name) + ".rb"
}
