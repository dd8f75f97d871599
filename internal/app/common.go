package app

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kesokaj/brew-lag/internal/brew"
	"github.com/kesokaj/brew-lag/internal/config"
	"github.com/kesokaj/brew-lag/internal/tap"
)

// checkCollaborators verifies that brew and git are on PATH before any
// phase starts. A missing collaborator fails the whole run up front
// rather than half way through a batch.
func checkCollaborators() error {
	if _, err := exec.LookPath("brew"); err != nil {
		return fmt.Errorf("brew not found on PATH: %w", err)
	}
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not found on PATH: %w", err)
	}
	return nil
}

// openTap opens the local homebrew-core checkout as the history oracle.
func openTap() (*tap.Repo, error) {
	tapDir, err := brew.GetCoreTapPath()
	if err != nil {
		return nil, fmt.Errorf("failed to locate homebrew-core tap: %w", err)
	}

	repo, err := tap.Open(tapDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open tap checkout: %w", err)
	}
	return repo, nil
}

// loadConfig reads ~/.config/brew-lag/config, falling back to defaults
// when the file is absent.
func loadConfig() (config.Config, error) {
	dir, err := config.Dir()
	if err != nil {
		return config.Default(), fmt.Errorf("failed to locate config directory: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return config.Default(), fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// confirm prompts on stdout and reads a y/N answer from stdin. Anything
// other than y or yes declines.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
