// Package config provides configuration file parsing for brew-lag.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults applied when the config file is absent or silent on a key.
const (
	DefaultOffset = 3
	DefaultJobs   = 8
)

// Config holds the tunables a plan run needs. It is loaded once at startup
// and passed along explicitly; nothing reads it through globals.
type Config struct {
	// Offset is how many distinct versions behind the newest to pin.
	Offset int
	// Jobs is the worker pool width for mining and extraction.
	Jobs int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{Offset: DefaultOffset, Jobs: DefaultJobs}
}

// Dir returns the brew-lag config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/brew-lag if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "brew-lag"), nil
}

// Load reads the config file at {dir}/config. If the file does not exist,
// the defaults are returned without an error. Unknown keys are ignored so
// configs survive version skew; an unparsable value for a known key is an
// error rather than a silent fallback.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, "config")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip blank lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue // no "=" or "=" is first character — invalid, skip
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])

		switch key {
		case "offset":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return cfg, fmt.Errorf("invalid offset %q in %s", value, path)
			}
			cfg.Offset = n
		case "jobs":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return cfg, fmt.Errorf("invalid jobs %q in %s", value, path)
			}
			cfg.Jobs = n
		}
	}

	if err := scanner.Err(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
