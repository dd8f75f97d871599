package formula

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SyntheticTimeFormat renders a commit timestamp as a stand-in version
// label when a definition carries no recognizable version at all.
const SyntheticTimeFormat = "20060102150405"

var archiveSuffixes = []string{
	".tar.gz", ".tar.bz2", ".tar.xz", ".tar.lz", ".tar.zst",
	".tgz", ".tbz2", ".tbz", ".txz", ".zip", ".tar",
	".gz", ".bz2", ".xz", ".orig",
}

var (
	// Tag and release path segments: /archive/refs/tags/v1.2.3.tar.gz,
	// /releases/download/v1.2.3/..., /releases/1.2.3/...
	tagPathPattern = regexp.MustCompile(`/(?:archive|releases)/(?:refs/tags/|download/)?[vV]?(\d[\dA-Za-z._-]*?)(?:\.tar|\.zip|/|$)`)
	// name-1.2.3 style basenames after archive suffixes are stripped.
	basenamePattern = regexp.MustCompile(`[-_.][vV]?(\d[\dA-Za-z._]*(?:-[\dA-Za-z._]+)*)$`)
	// A basename that is nothing but the version.
	barePattern = regexp.MustCompile(`^[vV]?(\d[\dA-Za-z._]*(?:-[\dA-Za-z._]+)*)$`)
)

var prereleaseWords = []string{"alpha", "beta", "rc", "pre", "dev"}

// ExplicitVersion returns the version declared with a version "..." line,
// or "" when the formula relies on URL inference.
func ExplicitVersion(content string) string {
	return firstDecl(content, "version")
}

// Revision returns the formula revision counter, 0 when absent.
func Revision(content string) int {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "revision ") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "revision")))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// VersionFromURL infers a version label from the formula's source url,
// the way Homebrew itself names bottles when no version is declared.
// Returns "" when the url yields nothing version-shaped.
func VersionFromURL(content string) string {
	u := firstDecl(content, "url")
	if u == "" {
		return ""
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	if m := tagPathPattern.FindStringSubmatch(u); m != nil {
		return trimTrailingWords(m[1])
	}
	base := u
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	base = stripArchiveSuffixes(base)
	// A bare version basename must be tried before the name-version split:
	// the split pattern would anchor on the first dot of "2.0.1" and
	// capture only "0.1".
	if m := barePattern.FindStringSubmatch(base); m != nil {
		return trimTrailingWords(m[1])
	}
	if m := basenamePattern.FindStringSubmatch(base); m != nil {
		return trimTrailingWords(m[1])
	}
	return ""
}

// EffectiveVersion derives the version label a definition would install
// under: the explicit declaration, else the url inference, with the
// revision suffix Homebrew appends (_N). When neither source yields a
// label the commit timestamp stands in; such synthetic labels never match
// an installed version and force a change on comparison.
func EffectiveVersion(content string, fallback time.Time) string {
	v := ExplicitVersion(content)
	if v == "" {
		v = VersionFromURL(content)
	}
	if v == "" {
		return fallback.UTC().Format(SyntheticTimeFormat)
	}
	if r := Revision(content); r > 0 {
		v = fmt.Sprintf("%s_%d", v, r)
	}
	return v
}

func stripArchiveSuffixes(base string) string {
	for changed := true; changed; {
		changed = false
		for _, s := range archiveSuffixes {
			if strings.HasSuffix(base, s) && len(base) > len(s) {
				base = strings.TrimSuffix(base, s)
				changed = true
			}
		}
	}
	return base
}

// trimTrailingWords drops dash-joined tail segments that are neither
// numeric nor prerelease words, so gcc-4.9-arm64 yields 4.9 while
// pkg-2.0-beta1 keeps 2.0-beta1.
func trimTrailingWords(v string) string {
	parts := strings.Split(v, "-")
	keep := 1
	for keep < len(parts) && versionishSegment(parts[keep]) {
		keep++
	}
	return strings.Join(parts[:keep], "-")
}

func versionishSegment(s string) bool {
	if s == "" {
		return false
	}
	if s[0] >= '0' && s[0] <= '9' {
		return true
	}
	low := strings.ToLower(s)
	for _, w := range prereleaseWords {
		if strings.HasPrefix(low, w) {
			return true
		}
	}
	return false
}
