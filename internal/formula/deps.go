// Package formula extracts facts from Homebrew formula definitions without
// evaluating any Ruby. Parsing is line oriented: the declarations of
// interest (depends_on, version, url, revision) sit on their own lines in
// every formula homebrew-core ships.
package formula

import "strings"

// RuntimeDeps returns the names of runtime dependencies declared in a
// formula definition, in declaration order. Dependencies tagged only for
// build or test are excluded; recommended and optional dependencies count
// as runtime.
func RuntimeDeps(content string) []string {
	var deps []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "depends_on ") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, "depends_on"))
		name, ok := quoted(rest)
		if !ok {
			// Symbol dependency such as depends_on :macos.
			continue
		}
		if idx := strings.Index(rest, "=>"); idx >= 0 && buildOnly(rest[idx+2:]) {
			continue
		}
		deps = append(deps, name)
	}
	return deps
}

// buildOnly reports whether a depends_on qualifier tags the dependency
// exclusively for build or test. Mixed tags like [:build, :recommended]
// keep the dependency at runtime.
func buildOnly(qualifier string) bool {
	syms := symbols(qualifier)
	if len(syms) == 0 {
		return false
	}
	for _, s := range syms {
		if s != "build" && s != "test" {
			return false
		}
	}
	return true
}

func symbols(s string) []string {
	var out []string
	for i := 0; i < len(s); i++ {
		if s[i] != ':' {
			continue
		}
		j := i + 1
		for j < len(s) && isWordByte(s[j]) {
			j++
		}
		if j > i+1 {
			out = append(out, s[i+1:j])
		}
		i = j - 1
	}
	return out
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// quoted extracts the leading double-quoted string from s.
func quoted(s string) (string, bool) {
	if len(s) == 0 || s[0] != '"' {
		return "", false
	}
	end := strings.IndexByte(s[1:], '"')
	if end < 0 {
		return "", false
	}
	return s[1 : 1+end], true
}

// firstDecl returns the argument of the first line declaring keyword with a
// quoted argument, e.g. url "https://...".
func firstDecl(content, keyword string) string {
	prefix := keyword + " "
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		if v, ok := quoted(strings.TrimSpace(strings.TrimPrefix(line, keyword))); ok {
			return v
		}
	}
	return ""
}
