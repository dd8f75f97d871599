// Package version compares Homebrew-style version labels. Labels such as
// "1.0.2k", "3.4_1" or "20240816" are not semantic versions, so comparison
// works on ordered digit and letter runs rather than semver fields.
package version

import "strings"

type token struct {
	text    string
	numeric bool
}

// Prerelease words sort below a bare release. A trailing letter run that is
// not one of these ("1.0.2k") sorts above it.
var prereleaseRank = map[string]int{
	"dev":   1,
	"alpha": 2,
	"beta":  3,
	"pre":   4,
	"rc":    5,
}

const (
	releaseRank = 6
	suffixRank  = 7
	numericRank = 8
)

// Compare orders two version labels. It returns -1 when a is older than b,
// 0 when they are equal, and 1 when a is newer. A label that does not start
// with a digit is not treated as a version at all; such labels compare as
// plain strings.
func Compare(a, b string) int {
	if !versionLike(a) || !versionLike(b) {
		return strings.Compare(a, b)
	}
	at := tokenize(a)
	bt := tokenize(b)
	n := len(at)
	if len(bt) > n {
		n = len(bt)
	}
	for i := 0; i < n; i++ {
		aok := i < len(at)
		bok := i < len(bt)
		if aok && bok {
			if c := compareTokens(at[i], bt[i]); c != 0 {
				return c
			}
			continue
		}
		// One label ran out. The leftover token decides: a prerelease
		// word makes the longer label older, anything else newer.
		if aok {
			if rank(at[i]) < releaseRank {
				return -1
			}
			return 1
		}
		if rank(bt[i]) < releaseRank {
			return 1
		}
		return -1
	}
	return 0
}

func compareTokens(x, y token) int {
	if x.numeric && y.numeric {
		return compareNumeric(x.text, y.text)
	}
	rx := rank(x)
	ry := rank(y)
	if rx != ry {
		if rx < ry {
			return -1
		}
		return 1
	}
	return strings.Compare(x.text, y.text)
}

func rank(t token) int {
	if t.numeric {
		return numericRank
	}
	if r, ok := prereleaseRank[t.text]; ok {
		return r
	}
	return suffixRank
}

// compareNumeric compares two digit runs without parsing them, so labels
// like dates or long build numbers never overflow.
func compareNumeric(x, y string) int {
	x = strings.TrimLeft(x, "0")
	y = strings.TrimLeft(y, "0")
	if len(x) != len(y) {
		if len(x) < len(y) {
			return -1
		}
		return 1
	}
	return strings.Compare(x, y)
}

func versionLike(s string) bool {
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}

func tokenize(s string) []token {
	var tokens []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			tokens = append(tokens, token{text: s[i:j], numeric: true})
			i = j
		case isLetter(c):
			j := i
			for j < len(s) && isLetter(s[j]) {
				j++
			}
			tokens = append(tokens, token{text: strings.ToLower(s[i:j])})
			i = j
		default:
			i++
		}
	}
	return tokens
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
