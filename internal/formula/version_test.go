package formula

import (
	"testing"
	"time"
)

func TestExplicitVersion(t *testing.T) {
	content := `class Jq < Formula
  url "https://github.com/jqlang/jq/releases/download/jq-1.7.1/jq-1.7.1.tar.gz"
  version "1.7.1"
end`
	if got := ExplicitVersion(content); got != "1.7.1" {
		t.Errorf("ExplicitVersion() = %q, want %q", got, "1.7.1")
	}
	if got := ExplicitVersion("class Foo < Formula\nend"); got != "" {
		t.Errorf("ExplicitVersion(no decl) = %q, want empty", got)
	}
}

func TestVersionFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://curl.se/download/curl-8.9.1.tar.bz2", "8.9.1"},
		{"https://www.openssl.org/source/openssl-3.4.1.tar.gz", "3.4.1"},
		{"https://github.com/jqlang/jq/releases/download/jq-1.7.1/jq-1.7.1.tar.gz", "1.7.1"},
		{"https://github.com/foo/bar/archive/refs/tags/v2.5.0.tar.gz", "2.5.0"},
		{"https://nodejs.org/dist/v20.11.0/node-v20.11.0.tar.xz", "20.11.0"},
		{"https://ftp.gnu.org/gnu/wget/wget-1.24.5.tar.lz", "1.24.5"},
		{"https://example.com/pkg_1.2.3.orig.tar.xz", "1.2.3"},
		{"https://example.com/dl/2.0.1.zip", "2.0.1"},
		{"https://example.com/pkg-2.0-beta1.tar.gz", "2.0-beta1"},
		{"https://example.com/gcc-4.9-arm64.tar.gz", "4.9"},
		{"https://example.com/download?file=pkg-3.1.tar.gz", ""},
		{"https://example.com/source/e3b0c44298fc1c14.tar.gz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		content := "class X < Formula\n  url \"" + tt.url + "\"\nend"
		if got := VersionFromURL(content); got != tt.want {
			t.Errorf("VersionFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestRevision(t *testing.T) {
	content := `class Foo < Formula
  url "https://example.com/foo-3.4.tar.gz"
  revision 2
end`
	if got := Revision(content); got != 2 {
		t.Errorf("Revision() = %d, want 2", got)
	}
	if got := Revision("class Foo < Formula\nend"); got != 0 {
		t.Errorf("Revision(no decl) = %d, want 0", got)
	}
}

func TestEffectiveVersion_FallbackChain(t *testing.T) {
	ts := time.Date(2024, 8, 16, 10, 30, 0, 0, time.UTC)

	explicit := "class A < Formula\n  url \"https://x/a-9.9.tar.gz\"\n  version \"1.2.3\"\nend"
	if got := EffectiveVersion(explicit, ts); got != "1.2.3" {
		t.Errorf("explicit: got %q, want %q", got, "1.2.3")
	}

	fromURL := "class B < Formula\n  url \"https://x/b-3.4.tar.gz\"\nend"
	if got := EffectiveVersion(fromURL, ts); got != "3.4" {
		t.Errorf("url: got %q, want %q", got, "3.4")
	}

	revised := "class C < Formula\n  url \"https://x/c-3.4.tar.gz\"\n  revision 1\nend"
	if got := EffectiveVersion(revised, ts); got != "3.4_1" {
		t.Errorf("revision: got %q, want %q", got, "3.4_1")
	}

	opaque := "class D < Formula\n  url \"https://x/snapshot.tar.gz\"\nend"
	if got := EffectiveVersion(opaque, ts); got != "20240816103000" {
		t.Errorf("synthetic: got %q, want %q", got, "20240816103000")
	}
}
