package main

import (
	"testing"
)

func TestMimeTypeForFile(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"lease.pdf", "application/pdf"},
		{"SCAN.PDF", "application/pdf"},
		{"photo.jpg", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"diagram.png", "image/png"},
		{"notes.txt", ""},
		{"archive.tar.gz", ""},
		{"no-extension", ""},
	}
	for _, c := range cases {
		if got := mimeTypeForFile(c.path); got != c.want {
			t.Errorf("mimeTypeForFile(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := loadToken(); err == nil {
		t.Error("loadToken succeeded with no saved session")
	}

	if err := saveToken("abc123"); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	got, err := loadToken()
	if err != nil {
		t.Fatalf("loadToken: %v", err)
	}
	if got != "abc123" {
		t.Errorf("loadToken = %q, want abc123", got)
	}
}

func TestServerBaseURL(t *testing.T) {
	t.Setenv("DOCTALK_SERVER_PORT", "")
	if got := serverBaseURL(); got != "http://127.0.0.1:4000" {
		t.Errorf("serverBaseURL() = %q, want default port", got)
	}

	t.Setenv("DOCTALK_SERVER_PORT", "9999")
	if got := serverBaseURL(); got != "http://127.0.0.1:9999" {
		t.Errorf("serverBaseURL() = %q, want overridden port", got)
	}

	t.Setenv("DOCTALK_SERVER_PORT", "nope")
	if got := serverBaseURL(); got != "http://127.0.0.1:4000" {
		t.Errorf("serverBaseURL() = %q, want default on bad value", got)
	}
}
