package cache

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	kg := NewKeyGenerator()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lower-cases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"adds root path", "https://example.com", "https://example.com/"},
		{"drops default https port", "https://example.com:443/a", "https://example.com/a"},
		{"drops default http port", "http://example.com:80/a", "http://example.com/a"},
		{"keeps custom port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"drops fragment", "https://example.com/a#top", "https://example.com/a"},
		{"sorts query", "https://example.com/s?q=go&a=1", "https://example.com/s?a=1&q=go"},
		{"trims space", "  https://example.com/  ", "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := kg.Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeInvalid(t *testing.T) {
	kg := NewKeyGenerator()

	for _, in := range []string{"", "example.com/path", "/relative", "https://", "://bad"} {
		if _, err := kg.Normalize(in); err == nil {
			t.Errorf("Normalize(%q) expected error, got nil", in)
		}
	}
}

func TestOrigin(t *testing.T) {
	kg := NewKeyGenerator()

	got, err := kg.Origin("https://Example.com:443/deep/page?x=1")
	if err != nil {
		t.Fatalf("Origin failed: %v", err)
	}
	if got != "https://example.com/" {
		t.Errorf("Expected origin 'https://example.com/', got '%s'", got)
	}
}

func TestGenerate(t *testing.T) {
	kg := NewKeyGenerator()

	a := kg.Generate("render", "https://example.com/")
	b := kg.Generate("render", "https://example.com/")
	c := kg.Generate("renderhttps://example.com/")

	if a != b {
		t.Error("Generate should be deterministic")
	}
	if a == c {
		t.Error("Input boundaries should affect the key")
	}
	if !strings.HasPrefix(a, "page:") {
		t.Errorf("Expected 'page:' prefix, got %s", a)
	}
}
