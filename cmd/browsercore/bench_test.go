package main

import (
	"strings"
	"testing"
)

func TestBenchURLs(t *testing.T) {
	urls := benchURLs(500, 10, 7)
	if len(urls) != 500 {
		t.Fatalf("Expected 500 urls, got %d", len(urls))
	}

	seen := map[string]int{}
	for _, u := range urls {
		if !strings.HasPrefix(u, "https://bench.test/page/") {
			t.Fatalf("Unexpected url %s", u)
		}
		seen[u]++
	}
	if len(seen) > 10 {
		t.Errorf("Expected at most 10 distinct pages, got %d", len(seen))
	}
	if seen["https://bench.test/page/0"] < seen["https://bench.test/page/9"] {
		t.Error("Expected page 0 to be hotter than page 9")
	}

	again := benchURLs(500, 10, 7)
	for i := range urls {
		if urls[i] != again[i] {
			t.Fatal("Expected the same seed to give the same sequence")
		}
	}
}
