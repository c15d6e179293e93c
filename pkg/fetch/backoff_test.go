package fetch

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{60, time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffWithoutCap(t *testing.T) {
	b := Backoff{BaseDelay: time.Millisecond}
	if got := b.Delay(4); got != 8*time.Millisecond {
		t.Errorf("Delay(4) = %v, want 8ms", got)
	}
}

func TestBackoffAttempts(t *testing.T) {
	if got := (Backoff{}).Attempts(); got != 1 {
		t.Errorf("zero Backoff Attempts() = %d, want 1", got)
	}
	if got := (Backoff{MaxAttempts: -3}).Attempts(); got != 1 {
		t.Errorf("negative MaxAttempts Attempts() = %d, want 1", got)
	}
	if got := DefaultBackoff().Attempts(); got != 10 {
		t.Errorf("DefaultBackoff().Attempts() = %d, want 10", got)
	}
}
