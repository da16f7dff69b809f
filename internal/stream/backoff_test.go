package stream

import (
	"testing"
	"time"
)

func TestDelay_ExponentialUpToCap(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: 1 * time.Second, MaxDelay: 60 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{10, 60 * time.Second},
		{100, 60 * time.Second},
	}

	for _, tt := range tests {
		if got := cfg.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelay_MonotonicNonDecreasing(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}

	prev := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		d := cfg.Delay(attempt)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestDelay_JitterBounded(t *testing.T) {
	cfg := BackoffConfig{
		BaseDelay: 1 * time.Second,
		MaxDelay:  60 * time.Second,
		JitterMax: 1 * time.Second,
	}

	for i := 0; i < 100; i++ {
		d := cfg.Delay(5)
		if d < 32*time.Second || d >= 33*time.Second {
			t.Fatalf("Delay(5) = %v, want [32s, 33s)", d)
		}
	}
}

func TestDelay_DefaultsOnZeroConfig(t *testing.T) {
	var cfg BackoffConfig
	if got := cfg.Delay(0); got < DefaultBackoff.BaseDelay {
		t.Errorf("Delay(0) = %v with zero config, want at least %v", got, DefaultBackoff.BaseDelay)
	}
}
