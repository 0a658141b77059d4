package utils

import (
	"strings"
	"testing"
	"time"
)

func TestConstantBackoff(t *testing.T) {
	b := NewConstantBackoff(100 * time.Millisecond)
	for attempt := 0; attempt < 5; attempt++ {
		if got := b.NextDelay(attempt); got != 100*time.Millisecond {
			t.Fatalf("attempt %d: expected 100ms, got %v", attempt, got)
		}
	}
}

func TestExponentialBackoffCapped(t *testing.T) {
	b := NewExponentialBackoff(10*time.Millisecond, 50*time.Millisecond, 2.0, false)
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond}
	for i, w := range want {
		if got := b.NextDelay(i); got != w {
			t.Fatalf("attempt %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestExponentialBackoffJitterBounded(t *testing.T) {
	b := NewExponentialBackoff(10*time.Millisecond, time.Second, 2.0, true)
	for i := 0; i < 50; i++ {
		got := b.NextDelay(1)
		if got < 10*time.Millisecond || got > 30*time.Millisecond {
			t.Fatalf("jittered delay %v outside [10ms, 30ms]", got)
		}
	}
}

func TestBackoffFromConfig(t *testing.T) {
	if _, ok := BackoffFromConfig("constant", 5, 0).(*ConstantBackoff); !ok {
		t.Fatalf("expected constant backoff")
	}
	eb, ok := BackoffFromConfig("exponential", 5, 0).(*ExponentialBackoff)
	if !ok {
		t.Fatalf("expected exponential backoff")
	}
	if eb.MaxDelay != 30*time.Second {
		t.Fatalf("expected default max delay 30s, got %v", eb.MaxDelay)
	}
}

func TestGenerateCampaignID(t *testing.T) {
	a, b := GenerateCampaignID(), GenerateCampaignID()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if !strings.HasPrefix(a, "campaign-") {
		t.Fatalf("unexpected id %s", a)
	}
	if TrialDirName(7) != "trial_0007" {
		t.Fatalf("unexpected trial dir %s", TrialDirName(7))
	}
}

func TestClampAndFinite(t *testing.T) {
	if ClampFloat64(-1, 0, 1) != 0 || ClampFloat64(2, 0, 1) != 1 || ClampFloat64(0.5, 0, 1) != 0.5 {
		t.Fatalf("clamp wrong")
	}
	zero := 0.0
	if IsFinite(1 / zero) {
		t.Fatalf("inf is not finite")
	}
	if !IsFinite(1) {
		t.Fatalf("1 is finite")
	}
}

func TestRandSourceDeterministic(t *testing.T) {
	a, b := NewRandSource(42), NewRandSource(42)
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("same seed must produce the same sequence")
		}
	}
	for i := 0; i < 100; i++ {
		v := a.UniformFloat64(2, 3)
		if v < 2 || v >= 3 {
			t.Fatalf("uniform value %g outside [2, 3)", v)
		}
	}
}
