package main

import (
	"math/rand"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Millisecond
	}

	if got := percentile(samples, 50); got != 50*time.Millisecond {
		t.Fatalf("p50 = %s", got)
	}
	if got := percentile(samples, 100); got != 100*time.Millisecond {
		t.Fatalf("p100 = %s", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty p50 = %s", got)
	}
}

func TestRunPhaseCountsFailures(t *testing.T) {
	stats := runPhase(100, 4, func(_ *rand.Rand, i int) error {
		if i%10 == 0 {
			return errTest
		}
		return nil
	})
	if stats.ops != 100 {
		t.Fatalf("expected 100 ops, got %d", stats.ops)
	}
	if stats.failures != 10 {
		t.Fatalf("expected 10 failures, got %d", stats.failures)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("boom")
