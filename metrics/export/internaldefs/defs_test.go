package internaldefs

import (
	"strings"
	"testing"

	"github.com/MrEthical07/authgate"
)

func TestEveryCounterHasOneDefinition(t *testing.T) {
	seenID := map[authgate.MetricID]bool{}
	seenName := map[string]bool{}
	for _, def := range CounterDefs {
		if seenID[def.ID] || seenName[def.Name] {
			t.Fatalf("duplicate definition %+v", def)
		}
		seenID[def.ID] = true
		seenName[def.Name] = true
		if !strings.HasPrefix(def.Name, "authgate_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
	}
	for _, def := range HistogramDefs {
		seenID[def.ID] = true
	}

	m := authgate.NewMetrics(authgate.MetricsConfig{Enabled: true})
	for id := range m.Snapshot().Counters {
		if !seenID[id] {
			t.Fatalf("metric %d has no exporter definition", id)
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(HistogramBounds) != 8 || len(HistogramBoundsSeconds) != 7 {
		t.Fatal("bounds out of sync with the engine's eight buckets")
	}
}
