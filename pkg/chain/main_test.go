package chain

import (
	"testing"
)

// newTestModel creates a model or fails the test.
func newTestModel(t *testing.T, order int, opts ...ModelOption) *Model {
	t.Helper()
	m, err := New(order, '\n', opts...)
	if err != nil {
		t.Fatalf("New(%d) failed: %v", order, err)
	}
	return m
}

// mustTrain trains each sample or fails the test.
func mustTrain(t *testing.T, m *Model, samples ...string) {
	t.Helper()
	for _, s := range samples {
		if err := m.Train(s); err != nil {
			t.Fatalf("Train(%q) failed: %v", s, err)
		}
	}
}

// dumpTransitions flattens the model state into nested maps for comparison.
func dumpTransitions(m *Model) map[string]map[rune]int {
	dump := make(map[string]map[rune]int)
	m.Each(func(context string, outcome rune, count int) bool {
		rec, ok := dump[context]
		if !ok {
			rec = make(map[rune]int)
			dump[context] = rec
		}
		rec[outcome] = count
		return true
	})
	return dump
}

// checkTotals verifies the redundant total of every record against the sum
// of its counts.
func checkTotals(t *testing.T, m *Model) {
	t.Helper()
	for context, outcomes := range dumpTransitions(m) {
		sum := 0
		for _, n := range outcomes {
			sum += n
		}
		rec, ok := m.Lookup(context)
		if !ok {
			t.Fatalf("context %q visible in Each but not in Lookup", context)
		}
		if rec.Total() != sum {
			t.Errorf("context %q: total %d != sum of counts %d", context, rec.Total(), sum)
		}
	}
}

// testNames is a small city-name corpus shared by generation tests.
var testNames = []string{
	"Catalina", "Carlsbad", "Carmel", "Corona", "Calexico",
	"Monterey", "Modesto", "Madera", "Malibu",
}
