package chain

import (
	"math/rand/v2"
	"testing"
)

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 1))
}

func TestSampleProportions(t *testing.T) {
	rec := newFreqRecord()
	rec.add('a', 3)
	rec.add('b', 1)

	rng := testRNG(7)
	const draws = 20000
	hits := make(map[rune]int)
	for i := 0; i < draws; i++ {
		hits[Sample(rec, rng)]++
	}

	if hits['a']+hits['b'] != draws {
		t.Fatalf("sampled an outcome outside the record: %v", hits)
	}
	// Expect ~3:1; allow a generous band around the 0.75 share.
	share := float64(hits['a']) / draws
	if share < 0.72 || share > 0.78 {
		t.Errorf("share of 'a' = %.3f over %d draws, want ~0.75", share, draws)
	}
}

func TestSampleSingleOutcome(t *testing.T) {
	rec := newFreqRecord()
	rec.add('x', 4)

	rng := testRNG(1)
	for i := 0; i < 100; i++ {
		if got := Sample(rec, rng); got != 'x' {
			t.Fatalf("Sample() = %q, want 'x'", got)
		}
	}
}

func TestSampleReachesEveryOutcome(t *testing.T) {
	rec := newFreqRecord()
	for _, c := range "abc" {
		rec.add(c, 1)
	}

	rng := testRNG(3)
	hits := make(map[rune]int)
	for i := 0; i < 1000; i++ {
		hits[Sample(rec, rng)]++
	}
	for _, c := range "abc" {
		if hits[c] == 0 {
			t.Errorf("outcome %q was never selected in 1000 draws", c)
		}
	}
}

func TestSamplePanicsOnEmptyRecord(t *testing.T) {
	for name, rec := range map[string]*FreqRecord{
		"nil":   nil,
		"empty": newFreqRecord(),
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Sample on an empty record did not panic")
				}
			}()
			Sample(rec, testRNG(1))
		})
	}
}
