package chain

import "math/rand/v2"

// Sample draws one outcome from rec with probability proportional to its
// count. The random index is drawn from the half-open range [0, Total()) and
// the record is walked in first-seen order with a strict cumulative
// comparison, so every stored outcome is selectable with weight exactly
// equal to its count and nothing else ever comes back.
//
// An empty record is a precondition violation: records only exist because an
// occurrence was observed, so finding one without occurrences means the
// model state is corrupted. Sample panics in that case.
func Sample(rec *FreqRecord, rng *rand.Rand) rune {
	if rec == nil || rec.total < 1 {
		panic("chain: Sample called with an empty frequency record")
	}
	n := rng.IntN(rec.total)
	for _, c := range rec.outcomes {
		n -= rec.counts[c]
		if n < 0 {
			return c
		}
	}
	// Unreachable while the total matches the sum of counts.
	return rec.outcomes[len(rec.outcomes)-1]
}
