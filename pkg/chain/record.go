package chain

// FreqRecord holds the observed outcomes for a single context key: an
// insertion-ordered set of outcome characters, a count for each, and a
// running total equal to the sum of all counts. An outcome absent from the
// record was never observed; stored counts are always >= 1.
type FreqRecord struct {
	outcomes []rune
	counts   map[rune]int
	total    int
}

func newFreqRecord() *FreqRecord {
	return &FreqRecord{counts: make(map[rune]int)}
}

// add increments outcome by n, registering it on first sight.
func (r *FreqRecord) add(outcome rune, n int) {
	if _, ok := r.counts[outcome]; !ok {
		r.outcomes = append(r.outcomes, outcome)
	}
	r.counts[outcome] += n
	r.total += n
}

// Count returns the observed count for outcome, or 0 if it was never seen.
func (r *FreqRecord) Count(outcome rune) int {
	return r.counts[outcome]
}

// Total returns the sum of all counts in the record.
func (r *FreqRecord) Total() int {
	return r.total
}

// Len returns the number of distinct outcomes in the record.
func (r *FreqRecord) Len() int {
	return len(r.outcomes)
}

// Each calls fn for every outcome in first-seen order. Iteration stops early
// if fn returns false.
func (r *FreqRecord) Each(fn func(outcome rune, count int) bool) {
	for _, c := range r.outcomes {
		if !fn(c, r.counts[c]) {
			return
		}
	}
}

// contextTable maps a context key (the string of up to N most recent
// characters, compared by exact sequence equality) to the one frequency
// record it owns. It does no locking of its own; the owning Model serializes
// access.
type contextTable struct {
	records map[string]*FreqRecord
	keys    []string // context insertion order, for deterministic iteration
}

func newContextTable() *contextTable {
	return &contextTable{records: make(map[string]*FreqRecord)}
}

// add records n occurrences of outcome under context, creating the context
// entry and its record if this context has never been seen.
func (t *contextTable) add(context string, outcome rune, n int) {
	rec, ok := t.records[context]
	if !ok {
		rec = newFreqRecord()
		t.records[context] = rec
		t.keys = append(t.keys, context)
	}
	rec.add(outcome, n)
}

// recordOccurrence records a single observed occurrence of outcome following
// context. Every context/outcome pair is valid to record.
func (t *contextTable) recordOccurrence(context string, outcome rune) {
	t.add(context, outcome, 1)
}

// lookup returns the frequency record for an exact context key, or false if
// that context was never trained on.
func (t *contextTable) lookup(context string) (*FreqRecord, bool) {
	rec, ok := t.records[context]
	return rec, ok
}

func (t *contextTable) len() int {
	return len(t.records)
}

// each visits every context record in insertion order. Iteration stops early
// if fn returns false.
func (t *contextTable) each(fn func(context string, rec *FreqRecord) bool) {
	for _, key := range t.keys {
		if !fn(key, t.records[key]) {
			return
		}
	}
}
